package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	statex "frontdesk/agent/state"
)

// Extractor pulls structured entities out of Italian caller utterances with
// deterministic rules. It never guesses: an entity is emitted only when the
// text states it, and ambiguous matches are dropped.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

// Result is one extraction pass over a single utterance.
type Result struct {
	Entities     []statex.Entity
	IsCorrection bool
}

var (
	correctionRe = regexp.MustCompile(`(?i)^(no[,.]|anzi\b|in\s+realt[aà]\b|veramente\b|scusi[,.]?\s+(volevo|intendevo))`)

	timeColonRe  = regexp.MustCompile(`\b([01]?\d|2[0-3])[:.]([0-5]\d)\b`)
	timeSpokenRe = regexp.MustCompile(`(?i)\balle?\s+(?:ore\s+)?([01]?\d|2[0-3])\b`)

	dateNumericRe = regexp.MustCompile(`\b([0-3]?\d)/([01]?\d)(?:/(\d{4}))?\b`)

	// Titles match any case; the name itself must be capitalized so trailing
	// lowercase words are not swallowed into it.
	accountantRe = regexp.MustCompile(`\b(?i:dott\.?ssa|dottoressa|dottore|dott\.?|rag\.?)\s+((?:[A-ZÀ-Ü][a-zà-ü']+\s?){1,3})`)

	phoneRe = regexp.MustCompile(`(?:\+39\s?)?\b3\d{2}\s?\d{6,7}\b|(?:\+39\s?)?\b0\d{1,3}\s?\d{5,8}\b`)
	emailRe = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)

	uuidRe = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

	nameIntroRe = regexp.MustCompile(`\b(?i:mi\s+chiamo|sono(?:\s+il\s+signor|\s+la\s+signora)?|il\s+mio\s+nome\s+[eè])\s+((?:[A-ZÀ-Ü][a-zà-ü']+\s?){1,3})`)
)

var weekdayNames = map[string]time.Weekday{
	"lunedi":    time.Monday,
	"lunedì":    time.Monday,
	"martedi":   time.Tuesday,
	"martedì":   time.Tuesday,
	"mercoledi": time.Wednesday,
	"mercoledì": time.Wednesday,
	"giovedi":   time.Thursday,
	"giovedì":   time.Thursday,
	"venerdi":   time.Friday,
	"venerdì":   time.Friday,
	"sabato":    time.Saturday,
	"domenica":  time.Sunday,
}

var topicVocab = map[string]string{
	"orari":      "office_hours",
	"apertura":   "office_hours",
	"aperti":     "office_hours",
	"indirizzo":  "office_address",
	"dove":       "office_address",
	"contatti":   "office_contacts",
	"telefono":   "office_phone",
	"email":      "office_email",
	"mail":       "office_email",
}

var categoryVocab = []struct {
	pattern  *regexp.Regexp
	category string
}{
	{regexp.MustCompile(`(?i)\b(partita\s+iva|freelance|libero\s+professionista|autonomo)\b`), "new_freelance"},
	{regexp.MustCompile(`(?i)\b(societ[aà]|azienda|srl|impresa|attivit[aà])\b`), "new_business"},
	{regexp.MustCompile(`(?i)\b(cambiare|lasciare)\s+(il\s+mio\s+)?commercialista\b`), "competitor_switch"},
	{regexp.MustCompile(`(?i)\b(problema|cartella|avviso|accertamento)\b`), "tax_issue"},
	{regexp.MustCompile(`(?i)\b(informazion\w+|curiosit[aà])\b`), "information"},
}

// Extract runs every rule over the utterance. now anchors relative dates
// such as "domani".
func (e *Extractor) Extract(utterance string, now time.Time) Result {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return Result{}
	}

	res := Result{IsCorrection: correctionRe.MatchString(text)}
	source := statex.SourceFastPath
	if res.IsCorrection {
		source = statex.SourceCorrection
	}

	add := func(kind, value string, confidence float64) {
		if value == "" {
			return
		}
		res.Entities = append(res.Entities, statex.Entity{
			Kind:       kind,
			Value:      value,
			Confidence: confidence,
			Source:     source,
		})
	}

	if date, conf, ok := extractDate(text, now); ok {
		add(statex.EntityDate, date, conf)
	}
	if t, conf, ok := extractTime(text); ok {
		add(statex.EntityTime, t, conf)
	}
	if m := accountantRe.FindStringSubmatch(text); m != nil {
		add(statex.EntityAccountant, strings.TrimSpace(m[1]), 0.9)
	}
	if topic := extractTopic(text); topic != "" {
		add(statex.EntityTopic, topic, 0.9)
	}
	if m := nameIntroRe.FindStringSubmatch(text); m != nil {
		add(statex.EntityName, strings.TrimSpace(m[1]), 0.9)
	}
	if m := phoneRe.FindString(text); m != "" {
		add(statex.EntityPhone, normalizePhone(m), 1.0)
	}
	if m := emailRe.FindString(text); m != "" {
		add(statex.EntityEmail, strings.ToLower(m), 1.0)
	}
	if m := uuidRe.FindString(text); m != "" {
		add(statex.EntityAppointmentID, strings.ToLower(m), 1.0)
	}
	for _, c := range categoryVocab {
		if c.pattern.MatchString(text) {
			add(statex.EntityCategory, c.category, 0.8)
			break
		}
	}

	return res
}

// extractDate resolves relative words, weekday names and dd/mm forms to a
// YYYY-MM-DD value.
func extractDate(text string, now time.Time) (string, float64, bool) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "dopodomani"):
		return now.AddDate(0, 0, 2).Format("2006-01-02"), 1.0, true
	case strings.Contains(lower, "domani"):
		return now.AddDate(0, 0, 1).Format("2006-01-02"), 1.0, true
	case strings.Contains(lower, "oggi"):
		return now.Format("2006-01-02"), 1.0, true
	}

	for name, weekday := range weekdayNames {
		if !containsWord(lower, name) {
			continue
		}
		// Next occurrence, never today: "lunedì" on a Monday means in a week.
		days := (int(weekday) - int(now.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		return now.AddDate(0, 0, days).Format("2006-01-02"), 0.9, true
	}

	if m := dateNumericRe.FindStringSubmatch(text); m != nil {
		day, month := m[1], m[2]
		year := m[3]
		if year == "" {
			year = fmt.Sprintf("%d", now.Year())
		}
		parsed, err := time.ParseInLocation("2006-1-2", fmt.Sprintf("%s-%s-%s", year, month, day), now.Location())
		if err != nil {
			return "", 0, false
		}
		// A day/month without a year that already passed means next year.
		if m[3] == "" && parsed.Before(now.Truncate(24*time.Hour)) {
			parsed = parsed.AddDate(1, 0, 0)
		}
		return parsed.Format("2006-01-02"), 1.0, true
	}

	return "", 0, false
}

// extractTime resolves HH:MM and spoken "alle 15" forms to HH:MM.
func extractTime(text string) (string, float64, bool) {
	if m := timeColonRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:%s", h, m[2]), 1.0, true
	}
	if m := timeSpokenRe.FindStringSubmatch(text); m != nil {
		h, _ := strconv.Atoi(m[1])
		return fmt.Sprintf("%02d:00", h), 0.9, true
	}
	return "", 0, false
}

func extractTopic(text string) string {
	lower := strings.ToLower(text)
	for word, topic := range topicVocab {
		if containsWord(lower, word) {
			return topic
		}
	}
	return ""
}

func containsWord(haystack, word string) bool {
	idx := strings.Index(haystack, word)
	if idx < 0 {
		return false
	}
	before := idx == 0 || !isLetter(haystack[idx-1])
	afterIdx := idx + len(word)
	after := afterIdx >= len(haystack) || !isLetter(haystack[afterIdx])
	return before && after
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func normalizePhone(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
