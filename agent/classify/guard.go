package classify

import (
	"regexp"
	"strings"
)

// GuardReply is the fixed rejection-and-redirect reply spoken whenever the
// guard fires. It never reaches the LLM tiers.
const GuardReply = "Mi dispiace, non posso fornire consulenza fiscale o legale al telefono. " +
	"Posso prenotare un appuntamento con uno dei nostri commercialisti, " +
	"passarle un collega oppure prendere i suoi recapiti."

// guardPattern is a compiled regex with a reason label.
type guardPattern struct {
	re     *regexp.Regexp
	reason string
}

// Requests for substantive tax advice.
var taxAdvicePatterns = []guardPattern{
	{regexp.MustCompile(`(?i)\bconsulenza\s+(fiscale|tributaria|legale)\b`), "advice:consulting_request"},
	{regexp.MustCompile(`(?i)\bquant[oa]\s+(devo|dovrei|bisogna)\s+(pagare|versare)\b`), "advice:how_much_to_pay"},
	{regexp.MustCompile(`(?i)\b(posso|come)\s+(detrarre|dedurre|scaricare)\b`), "advice:deduction_question"},
	{regexp.MustCompile(`(?i)\bdetrazion\w*|\bdeduzion\w*`), "advice:deduction_topic"},
	{regexp.MustCompile(`(?i)\bdichiarazione\s+dei\s+redditi\b`), "advice:tax_return"},
	{regexp.MustCompile(`(?i)\bmodello\s+(730|f24|unico)\b|\bf24\b`), "advice:tax_form"},
	{regexp.MustCompile(`(?i)\baliquot\w*`), "advice:tax_rate"},
	{regexp.MustCompile(`(?i)\b(ires|irap|irpef|imu|tari)\b`), "advice:named_tax"},
	{regexp.MustCompile(`(?i)\biva\s+al\s+\d+`), "advice:vat_rate"},
	{regexp.MustCompile(`(?i)\bregime\s+forfettario\b`), "advice:tax_regime"},
	{regexp.MustCompile(`(?i)\bcartella\s+esattoriale\b|\bagenzia\s+delle\s+entrate\b`), "advice:tax_authority"},
}

// Requests for legal opinions or representation.
var legalAdvicePatterns = []guardPattern{
	{regexp.MustCompile(`(?i)\bavvocato\b|\bparere\s+legale\b`), "legal:lawyer_request"},
	{regexp.MustCompile(`(?i)\bricorso\b|\bcontenzioso\b|\bcitazione\b`), "legal:litigation"},
	{regexp.MustCompile(`(?i)\b(posso\s+)?(fare\s+causa|denunciare|querelare)\b`), "legal:sue"},
}

// GuardHit describes why the guard rejected a turn.
type GuardHit struct {
	Reason string
}

// Guard is the deterministic first tier. It screens utterances for
// out-of-scope advice requests before any LLM sees them.
type Guard struct {
	patterns []guardPattern
}

func NewGuard() *Guard {
	patterns := make([]guardPattern, 0, len(taxAdvicePatterns)+len(legalAdvicePatterns))
	patterns = append(patterns, taxAdvicePatterns...)
	patterns = append(patterns, legalAdvicePatterns...)
	return &Guard{patterns: patterns}
}

// Check returns a non-nil hit when the utterance touches tax or legal
// advice the desk must not give. The screen is absolute: other content in
// the same turn, booking requests included, does not soften it.
func (g *Guard) Check(utterance string) *GuardHit {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return nil
	}
	for _, p := range g.patterns {
		if p.re.MatchString(text) {
			return &GuardHit{Reason: p.reason}
		}
	}
	return nil
}
