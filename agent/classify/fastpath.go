package classify

import (
	"regexp"
	"strings"

	"frontdesk/agent/contract"
	statex "frontdesk/agent/state"
)

// fastPathRule maps unambiguous phrasing straight to an intent.
type fastPathRule struct {
	intent   statex.Intent
	patterns []*regexp.Regexp
}

// Rule order matters: the first matching rule wins, so the more specific
// intents come before the broader ones.
var fastPathRules = []fastPathRule{
	{
		intent: statex.IntentBooking,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(prenotare|prenoto|prenotazione|fissare|fissiamo)\b`),
			regexp.MustCompile(`(?i)\bappuntament\w*`),
			regexp.MustCompile(`(?i)\b(disdire|disdico|annullare|annullo|cancellare|spostare|sposto|rimandare)\b`),
		},
	},
	{
		intent: statex.IntentRouting,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(parlare|parlo)\s+con\b`),
			regexp.MustCompile(`(?i)\b(mi\s+pass[ai]|passami|trasferir\w*|inoltrar\w*)\b`),
			regexp.MustCompile(`(?i)\b(richiamat[oa]|richiamarmi|essere\s+richiamat[oa])\b`),
			regexp.MustCompile(`(?i)\bc'?e'?\s+(il|la)\s+dott\w*`),
		},
	},
	{
		intent: statex.IntentOfficeInfo,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\borari\w*\s+(di\s+)?(apertura|ufficio|studio)\b`),
			regexp.MustCompile(`(?i)\b(a\s+che\s+ora\s+(aprite|chiudete)|quando\s+siete\s+aperti)\b`),
			regexp.MustCompile(`(?i)\b(indirizzo|dove\s+(siete|si\s+trova|vi\s+trovo))\b`),
			regexp.MustCompile(`(?i)\b(contatti|numero\s+di\s+telefono|indirizzo\s+email)\s+(dello\s+)?(studio|ufficio)?\b`),
		},
	},
	{
		intent: statex.IntentLead,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(nuovo|nuova)\s+client\w*\b`),
			regexp.MustCompile(`(?i)\bpreventivo\b`),
			regexp.MustCompile(`(?i)\b(aprire|aprir[oò]|sto\s+aprendo)\s+(una\s+)?(partita\s+iva|attivit[aà]|societ[aà]|azienda|srl)\b`),
			regexp.MustCompile(`(?i)\bcambiare\s+commercialista\b`),
			regexp.MustCompile(`(?i)\b(vorrei|cerco)\s+(un\s+)?commercialista\b`),
		},
	},
}

// FastPath is the deterministic second tier. When exactly one intent's
// patterns match, it answers with full confidence and the LLM tiers are
// skipped.
type FastPath struct {
	rules []fastPathRule
}

func NewFastPath() *FastPath {
	return &FastPath{rules: fastPathRules}
}

// Match returns the fast-path classification and true when exactly one
// intent matches the utterance. Multi-intent turns fall through to the
// fallback so the dominant intent is chosen in context.
func (f *FastPath) Match(utterance string) (contract.ClassifyResult, bool) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return contract.ClassifyResult{}, false
	}

	var matched []statex.Intent
	for _, rule := range f.rules {
		for _, re := range rule.patterns {
			if re.MatchString(text) {
				matched = append(matched, rule.intent)
				break
			}
		}
	}
	if len(matched) != 1 {
		return contract.ClassifyResult{}, false
	}
	return contract.ClassifyResult{
		Intent:     matched[0],
		Confidence: 1.0,
		Source:     contract.SourceFastPath,
	}, true
}
