// Package reason maps free text to canonical rejection-reason codes by
// keyword matching against a fixed taxonomy. Pure, stateless, and
// case-insensitive; a code matches when any of its keywords is a substring
// of the text.
package reason

import "strings"

// Code is a canonical rejection-reason taxonomy entry.
type Code string

const (
	AlcoholIntoxication Code = "ALCOHOL_INTOXICATION"
	InvalidLicense      Code = "INVALID_LICENSE"
	FIRNotSubmitted     Code = "FIR_NOT_SUBMITTED"
	PolicyExpired       Code = "POLICY_EXPIRED"
	AddonNotCovered     Code = "ADDON_NOT_COVERED"
	UnauthorizedUse     Code = "UNAUTHORIZED_USE"
	NonDisclosure       Code = "NON_DISCLOSURE"
	MechanicalFailure   Code = "MECHANICAL_FAILURE"
	Unknown             Code = "UNKNOWN"
)

// Keywords is the rejection-reason taxonomy. Keys are canonical codes,
// values the lowercase keyword fragments that trigger them.
var Keywords = map[Code][]string{
	AlcoholIntoxication: {"alcohol", "intoxicat", "liquor", "drug"},
	InvalidLicense:      {"invalid license", "no driving licence", "not licensed"},
	FIRNotSubmitted:     {"fir", "delay in intimation", "police complaint"},
	PolicyExpired:       {"policy expired", "lapsed policy"},
	AddonNotCovered:     {"addon not purchased", "add-on not covered"},
	UnauthorizedUse:     {"commercial use", "hire or reward"},
	NonDisclosure:       {"non disclosure", "material fact"},
	MechanicalFailure:   {"wear and tear", "mechanical breakdown"},
}

// codeOrder keeps Detect output deterministic.
var codeOrder = []Code{
	AlcoholIntoxication, InvalidLicense, FIRNotSubmitted, PolicyExpired,
	AddonNotCovered, UnauthorizedUse, NonDisclosure, MechanicalFailure,
}

// Detect returns the codes whose keywords appear in text, in taxonomy order.
func Detect(text string) []Code {
	lower := strings.ToLower(text)
	var out []Code
	for _, code := range codeOrder {
		for _, kw := range Keywords[code] {
			if strings.Contains(lower, kw) {
				out = append(out, code)
				break
			}
		}
	}
	return out
}

// MatchesAny reports whether text contains a keyword of any detected code.
// Used by retrieval to promote clauses that justify a detected reason.
func MatchesAny(text string, codes []Code) bool {
	lower := strings.ToLower(text)
	for _, code := range codes {
		for _, kw := range Keywords[code] {
			if strings.Contains(lower, kw) {
				return true
			}
		}
	}
	return false
}

// AllCodes lists every canonical code including UNKNOWN, in a stable order.
// The LLM reason extractor constrains its output to this list.
func AllCodes() []Code {
	out := make([]Code, 0, len(codeOrder)+1)
	out = append(out, codeOrder...)
	return append(out, Unknown)
}
