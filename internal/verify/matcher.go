package verify

import (
	"strings"

	"gatebot/internal/directory"
)

// Outcome is the matcher's verdict for one candidate attempt.
type Outcome int

const (
	// OutcomeNotFound: no directory record matches the candidate name.
	OutcomeNotFound Outcome = iota
	// OutcomeAlreadyBound: the record is already claimed by some identity.
	OutcomeAlreadyBound
	// OutcomeUnverifiable: the record has no phone suffix on file, so it
	// cannot be self-verified.
	OutcomeUnverifiable
	// OutcomeSuffixMismatch: the supplied digits do not match the record.
	// Callers must answer this exactly like OutcomeNotFound so a partial
	// match leaks nothing.
	OutcomeSuffixMismatch
	// OutcomeVerified: name and suffix both match an unbound record.
	OutcomeVerified
)

// Matcher is the pure verification decision. It never touches the store;
// the dialogue engine performs the lookup and the bind.
type Matcher struct {
	// RequireSuffix selects the deployment's input format: full name plus
	// last four phone digits, or full name only.
	RequireSuffix bool
}

// ParseInput normalizes candidate input (whitespace runs collapsed,
// trimmed) and splits it into name and suffix on the last space. ok is
// false when the input cannot carry the expected format.
func (m Matcher) ParseInput(text string) (name, suffix string, ok bool) {
	normalized := directory.NormalizeName(text)
	if normalized == "" {
		return "", "", false
	}
	if !m.RequireSuffix {
		return normalized, "", true
	}
	idx := strings.LastIndex(normalized, " ")
	if idx < 0 {
		return "", "", false
	}
	return normalized[:idx], normalized[idx+1:], true
}

// Evaluate decides the outcome for a looked-up record. found mirrors
// whether the name lookup produced rec. Deterministic and side-effect-free.
func (m Matcher) Evaluate(rec directory.Record, found bool, suffix string) Outcome {
	if !found {
		return OutcomeNotFound
	}
	if rec.Bound() {
		return OutcomeAlreadyBound
	}
	if !m.RequireSuffix {
		return OutcomeVerified
	}
	if rec.PhoneSuffix == "" {
		return OutcomeUnverifiable
	}
	if storedSuffix(rec.PhoneSuffix) != suffix {
		return OutcomeSuffixMismatch
	}
	return OutcomeVerified
}

// storedSuffix reduces a stored phone value to its trailing four
// characters, tolerating directories imported with full phone numbers.
func storedSuffix(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return phone[len(phone)-4:]
}
