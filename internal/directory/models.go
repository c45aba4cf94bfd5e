package directory

import "strings"

// Record is one enrollment directory entry. FullName is the natural lookup
// key (whitespace-normalized, unique at creation time). PhoneSuffix is the
// optional second verification factor; an empty value means the record
// cannot be self-verified and needs an administrator. BoundIdentity holds
// the chat-platform identity once the person has verified; empty means
// "not yet verified".
type Record struct {
	ID            string
	FullName      string
	PhoneSuffix   string
	BoundIdentity string
}

// Bound reports whether the record has been claimed by an identity.
func (r Record) Bound() bool {
	return r.BoundIdentity != ""
}

// NormalizeName collapses whitespace runs to single spaces and trims the
// result, so lookups are insensitive to copy-paste artifacts.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}
