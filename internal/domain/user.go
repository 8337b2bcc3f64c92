package domain

// RawUser is the shape every source (directory export, Slack SCIM export,
// CSV snapshot) is flattened into before normalization. Manager references
// use the source's internal id, not email: ids only resolve to emails once
// the whole snapshot has been fetched.
type RawUser struct {
	ID        string
	UserName  string
	FirstName string
	LastName  string
	Email     string
	Title     string
	ManagerID string
	Active    bool
	Source    string
}

// CanonicalUser is the normalized per-user record. Email is lowercased and
// unique within a snapshot. ManagerEmail is nil when the user has no manager
// or the manager was filtered out of the snapshot (inactive, bot, no email).
// Never mutated after hierarchy resolution.
type CanonicalUser struct {
	ID           string
	Email        string
	ManagerEmail *string
	Title        *string
	Active       bool

	// FirstName/LastName are carried when the source supplies them (the HR
	// CSV always does); empty otherwise. Consumers that need names fall back
	// to splitting the email local part.
	FirstName string
	LastName  string

	// ProfileOnly marks Slack shadow accounts created for people who are
	// not real Slack users. Their stored email carries a +slackprofile
	// infix which normalization strips; the flag records that it was there.
	ProfileOnly bool
}

// Snapshot maps lowercase email to the canonical record. Keys are unique.
// A non-nil ManagerEmail usually resolves to another key in the same
// snapshot but is not guaranteed to: dangling references are legal.
type Snapshot map[string]CanonicalUser

// Get returns the user for an email, which must already be lowercase.
func (s Snapshot) Get(email string) (CanonicalUser, bool) {
	u, ok := s[email]
	return u, ok
}

// Emails returns the snapshot keys in unspecified order.
func (s Snapshot) Emails() []string {
	out := make([]string, 0, len(s))
	for e := range s {
		out = append(out, e)
	}
	return out
}

// StrPtr is a convenience for building optional fields in tests and callers.
func StrPtr(s string) *string { return &s }
