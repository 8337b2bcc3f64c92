package domain

// UserDiff describes how the two sides of a comparison disagree about one
// email: presence (one side nil) or manager mismatch. A diff is never
// emitted for a user both sides fully agree on.
type UserDiff struct {
	LeftEmail         *string
	RightEmail        *string
	LeftManagerEmail  *string
	RightManagerEmail *string
}

// Email returns the diff's subject email, whichever side has it.
func (d UserDiff) Email() string {
	if d.LeftEmail != nil {
		return *d.LeftEmail
	}
	if d.RightEmail != nil {
		return *d.RightEmail
	}
	return ""
}

// PresenceMismatch reports whether the user exists on only one side.
func (d UserDiff) PresenceMismatch() bool {
	return (d.LeftEmail == nil) != (d.RightEmail == nil)
}

// ManagerMismatch reports whether both sides have the user but disagree on
// the manager. nil and "" are distinct values on purpose: callers normalize
// empty-string manager references to nil before comparison.
func (d UserDiff) ManagerMismatch() bool {
	if d.LeftEmail == nil || d.RightEmail == nil {
		return false
	}
	return !strPtrEqual(d.LeftManagerEmail, d.RightManagerEmail)
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// DiffSet maps email to its diff. Keyed maps keep repeated runs on identical
// inputs identical regardless of snapshot iteration order.
type DiffSet map[string]UserDiff
