// Package sync is the reconciliation engine: snapshot comparison, fix
// classification and idempotent corrective writes against the target
// directory. Snapshots are read-only here; only ReconciliationRecord state
// mutates, and only through the Reconciler.
package sync

import (
	"orgsync/internal/domain"
)

// Compare computes the symmetric difference of two snapshots. A diff is
// emitted for every email present on exactly one side, and for every email
// present on both sides whose manager differs. Users both sides agree on
// produce nothing.
//
// Manager comparison is exact string equality post-normalization; nil and ""
// are distinct. Callers normalize empty-string manager references to nil
// before building snapshots. Output is keyed by email so repeated runs on
// identical inputs are identical regardless of map iteration order.
func Compare(left, right domain.Snapshot) domain.DiffSet {
	diffs := make(domain.DiffSet)

	for email, lu := range left {
		ru, ok := right[email]
		if !ok {
			diffs[email] = domain.UserDiff{
				LeftEmail:        domain.StrPtr(lu.Email),
				LeftManagerEmail: lu.ManagerEmail,
			}
			continue
		}
		if !managerEqual(lu.ManagerEmail, ru.ManagerEmail) {
			diffs[email] = domain.UserDiff{
				LeftEmail:         domain.StrPtr(lu.Email),
				RightEmail:        domain.StrPtr(ru.Email),
				LeftManagerEmail:  lu.ManagerEmail,
				RightManagerEmail: ru.ManagerEmail,
			}
		}
	}

	for email, ru := range right {
		if _, seen := diffs[email]; seen {
			continue
		}
		if _, ok := left[email]; !ok {
			diffs[email] = domain.UserDiff{
				RightEmail:        domain.StrPtr(ru.Email),
				RightManagerEmail: ru.ManagerEmail,
			}
		}
	}

	return diffs
}

func managerEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
