package sync

import (
	"fmt"

	"orgsync/internal/domain"
)

// Classify maps one diff to its fix records. The diff must come from
// Compare(target, source): left is the target directory (the side we write
// to), right is the source of record.
//
// Presence and manager mismatch are independent axes; a title missing in the
// target is a third, so a single email can yield multiple records. Every
// record starts at Pending. Classification is pure: calling it twice on the
// same inputs yields identical records.
func Classify(diff domain.UserDiff, target, source domain.Snapshot) []*domain.ReconciliationRecord {
	var records []*domain.ReconciliationRecord

	switch {
	// In the target but gone from the source of record: the person has
	// left. Deactivate, never hard-delete.
	case diff.RightEmail == nil:
		records = append(records, &domain.ReconciliationRecord{
			Diff:   diff,
			Action: domain.ActionDeactivate,
			Note:   fmt.Sprintf("%s is in the target directory but missing from the source of record", diff.Email()),
			State:  domain.StatePending,
		})

	// In the source of record but not the target: create them. The
	// operator picks full user or profile-only via the record's Mode.
	case diff.LeftEmail == nil:
		rec := &domain.ReconciliationRecord{
			Diff:   diff,
			Action: domain.ActionAddToTarget,
			Note:   fmt.Sprintf("%s is in the source of record but missing from the target directory", diff.Email()),
			State:  domain.StatePending,
			Mode:   domain.AddModeProfileOnly,
		}
		if diff.RightManagerEmail != nil {
			if _, ok := target[*diff.RightManagerEmail]; ok {
				rec.NewManagerEmail = diff.RightManagerEmail
			}
		}
		records = append(records, rec)

	default:
		records = append(records, classifyManager(diff, target)...)
		records = append(records, classifyTitle(diff, target, source)...)
		if len(records) == 0 {
			// A diff with neither axis firing should never reach us.
			records = append(records, &domain.ReconciliationRecord{
				Diff:   diff,
				Action: domain.ActionCannotFix,
				Note:   "contact support",
				State:  domain.StatePending,
			})
		}
	}

	return records
}

func classifyManager(diff domain.UserDiff, target domain.Snapshot) []*domain.ReconciliationRecord {
	left, right := diff.LeftManagerEmail, diff.RightManagerEmail

	switch {
	case managerEqual(left, right):
		return nil

	// Manager set in the target but blank in the source of record.
	case right == nil:
		return []*domain.ReconciliationRecord{{
			Diff:   diff,
			Action: domain.ActionRemoveManager,
			Note:   fmt.Sprintf("manager is %s in the target but blank in the source of record", *left),
			State:  domain.StatePending,
		}}

	// Manager set (or different) in the source of record; usable only if
	// the new manager exists in the target.
	default:
		if _, ok := target[*right]; !ok {
			return []*domain.ReconciliationRecord{{
				Diff:   diff,
				Action: domain.ActionCannotFix,
				Note:   fmt.Sprintf("manager %s is not present in the target; create the manager in the target first", *right),
				State:  domain.StatePending,
			}}
		}
		note := fmt.Sprintf("manager is missing in the target but %s in the source of record", *right)
		if left != nil {
			note = fmt.Sprintf("manager is %s in the target but %s in the source of record", *left, *right)
		}
		return []*domain.ReconciliationRecord{{
			Diff:            diff,
			Action:          domain.ActionUpdateManager,
			Note:            note,
			State:           domain.StatePending,
			NewManagerEmail: right,
		}}
	}
}

func classifyTitle(diff domain.UserDiff, target, source domain.Snapshot) []*domain.ReconciliationRecord {
	if diff.LeftEmail == nil || diff.RightEmail == nil {
		return nil
	}
	su, ok := source[*diff.RightEmail]
	if !ok || su.Title == nil {
		return nil
	}
	tu, ok := target[*diff.LeftEmail]
	if !ok || tu.Title != nil {
		return nil
	}
	return []*domain.ReconciliationRecord{{
		Diff:   diff,
		Action: domain.ActionSetTitle,
		Note:   fmt.Sprintf("title is missing in the target but %q in the source of record", *su.Title),
		State:  domain.StatePending,
		Title:  su.Title,
	}}
}
