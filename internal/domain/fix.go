package domain

// FixAction classifies what corrective mutation a diff calls for. The string
// values are stable: they double as operator-facing labels and wire values.
type FixAction string

const (
	// ActionAddToTarget creates the user in the target directory. The
	// operator chooses between a full user and a profile-only user.
	ActionAddToTarget FixAction = "AddToTarget"
	// ActionUpdateManager sets or replaces the manager in the target.
	ActionUpdateManager FixAction = "UpdateManager"
	// ActionRemoveManager clears the manager in the target.
	ActionRemoveManager FixAction = "RemoveManager"
	// ActionSetTitle copies the source title into the target.
	ActionSetTitle FixAction = "SetTitle"
	// ActionDeactivate deactivates the target user. Never a hard delete.
	ActionDeactivate FixAction = "Deactivate"
	// ActionCannotFix marks a difference with no automatic remedy.
	ActionCannotFix FixAction = "CannotFix"
)

// FixState is the per-record lifecycle. Fixed and CannotFix are terminal;
// a fresh comparison run starts every record back at Pending.
type FixState string

const (
	StatePending   FixState = "Pending"
	StateFixing    FixState = "Fixing"
	StateFixed     FixState = "Fixed"
	StateCannotFix FixState = "CannotFix"
)

// Terminal reports whether the state accepts no further transitions.
func (s FixState) Terminal() bool {
	return s == StateFixed || s == StateCannotFix
}

// AddMode selects how an AddToTarget fix creates the user.
type AddMode string

const (
	AddModeFullUser    AddMode = "full"
	AddModeProfileOnly AddMode = "profile-only"
)

// ReconciliationRecord pairs a diff with its classified action and tracks
// the fix lifecycle. Created by the classifier at Pending, mutated only by
// the Reconciler, discarded when the next comparison run replaces it.
type ReconciliationRecord struct {
	Diff   UserDiff
	Action FixAction
	Note   string
	State  FixState

	// NewManagerEmail is set for UpdateManager: the source-side manager
	// email, pre-resolved against the target snapshot by the classifier.
	NewManagerEmail *string
	// Title is set for SetTitle fixes.
	Title *string
	// Mode is the operator's choice for AddToTarget fixes. Defaults to
	// profile-only when left unset, the safe option.
	Mode AddMode
}
