package sync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"orgsync/internal/domain"
	"orgsync/internal/httpx"
)

// TargetDirectory is the write side of the target system. Every mutation
// returns the value the remote actually ended up with, not just a success
// flag: the API has been seen silently ignoring writes, so the Reconciler
// equality-checks the echo.
type TargetDirectory interface {
	SetManager(ctx context.Context, userID string, managerID *string) (*string, error)
	SetTitle(ctx context.Context, userID string, title *string) (*string, error)
	SetActive(ctx context.Context, userID string, active bool) (bool, error)
	CreateUser(ctx context.Context, user NewUser) (string, error)
}

// NewUser carries the fields for creating a target user.
type NewUser struct {
	FirstName   string
	LastName    string
	UserName    string
	Title       string
	Email       string
	ProfileOnly bool
	ManagerID   *string
}

// Reconciler applies classified fix records against the target directory.
// It owns the only mutable state in the engine: each record's State field.
// Snapshots stay read-only throughout.
type Reconciler struct {
	target   TargetDirectory
	snapshot domain.Snapshot // target-side snapshot, for email -> id lookups
	source   domain.Snapshot // source of record, for AddToTarget fields
	log      *logrus.Logger

	mu sync.Mutex // guards record state transitions
}

func NewReconciler(target TargetDirectory, targetSnapshot, sourceSnapshot domain.Snapshot, log *logrus.Logger) *Reconciler {
	return &Reconciler{
		target:   target,
		snapshot: targetSnapshot,
		source:   sourceSnapshot,
		log:      log,
	}
}

// fixFunc performs the remote mutation. Empty string means success, a
// non-empty string is the CannotFix note. No errors: once a fix is running,
// every failure maps to a terminal note.
type fixFunc func(ctx context.Context) string

// ApplyFix runs one record's corrective mutation. The record moves
// Pending -> Fixing -> Fixed|CannotFix and the returned state is always
// terminal: external failures of any kind become CannotFix with the cause
// in the note, never an error.
//
// An error return means the fix never started and the record never entered
// Fixing: either the record was not Pending (re-trigger while in flight, or
// already terminal) or a precondition the classifier guarantees was violated
// (a logic error, surfaced before any remote call).
func (r *Reconciler) ApplyFix(ctx context.Context, rec *domain.ReconciliationRecord) (domain.FixState, error) {
	run, err := r.plan(rec)
	if err != nil {
		return rec.State, err
	}
	if err := r.begin(rec); err != nil {
		return rec.State, err
	}

	note := run(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if note == "" {
		rec.State = domain.StateFixed
	} else {
		rec.State = domain.StateCannotFix
		rec.Note = note
		if r.log != nil {
			r.log.WithFields(logrus.Fields{
				"email":  rec.Diff.Email(),
				"action": rec.Action,
			}).Warn(note)
		}
	}
	return rec.State, nil
}

// begin performs the Pending -> Fixing transition atomically so the same
// record cannot be mutated twice concurrently.
func (r *Reconciler) begin(rec *domain.ReconciliationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch rec.State {
	case domain.StatePending:
		rec.State = domain.StateFixing
		return nil
	case domain.StateFixing:
		return fmt.Errorf("fix already in flight for %s", rec.Diff.Email())
	default:
		return fmt.Errorf("fix for %s already terminal (%s)", rec.Diff.Email(), rec.State)
	}
}

// plan validates the record's preconditions and resolves every snapshot
// lookup the mutation needs, returning the mutation as a closure. All
// lookups happen here, before Fixing, so a classifier bug raises instead of
// producing a half-run fix.
func (r *Reconciler) plan(rec *domain.ReconciliationRecord) (fixFunc, error) {
	switch rec.Action {
	case domain.ActionUpdateManager:
		user, err := r.targetUser(rec)
		if err != nil {
			return nil, err
		}
		if rec.NewManagerEmail == nil {
			return nil, fmt.Errorf("update-manager fix for %s has no resolved manager", user.Email)
		}
		manager, ok := r.snapshot[*rec.NewManagerEmail]
		if !ok {
			return nil, fmt.Errorf("manager %s not found in target snapshot", *rec.NewManagerEmail)
		}
		return func(ctx context.Context) string {
			got, err := r.target.SetManager(ctx, user.ID, domain.StrPtr(manager.ID))
			if err != nil {
				return failNote("setting manager", err)
			}
			if got == nil || *got != manager.ID {
				return fmt.Sprintf("target reported manager %s, wanted %s", strOrNull(got), manager.ID)
			}
			return ""
		}, nil

	case domain.ActionRemoveManager:
		user, err := r.targetUser(rec)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) string {
			got, err := r.target.SetManager(ctx, user.ID, nil)
			if err != nil {
				return failNote("removing manager", err)
			}
			if got != nil {
				return fmt.Sprintf("target reported manager %s after removal", *got)
			}
			return ""
		}, nil

	case domain.ActionSetTitle:
		user, err := r.targetUser(rec)
		if err != nil {
			return nil, err
		}
		if rec.Title == nil {
			return nil, fmt.Errorf("set-title fix for %s has no title", user.Email)
		}
		title := rec.Title
		return func(ctx context.Context) string {
			got, err := r.target.SetTitle(ctx, user.ID, title)
			if err != nil {
				return failNote("setting title", err)
			}
			if got == nil || *got != *title {
				return fmt.Sprintf("target reported title %s, wanted %q", strOrNull(got), *title)
			}
			return ""
		}, nil

	case domain.ActionDeactivate:
		user, err := r.targetUser(rec)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) string {
			got, err := r.target.SetActive(ctx, user.ID, false)
			if err != nil {
				return failNote("deactivating", err)
			}
			if got {
				return "target reported user still active"
			}
			return ""
		}, nil

	case domain.ActionAddToTarget:
		if rec.Diff.RightEmail == nil {
			return nil, fmt.Errorf("add fix for %s has no source-side user", rec.Diff.Email())
		}
		su, ok := r.source[*rec.Diff.RightEmail]
		if !ok {
			return nil, fmt.Errorf("user %s not found in source snapshot", *rec.Diff.RightEmail)
		}
		user := newUserFromSource(su, rec.Mode)
		if rec.NewManagerEmail != nil {
			if manager, ok := r.snapshot[*rec.NewManagerEmail]; ok {
				user.ManagerID = domain.StrPtr(manager.ID)
			}
		}
		return func(ctx context.Context) string {
			id, err := r.target.CreateUser(ctx, user)
			if err != nil {
				return failNote("creating user", err)
			}
			if id == "" {
				return "target returned no id for created user"
			}
			return ""
		}, nil

	case domain.ActionCannotFix:
		note := rec.Note
		return func(context.Context) string { return note }, nil

	default:
		return nil, fmt.Errorf("unknown fix action %q", rec.Action)
	}
}

// failNote builds the operator-visible note for a failed remote call. The
// call outcome decides the phrasing: a rejection names the status the remote
// answered with, a vanished request says no response came back, and anything
// else never left this process.
func failNote(op string, err error) string {
	outcome := httpx.ClassifyError(err)
	switch outcome.Kind {
	case httpx.OutcomeRemoteRejected:
		return fmt.Sprintf("%s failed: remote rejected (status %d)", op, outcome.Status)
	case httpx.OutcomeNoResponse:
		return fmt.Sprintf("%s failed: no response from remote: %v", op, outcome.Reason)
	default:
		return fmt.Sprintf("%s failed: %v", op, err)
	}
}

func (r *Reconciler) targetUser(rec *domain.ReconciliationRecord) (domain.CanonicalUser, error) {
	if rec.Diff.LeftEmail == nil {
		return domain.CanonicalUser{}, fmt.Errorf("fix %s for %s has no target-side user", rec.Action, rec.Diff.Email())
	}
	u, ok := r.snapshot[*rec.Diff.LeftEmail]
	if !ok {
		return domain.CanonicalUser{}, fmt.Errorf("user %s not found in target snapshot", *rec.Diff.LeftEmail)
	}
	return u, nil
}

// newUserFromSource builds the create payload. The source's real names are
// used when it has them (the HR CSV always does); splitting the email local
// part is a fallback for sources that only carry a mail address. Profile-only
// users get a +slackprofile email infix and a .profile-only username so a
// later real account for the same person cannot clash. Slack usernames are
// capped at 21 chars, hence the truncation.
func newUserFromSource(su domain.CanonicalUser, mode domain.AddMode) NewUser {
	first, last := su.FirstName, su.LastName
	if first == "" || last == "" {
		first, last = splitEmailName(su.Email)
	}
	u := NewUser{
		FirstName: first,
		LastName:  last,
		UserName:  localPart(su.Email),
		Email:     su.Email,
	}
	if su.Title != nil {
		u.Title = *su.Title
	}
	if mode != domain.AddModeFullUser {
		u.ProfileOnly = true
		u.Email = strings.Replace(su.Email, "@", "+slackprofile@", 1)
		u.UserName = strings.ToLower(trunc(first, 3) + "." + trunc(last, 3) + ".profile-only")
	}
	return u
}

func localPart(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}

func splitEmailName(email string) (string, string) {
	local := localPart(email)
	if i := strings.Index(local, "."); i >= 0 {
		return local[:i], local[i+1:]
	}
	return local, local
}

func trunc(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func strOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return *s
}
