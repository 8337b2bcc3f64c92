package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsync/internal/domain"
	"orgsync/internal/hierarchy"
	"orgsync/internal/httpx"
)

type mockTarget struct {
	SetManagerFunc func(ctx context.Context, userID string, managerID *string) (*string, error)
	SetTitleFunc   func(ctx context.Context, userID string, title *string) (*string, error)
	SetActiveFunc  func(ctx context.Context, userID string, active bool) (bool, error)
	CreateUserFunc func(ctx context.Context, user NewUser) (string, error)
}

func (m *mockTarget) SetManager(ctx context.Context, userID string, managerID *string) (*string, error) {
	return m.SetManagerFunc(ctx, userID, managerID)
}

func (m *mockTarget) SetTitle(ctx context.Context, userID string, title *string) (*string, error) {
	return m.SetTitleFunc(ctx, userID, title)
}

func (m *mockTarget) SetActive(ctx context.Context, userID string, active bool) (bool, error) {
	return m.SetActiveFunc(ctx, userID, active)
}

func (m *mockTarget) CreateUser(ctx context.Context, user NewUser) (string, error) {
	return m.CreateUserFunc(ctx, user)
}

func testSnapshots() (domain.Snapshot, domain.Snapshot) {
	target := snap(
		user("t1", "dev@x.com", nil),
		user("t2", "mgr@x.com", nil),
	)
	source := snap(
		user("s1", "dev@x.com", domain.StrPtr("mgr@x.com")),
		user("s2", "mgr@x.com", nil),
		user("s3", "new.hire@x.com", domain.StrPtr("mgr@x.com")),
	)
	return target, source
}

func updateManagerRecord() *domain.ReconciliationRecord {
	return &domain.ReconciliationRecord{
		Diff: domain.UserDiff{
			LeftEmail:         domain.StrPtr("dev@x.com"),
			RightEmail:        domain.StrPtr("dev@x.com"),
			RightManagerEmail: domain.StrPtr("mgr@x.com"),
		},
		Action:          domain.ActionUpdateManager,
		State:           domain.StatePending,
		NewManagerEmail: domain.StrPtr("mgr@x.com"),
	}
}

func TestApplyFixUpdateManagerFixed(t *testing.T) {
	target, source := testSnapshots()
	var gotUser string
	mock := &mockTarget{
		SetManagerFunc: func(_ context.Context, userID string, managerID *string) (*string, error) {
			gotUser = userID
			return managerID, nil // echo back what was written
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)
	assert.Equal(t, domain.StateFixed, rec.State)
	assert.Equal(t, "t1", gotUser)
}

func TestApplyFixEchoMismatchCannotFix(t *testing.T) {
	// The target accepted the write but reports a different manager: the
	// API silently ignored us. That is terminal, not an error.
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(context.Context, string, *string) (*string, error) {
			return domain.StrPtr("someone-else"), nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "someone-else")
}

func TestApplyFixRemoteErrorCannotFix(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(context.Context, string, *string) (*string, error) {
			return nil, errors.New("503 from upstream")
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "503 from upstream")
}

func TestApplyFixRejectionStatusInNote(t *testing.T) {
	// A non-2xx from the directory should surface as a rejection with the
	// status in the note, not a dump of the raw error chain.
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(context.Context, string, *string) (*string, error) {
			herr := &httpx.HTTPError{
				Method:     http.MethodPatch,
				URL:        "https://api.slack.com/scim/v1/Users/t1",
				StatusCode: http.StatusBadGateway,
			}
			return nil, fmt.Errorf("slack scim patch failed: %w", herr)
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "remote rejected (status 502)")
}

func TestApplyFixNoResponseInNote(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(context.Context, string, *string) (*string, error) {
			return nil, fmt.Errorf("doing request: %w", context.DeadlineExceeded)
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "no response from remote")
}

func TestApplyFixRemoveManager(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(_ context.Context, _ string, managerID *string) (*string, error) {
			if managerID != nil {
				t.Errorf("remove should write a nil manager, got %q", *managerID)
			}
			return nil, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff: domain.UserDiff{
			LeftEmail:        domain.StrPtr("dev@x.com"),
			RightEmail:       domain.StrPtr("dev@x.com"),
			LeftManagerEmail: domain.StrPtr("mgr@x.com"),
		},
		Action: domain.ActionRemoveManager,
		State:  domain.StatePending,
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)
}

func TestApplyFixDeactivate(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetActiveFunc: func(_ context.Context, userID string, active bool) (bool, error) {
			assert.Equal(t, "t1", userID)
			assert.False(t, active)
			return false, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff:   domain.UserDiff{LeftEmail: domain.StrPtr("dev@x.com")},
		Action: domain.ActionDeactivate,
		State:  domain.StatePending,
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)
}

func TestApplyFixDeactivateStillActive(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetActiveFunc: func(context.Context, string, bool) (bool, error) {
			return true, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff:   domain.UserDiff{LeftEmail: domain.StrPtr("dev@x.com")},
		Action: domain.ActionDeactivate,
		State:  domain.StatePending,
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "still active")
}

func TestApplyFixSetTitle(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetTitleFunc: func(_ context.Context, _ string, title *string) (*string, error) {
			return title, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff: domain.UserDiff{
			LeftEmail:  domain.StrPtr("dev@x.com"),
			RightEmail: domain.StrPtr("dev@x.com"),
		},
		Action: domain.ActionSetTitle,
		State:  domain.StatePending,
		Title:  domain.StrPtr("Engineer"),
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)
}

func TestApplyFixAddProfileOnly(t *testing.T) {
	target, source := testSnapshots()
	var created NewUser
	mock := &mockTarget{
		CreateUserFunc: func(_ context.Context, user NewUser) (string, error) {
			created = user
			return "new-id", nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff: domain.UserDiff{
			RightEmail:        domain.StrPtr("new.hire@x.com"),
			RightManagerEmail: domain.StrPtr("mgr@x.com"),
		},
		Action:          domain.ActionAddToTarget,
		State:           domain.StatePending,
		Mode:            domain.AddModeProfileOnly,
		NewManagerEmail: domain.StrPtr("mgr@x.com"),
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)

	assert.True(t, created.ProfileOnly)
	assert.Equal(t, "new.hire+slackprofile@x.com", created.Email)
	assert.Equal(t, "new.hir.profile-only", created.UserName)
	require.NotNil(t, created.ManagerID)
	assert.Equal(t, "t2", *created.ManagerID)
}

func TestApplyFixAddFullUser(t *testing.T) {
	target, source := testSnapshots()
	var created NewUser
	mock := &mockTarget{
		CreateUserFunc: func(_ context.Context, user NewUser) (string, error) {
			created = user
			return "new-id", nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff:   domain.UserDiff{RightEmail: domain.StrPtr("new.hire@x.com")},
		Action: domain.ActionAddToTarget,
		State:  domain.StatePending,
		Mode:   domain.AddModeFullUser,
	}
	_, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)

	assert.False(t, created.ProfileOnly)
	assert.Equal(t, "new.hire@x.com", created.Email)
	assert.Equal(t, "new.hire", created.UserName)
}

func TestApplyFixAddUsesSourceNames(t *testing.T) {
	// Names come from the HR file, not from mangling the email local part:
	// hyphens and apostrophes must survive into the create payload.
	csv := "id,firstName,lastName,title,email,managerId\n" +
		"1,Mary-Jane,O'Brien,Engineer,mj.obrien@x.com,\n"
	source := hierarchy.BuildFromCSV(csv, nil)
	target := snap()

	diffs := Compare(target, source)
	records := Classify(diffs["mj.obrien@x.com"], target, source)
	require.Len(t, records, 1)
	require.Equal(t, domain.ActionAddToTarget, records[0].Action)

	var created NewUser
	mock := &mockTarget{
		CreateUserFunc: func(_ context.Context, user NewUser) (string, error) {
			created = user
			return "new-id", nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	state, err := r.ApplyFix(context.Background(), records[0])
	require.NoError(t, err)
	assert.Equal(t, domain.StateFixed, state)

	assert.Equal(t, "Mary-Jane", created.FirstName)
	assert.Equal(t, "O'Brien", created.LastName)
	assert.Equal(t, "Engineer", created.Title)
	assert.Equal(t, "mj.obrien+slackprofile@x.com", created.Email)
	assert.Equal(t, "mar.o'b.profile-only", created.UserName)
}

func TestApplyFixPreconditionStaysPending(t *testing.T) {
	// A record the classifier should never emit: UpdateManager without a
	// resolved manager. The fix must error out before any remote call and
	// leave the record Pending.
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(context.Context, string, *string) (*string, error) {
			t.Fatal("remote call made despite precondition failure")
			return nil, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	rec.NewManagerEmail = nil
	state, err := r.ApplyFix(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, domain.StatePending, state)
	assert.Equal(t, domain.StatePending, rec.State)
}

func TestApplyFixRejectsTerminalRecord(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{
		SetManagerFunc: func(_ context.Context, _ string, managerID *string) (*string, error) {
			return managerID, nil
		},
	}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	_, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, rec.State.Terminal())

	_, err = r.ApplyFix(context.Background(), rec)
	require.Error(t, err)
	assert.Equal(t, domain.StateFixed, rec.State, "terminal state must not change")
}

func TestApplyFixRejectsInFlightRecord(t *testing.T) {
	target, source := testSnapshots()
	mock := &mockTarget{}
	r := NewReconciler(mock, target, source, nil)

	rec := updateManagerRecord()
	rec.State = domain.StateFixing
	_, err := r.ApplyFix(context.Background(), rec)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in flight")
}

func TestApplyFixCannotFixRecordStaysCannotFix(t *testing.T) {
	target, source := testSnapshots()
	r := NewReconciler(&mockTarget{}, target, source, nil)

	rec := &domain.ReconciliationRecord{
		Diff:   domain.UserDiff{RightEmail: domain.StrPtr("dev@x.com")},
		Action: domain.ActionCannotFix,
		Note:   "manager ghost@x.com is not present in the target; create the manager in the target first",
		State:  domain.StatePending,
	}
	state, err := r.ApplyFix(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StateCannotFix, state)
	assert.Contains(t, rec.Note, "create the manager in the target first")
}
