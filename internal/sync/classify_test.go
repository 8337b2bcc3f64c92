package sync

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsync/internal/domain"
)

func classifyOne(t *testing.T, target, source domain.Snapshot, email string) []*domain.ReconciliationRecord {
	t.Helper()
	diffs := Compare(target, source)
	d, ok := diffs[email]
	require.True(t, ok, "expected a diff for %s", email)
	return Classify(d, target, source)
}

func TestClassifyDeactivate(t *testing.T) {
	// In the target directory, gone from the source of record.
	target := snap(user("1", "a@x.com", nil))
	source := snap()

	records := classifyOne(t, target, source, "a@x.com")
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionDeactivate, records[0].Action)
	assert.Equal(t, domain.StatePending, records[0].State)
}

func TestClassifyAddToTarget(t *testing.T) {
	target := snap()
	source := snap(user("1", "b@x.com", nil))

	records := classifyOne(t, target, source, "b@x.com")
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionAddToTarget, records[0].Action)
	// Default sub-option is profile-only; the operator may switch to a
	// full user before applying.
	assert.Equal(t, domain.AddModeProfileOnly, records[0].Mode)
}

func TestClassifyUpdateManagerResolvable(t *testing.T) {
	target := snap(
		user("t1", "c@x.com", nil),
		user("t2", "m@x.com", nil),
	)
	source := snap(
		user("s1", "c@x.com", domain.StrPtr("m@x.com")),
		user("s2", "m@x.com", nil),
	)

	records := classifyOne(t, target, source, "c@x.com")
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionUpdateManager, records[0].Action)
	require.NotNil(t, records[0].NewManagerEmail)
	assert.Equal(t, "m@x.com", *records[0].NewManagerEmail)
}

func TestClassifyUpdateManagerUnresolvable(t *testing.T) {
	// Same as above but the new manager does not exist in the target.
	target := snap(user("t1", "c@x.com", nil))
	source := snap(
		user("s1", "c@x.com", domain.StrPtr("m@x.com")),
		user("s2", "m@x.com", nil),
	)

	records := classifyOne(t, target, source, "c@x.com")
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionCannotFix, records[0].Action)
	assert.Contains(t, records[0].Note, "create the manager in the target first")
}

func TestClassifyManagerDiffersBothSet(t *testing.T) {
	target := snap(
		user("t1", "c@x.com", domain.StrPtr("old@x.com")),
		user("t2", "old@x.com", nil),
		user("t3", "new@x.com", nil),
	)
	source := snap(
		user("s1", "c@x.com", domain.StrPtr("new@x.com")),
		user("s3", "new@x.com", nil),
	)

	records := classifyOne(t, target, source, "c@x.com")
	var actions []domain.FixAction
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	assert.Contains(t, actions, domain.ActionUpdateManager)
}

func TestClassifyRemoveManager(t *testing.T) {
	target := snap(
		user("t1", "c@x.com", domain.StrPtr("m@x.com")),
		user("t2", "m@x.com", nil),
	)
	source := snap(user("s1", "c@x.com", nil))

	records := classifyOne(t, target, source, "c@x.com")
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionRemoveManager, records[0].Action)
}

func TestClassifySetTitleIndependent(t *testing.T) {
	// Manager mismatch and missing title on the same user: both axes
	// fire, two records.
	target := snap(
		user("t1", "c@x.com", nil),
		user("t2", "m@x.com", nil),
	)
	src := user("s1", "c@x.com", domain.StrPtr("m@x.com"))
	src.Title = domain.StrPtr("Engineer")
	source := snap(src, user("s2", "m@x.com", nil))

	records := classifyOne(t, target, source, "c@x.com")
	require.Len(t, records, 2)

	var actions []domain.FixAction
	for _, r := range records {
		actions = append(actions, r.Action)
	}
	assert.Contains(t, actions, domain.ActionUpdateManager)
	assert.Contains(t, actions, domain.ActionSetTitle)

	for _, r := range records {
		if r.Action == domain.ActionSetTitle {
			require.NotNil(t, r.Title)
			assert.Equal(t, "Engineer", *r.Title)
		}
	}
}

func TestClassifyFallbackContactSupport(t *testing.T) {
	// A structurally inconsistent diff (both sides present, managers
	// equal) should never come out of Compare; if one reaches the
	// classifier anyway, it must surface as CannotFix.
	target := snap(user("t1", "c@x.com", nil))
	source := snap(user("s1", "c@x.com", nil))

	d := domain.UserDiff{
		LeftEmail:  domain.StrPtr("c@x.com"),
		RightEmail: domain.StrPtr("c@x.com"),
	}
	records := Classify(d, target, source)
	require.Len(t, records, 1)
	assert.Equal(t, domain.ActionCannotFix, records[0].Action)
	assert.Equal(t, "contact support", records[0].Note)
}

func TestClassifyIdempotent(t *testing.T) {
	target := snap(
		user("t1", "c@x.com", nil),
		user("t2", "m@x.com", nil),
	)
	source := snap(
		user("s1", "c@x.com", domain.StrPtr("m@x.com")),
		user("s2", "m@x.com", nil),
	)

	diffs := Compare(target, source)
	d := diffs["c@x.com"]

	first := Classify(d, target, source)
	second := Classify(d, target, source)
	require.Equal(t, len(first), len(second))
	for i := range first {
		if !reflect.DeepEqual(*first[i], *second[i]) {
			t.Errorf("classification %d differs between runs", i)
		}
	}
}
