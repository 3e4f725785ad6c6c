package accrual

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// ── Mock RebuildStore ──

type profileSkillKey struct {
	profileID int64
	skillID   int64
}

type mockStore struct {
	shifts      map[int64]*domain.Shift
	shiftSkills map[int64][]domain.ShiftSkill
	records     []*domain.VolunteerShift
	hours       map[profileSkillKey]float64
	adds        []int64
}

func newMockStore() *mockStore {
	return &mockStore{
		shifts:      make(map[int64]*domain.Shift),
		shiftSkills: make(map[int64][]domain.ShiftSkill),
		hours:       make(map[profileSkillKey]float64),
	}
}

func (m *mockStore) GetShift(_ context.Context, shiftID int64) (*domain.Shift, error) {
	s, ok := m.shifts[shiftID]
	if !ok {
		return nil, domain.ErrShiftNotFound
	}
	return s, nil
}

func (m *mockStore) GetShiftSkills(_ context.Context, shiftID int64) ([]domain.ShiftSkill, error) {
	return m.shiftSkills[shiftID], nil
}

func (m *mockStore) AddProfileSkillHours(_ context.Context, profileID, skillID int64, delta float64) error {
	key := profileSkillKey{profileID, skillID}
	m.hours[key] = math.Max(m.hours[key]+delta, 0)
	m.adds = append(m.adds, skillID)
	return nil
}

func (m *mockStore) ListReviewedVolunteerShifts(_ context.Context, accountID int64) ([]*domain.VolunteerShift, error) {
	var result []*domain.VolunteerShift
	for _, r := range m.records {
		if r.AccountID == accountID && r.Completion != nil {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockStore) GetProfileSkills(_ context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	var result []domain.ProfileSkill
	for key, hours := range m.hours {
		if key.profileID == profileID {
			result = append(result, domain.ProfileSkill{ProfileID: profileID, SkillID: key.skillID, Hours: hours})
		}
	}
	return result, nil
}

func (m *mockStore) SetProfileSkillHours(_ context.Context, profileID, skillID int64, hours float64) error {
	m.hours[profileSkillKey{profileID, skillID}] = hours
	return nil
}

// ── 测试辅助 ──

var base = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

func addShift(m *mockStore, id int64, hours time.Duration, skills ...domain.ShiftSkill) {
	m.shifts[id] = &domain.Shift{ID: id, StartTime: base, EndTime: base.Add(hours)}
	for i := range skills {
		skills[i].ShiftID = id
	}
	m.shiftSkills[id] = skills
}

func pct(v float64) *float64 { return &v }

// ════════════════════════════════════════════════════════════
// Reconcile
// ════════════════════════════════════════════════════════════

func TestReconcile_ReviewThenReReview(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	addShift(store, 1, 4*time.Hour, domain.ShiftSkill{SkillID: 7, Hours: 2})

	require.NoError(t, Reconcile(ctx, store, 100, 1, 0, 0.5))
	assert.InDelta(t, 4.0, store.hours[profileSkillKey{100, 7}], Epsilon)

	require.NoError(t, Reconcile(ctx, store, 100, 1, 0.5, 0.8))
	assert.InDelta(t, 6.4, store.hours[profileSkillKey{100, 7}], Epsilon)
}

func TestReconcile_Inverse(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	addShift(store, 1, 3*time.Hour, domain.ShiftSkill{SkillID: 1, Hours: 1.5}, domain.ShiftSkill{SkillID: 2, Hours: 0.25})
	store.hours[profileSkillKey{5, 1}] = 10
	store.hours[profileSkillKey{5, 2}] = 3

	require.NoError(t, Reconcile(ctx, store, 5, 1, 0.2, 0.9))
	require.NoError(t, Reconcile(ctx, store, 5, 1, 0.9, 0.2))

	assert.InDelta(t, 10, store.hours[profileSkillKey{5, 1}], Epsilon)
	assert.InDelta(t, 3, store.hours[profileSkillKey{5, 2}], Epsilon)
}

func TestReconcile_OrderIndependent(t *testing.T) {
	shift := &domain.Shift{StartTime: base, EndTime: base.Add(5 * time.Hour)}
	s1 := domain.ShiftSkill{SkillID: 1, Hours: 2}
	s2 := domain.ShiftSkill{SkillID: 2, Hours: 3}

	forward := Deltas(shift, []domain.ShiftSkill{s1, s2}, 0, 0.6)
	backward := Deltas(shift, []domain.ShiftSkill{s2, s1}, 0, 0.6)

	assert.Equal(t, forward, backward)
	assert.InDelta(t, 6.0, forward[1], Epsilon)
	assert.InDelta(t, 9.0, forward[2], Epsilon)
}

func TestReconcile_NoChangeSkipsStore(t *testing.T) {
	store := newMockStore()
	require.NoError(t, Reconcile(context.Background(), store, 1, 404, 0.5, 0.5))
	assert.Empty(t, store.adds)
}

func TestReconcile_ShiftNotFound(t *testing.T) {
	store := newMockStore()
	err := Reconcile(context.Background(), store, 1, 404, 0, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReconcile_NoSkills(t *testing.T) {
	store := newMockStore()
	addShift(store, 1, 2*time.Hour)
	require.NoError(t, Reconcile(context.Background(), store, 1, 1, 0, 1))
	assert.Empty(t, store.hours)
}

// ════════════════════════════════════════════════════════════
// RebuildAll / Check
// ════════════════════════════════════════════════════════════

func TestRebuildAll_MatchesIncremental(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	addShift(store, 1, 4*time.Hour, domain.ShiftSkill{SkillID: 1, Hours: 2}, domain.ShiftSkill{SkillID: 2, Hours: 1})
	addShift(store, 2, 90*time.Minute, domain.ShiftSkill{SkillID: 2, Hours: 3})
	addShift(store, 3, 8*time.Hour, domain.ShiftSkill{SkillID: 3, Hours: 0.5})

	rng := rand.New(rand.NewSource(42))
	records := map[int64]*domain.VolunteerShift{}
	for i := 0; i < 200; i++ {
		shiftID := int64(rng.Intn(3) + 1)
		record, ok := records[shiftID]
		if !ok {
			record = &domain.VolunteerShift{ID: shiftID, AccountID: 9, ShiftID: shiftID}
			records[shiftID] = record
			store.records = append(store.records, record)
		}
		prev := record.CompletionFraction()
		record.Completion = pct(float64(rng.Intn(101)))
		require.NoError(t, Reconcile(ctx, store, 9, shiftID, prev, record.CompletionFraction()))
	}

	drifts, err := Check(ctx, store, 9)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	before := map[profileSkillKey]float64{}
	for k, v := range store.hours {
		before[k] = v
	}
	_, err = RebuildAll(ctx, store, 9)
	require.NoError(t, err)
	for k, v := range before {
		assert.InDelta(t, v, store.hours[k], Epsilon)
	}
}

func TestRebuildAll_FixesDriftAndZeroesOrphans(t *testing.T) {
	ctx := context.Background()
	store := newMockStore()
	addShift(store, 1, 4*time.Hour, domain.ShiftSkill{SkillID: 7, Hours: 2})
	store.records = []*domain.VolunteerShift{
		{ID: 1, AccountID: 3, ShiftID: 1, Completion: pct(50)},
		{ID: 2, AccountID: 3, ShiftID: 1}, // 未审核，不计入
	}
	store.hours[profileSkillKey{3, 7}] = 100
	store.hours[profileSkillKey{3, 8}] = 5

	drifts, err := Check(ctx, store, 3)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	assert.Equal(t, domain.SkillDrift{SkillID: 7, Stored: 100, Expected: 4}, drifts[0])
	assert.Equal(t, domain.SkillDrift{SkillID: 8, Stored: 5, Expected: 0}, drifts[1])

	skills, err := RebuildAll(ctx, store, 3)
	require.NoError(t, err)
	assert.Len(t, skills, 2)
	assert.InDelta(t, 4, store.hours[profileSkillKey{3, 7}], Epsilon)
	assert.Equal(t, 0.0, store.hours[profileSkillKey{3, 8}])

	drifts, err = Check(ctx, store, 3)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}
