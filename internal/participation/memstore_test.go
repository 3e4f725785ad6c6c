package participation

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sysu-ecnc-dev/volunteer-manager/backend/internal/domain"
)

// ── Mock Store ──

type profileSkillKey struct {
	profileID int64
	skillID   int64
}

type memStore struct {
	mu          sync.Mutex
	activities  map[int64]*domain.Activity
	shifts      map[int64]*domain.Shift
	shiftSkills map[int64][]domain.ShiftSkill
	records     map[int64]*domain.VolunteerShift
	hours       map[profileSkillKey]float64
	nextID      int64

	// 事务内第一次读取报名记录后调用一次，用于模拟并发修改
	onTxRead func(id int64)
	// 事务内读取这些记录时返回错误
	brokenRecords map[int64]bool
	listErr       error
	addHoursErr   error
}

func newMemStore() *memStore {
	return &memStore{
		activities:    make(map[int64]*domain.Activity),
		shifts:        make(map[int64]*domain.Shift),
		shiftSkills:   make(map[int64][]domain.ShiftSkill),
		records:       make(map[int64]*domain.VolunteerShift),
		hours:         make(map[profileSkillKey]float64),
		brokenRecords: make(map[int64]bool),
	}
}

func copyRecord(vs *domain.VolunteerShift) *domain.VolunteerShift {
	c := *vs
	return &c
}

func (m *memStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &memTx{s: m}
	if err := fn(tx); err != nil {
		m.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) GetShift(_ context.Context, shiftID int64) (*domain.Shift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shifts[shiftID]
	if !ok {
		return nil, domain.ErrShiftNotFound
	}
	c := *s
	return &c, nil
}

func (m *memStore) GetVolunteerShift(_ context.Context, id int64) (*domain.VolunteerShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	vs, ok := m.records[id]
	if !ok {
		return nil, domain.ErrVolunteerShiftNotFound
	}
	return copyRecord(vs), nil
}

func (m *memStore) sortedRecords() []*domain.VolunteerShift {
	result := make([]*domain.VolunteerShift, 0, len(m.records))
	for _, vs := range m.records {
		result = append(result, copyRecord(vs))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

func (m *memStore) ListVolunteerShifts(_ context.Context, filter domain.VolunteerShiftFilter, page domain.Page) ([]*domain.VolunteerShift, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []*domain.VolunteerShift{}
	for _, vs := range m.sortedRecords() {
		if vs.ID <= page.After {
			continue
		}
		if filter.ShiftID != nil && vs.ShiftID != *filter.ShiftID {
			continue
		}
		if filter.AccountID != nil && vs.AccountID != *filter.AccountID {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, s := range filter.Statuses {
				matched = matched || s == vs.Status
			}
			if !matched {
				continue
			}
		}
		result = append(result, vs)
		if len(result) == page.Limit {
			break
		}
	}
	return result, nil
}

func (m *memStore) ListExpiredPendingIDs(_ context.Context, now time.Time, after int64, limit int) ([]int64, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ids := []int64{}
	for _, vs := range m.sortedRecords() {
		if vs.ID <= after || vs.Status != domain.VolunteerShiftPending {
			continue
		}
		if m.shifts[vs.ShiftID].HasStarted(now) {
			ids = append(ids, vs.ID)
		}
		if len(ids) == limit {
			break
		}
	}
	return ids, nil
}

func (m *memStore) ListProfileIDs(_ context.Context, after int64, limit int) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := map[int64]bool{}
	for _, vs := range m.records {
		seen[vs.AccountID] = true
	}
	for key := range m.hours {
		seen[key.profileID] = true
	}

	ids := []int64{}
	for id := range seen {
		if id > after {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *memStore) GetProfileSkills(_ context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []domain.ProfileSkill{}
	for key, hours := range m.hours {
		if key.profileID == profileID {
			result = append(result, domain.ProfileSkill{ProfileID: profileID, SkillID: key.skillID, Hours: hours})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].SkillID < result[j].SkillID })
	return result, nil
}

func (m *memStore) approvedCount(shiftID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, vs := range m.records {
		if vs.ShiftID == shiftID && vs.Status == domain.VolunteerShiftApproved {
			n++
		}
	}
	return n
}

// ── Mock Tx ──

type memTx struct {
	s    *memStore
	undo []func()
}

func (t *memTx) GetShift(ctx context.Context, shiftID int64) (*domain.Shift, error) {
	return t.s.GetShift(ctx, shiftID)
}

func (t *memTx) LockShift(ctx context.Context, shiftID int64) (*domain.Shift, error) {
	return t.s.GetShift(ctx, shiftID)
}

func (t *memTx) GetShiftSkills(_ context.Context, shiftID int64) ([]domain.ShiftSkill, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	return append([]domain.ShiftSkill{}, t.s.shiftSkills[shiftID]...), nil
}

func (t *memTx) GetActivity(_ context.Context, activityID int64) (*domain.Activity, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	a, ok := t.s.activities[activityID]
	if !ok {
		return nil, domain.ErrActivityNotFound
	}
	c := *a
	return &c, nil
}

func (t *memTx) GetVolunteerShift(ctx context.Context, id int64) (*domain.VolunteerShift, error) {
	if t.s.brokenRecords[id] {
		return nil, context.DeadlineExceeded
	}
	vs, err := t.s.GetVolunteerShift(ctx, id)
	if err != nil {
		return nil, err
	}
	if hook := t.s.onTxRead; hook != nil {
		t.s.onTxRead = nil
		hook(id)
	}
	return vs, nil
}

func (t *memTx) HasActiveVolunteerShift(_ context.Context, accountID, shiftID int64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, vs := range t.s.records {
		if vs.AccountID == accountID && vs.ShiftID == shiftID && vs.Active {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) CountApproved(_ context.Context, shiftID, excludeID int64) (int, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	n := 0
	for _, vs := range t.s.records {
		if vs.ShiftID == shiftID && vs.ID != excludeID && vs.Status == domain.VolunteerShiftApproved {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CreateVolunteerShift(_ context.Context, vs *domain.VolunteerShift) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextID++
	vs.ID = t.s.nextID
	vs.Version = 1
	t.s.records[vs.ID] = copyRecord(vs)
	id := vs.ID
	t.undo = append(t.undo, func() { delete(t.s.records, id) })
	return nil
}

func (t *memTx) UpdateVolunteerShift(_ context.Context, vs *domain.VolunteerShift) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	stored, ok := t.s.records[vs.ID]
	if !ok {
		return domain.ErrVolunteerShiftNotFound
	}
	if stored.Version != vs.Version {
		return domain.ErrVolunteerShiftModified
	}
	old := copyRecord(stored)
	vs.Version++
	t.s.records[vs.ID] = copyRecord(vs)
	t.undo = append(t.undo, func() { t.s.records[old.ID] = old })
	return nil
}

func (t *memTx) AddProfileSkillHours(_ context.Context, profileID, skillID int64, delta float64) error {
	if t.s.addHoursErr != nil {
		return t.s.addHoursErr
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := profileSkillKey{profileID, skillID}
	old, existed := t.s.hours[key]
	t.s.hours[key] = math.Max(old+delta, 0)
	t.undo = append(t.undo, func() {
		if existed {
			t.s.hours[key] = old
		} else {
			delete(t.s.hours, key)
		}
	})
	return nil
}

func (t *memTx) ListReviewedVolunteerShifts(_ context.Context, accountID int64) ([]*domain.VolunteerShift, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	result := []*domain.VolunteerShift{}
	for _, vs := range t.s.sortedRecords() {
		if vs.AccountID == accountID && vs.Completion != nil {
			result = append(result, vs)
		}
	}
	return result, nil
}

func (t *memTx) GetProfileSkills(ctx context.Context, profileID int64) ([]domain.ProfileSkill, error) {
	return t.s.GetProfileSkills(ctx, profileID)
}

func (t *memTx) SetProfileSkillHours(_ context.Context, profileID, skillID int64, hours float64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	key := profileSkillKey{profileID, skillID}
	old, existed := t.s.hours[key]
	t.s.hours[key] = hours
	t.undo = append(t.undo, func() {
		if existed {
			t.s.hours[key] = old
		} else {
			delete(t.s.hours, key)
		}
	})
	return nil
}

// ── Mock Authorizer / Notifier ──

type mockGate struct {
	managers map[int64][]int64 // activityID -> actorIDs
	err      error
}

func (g *mockGate) CanManage(_ context.Context, actorID, activityID int64) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	for _, id := range g.managers[activityID] {
		if id == actorID {
			return true, nil
		}
	}
	return false, nil
}

type mockNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *mockNotifier) Notify(_ context.Context, event Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *mockNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	result := []string{}
	for _, e := range n.events {
		result = append(result, e.Type)
	}
	return result
}
