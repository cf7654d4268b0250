package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"companion-backend/internal/models"
)

// ErrForeignKey mirrors the database's referential checks in the memory store
var ErrForeignKey = errors.New("foreign key violation")

// MemoryStore keeps every table in process memory. It backs local
// development (database.driver=memory) and the service/handler tests.
// Transactions are serialized and rolled back by restoring a snapshot.
type MemoryStore struct {
	mu sync.Mutex
	t  *memTables

	// FailHook, when set, is consulted before every write with an operation
	// name such as "dependents.delete"; a non-nil result fails that write.
	FailHook func(op string) error
}

type prefKey struct {
	dependentID int
	kind        models.PreferenceKind
}

type memTables struct {
	nextID       int
	caregivers   map[int]models.Caregiver
	dependents   map[int]models.Dependent
	preferences  map[prefKey][]string
	chatLogs     []models.ChatLogEntry
	memoryTests  []models.MemoryTestResult
	levelTests   map[int]models.LevelTest
	exerciseLogs []models.ExerciseLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		t: &memTables{
			caregivers:  map[int]models.Caregiver{},
			dependents:  map[int]models.Dependent{},
			preferences: map[prefKey][]string{},
			levelTests:  map[int]models.LevelTest{},
		},
	}
}

func (t *memTables) clone() *memTables {
	c := &memTables{
		nextID:       t.nextID,
		caregivers:   make(map[int]models.Caregiver, len(t.caregivers)),
		dependents:   make(map[int]models.Dependent, len(t.dependents)),
		preferences:  make(map[prefKey][]string, len(t.preferences)),
		chatLogs:     append([]models.ChatLogEntry(nil), t.chatLogs...),
		memoryTests:  append([]models.MemoryTestResult(nil), t.memoryTests...),
		levelTests:   make(map[int]models.LevelTest, len(t.levelTests)),
		exerciseLogs: append([]models.ExerciseLog(nil), t.exerciseLogs...),
	}
	for k, v := range t.caregivers {
		c.caregivers[k] = v
	}
	for k, v := range t.dependents {
		c.dependents[k] = v
	}
	for k, v := range t.preferences {
		c.preferences[k] = append([]string(nil), v...)
	}
	for k, v := range t.levelTests {
		c.levelTests[k] = v
	}
	return c
}

func (s *MemoryStore) Repos() Repos {
	return s.repos(func() func() {
		s.mu.Lock()
		return s.mu.Unlock
	})
}

func (s *MemoryStore) WithTx(_ context.Context, fn func(r Repos) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(s.repos(func() func() { return func() {} })); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) repos(lock func() func()) Repos {
	m := &memRepo{s: s, lock: lock}
	return Repos{
		Caregivers:   memCaregivers{m},
		Dependents:   memDependents{m},
		Preferences:  memPreferences{m},
		ChatLogs:     memChatLogs{m},
		MemoryTests:  memMemoryTests{m},
		LevelTests:   memLevelTests{m},
		ExerciseLogs: memExerciseLogs{m},
	}
}

type memRepo struct {
	s    *MemoryStore
	lock func() func()
}

func (m *memRepo) check(op string) error {
	if m.s.FailHook != nil {
		return m.s.FailHook(op)
	}
	return nil
}

func (m *memRepo) id() int {
	m.s.t.nextID++
	return m.s.t.nextID
}

func sameDay(t time.Time, day *time.Time) bool {
	if day == nil {
		return true
	}
	start, end := dayBounds(*day)
	return !t.Before(start) && t.Before(end)
}

// --- Caregivers ---

type memCaregivers struct{ *memRepo }

func (m memCaregivers) GetByNokID(_ context.Context, nokID string) (*models.Caregiver, error) {
	defer m.lock()()
	for _, c := range m.s.t.caregivers {
		if c.NokID == nokID {
			c := c
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m memCaregivers) GetByID(_ context.Context, id int) (*models.Caregiver, error) {
	defer m.lock()()
	c, ok := m.s.t.caregivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m memCaregivers) ExistsByNokID(ctx context.Context, nokID string) (bool, error) {
	_, err := m.GetByNokID(ctx, nokID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m memCaregivers) Create(_ context.Context, c *models.Caregiver) error {
	defer m.lock()()
	if err := m.check("caregivers.create"); err != nil {
		return err
	}
	for _, existing := range m.s.t.caregivers {
		if existing.NokID == c.NokID {
			return fmt.Errorf("%w: caregivers_nok_id_key", ErrDuplicateKey)
		}
	}
	c.ID = m.id()
	c.CreatedAt = time.Now().UTC()
	m.s.t.caregivers[c.ID] = *c
	return nil
}

func (m memCaregivers) Update(_ context.Context, c *models.Caregiver) error {
	defer m.lock()()
	if err := m.check("caregivers.update"); err != nil {
		return err
	}
	if _, ok := m.s.t.caregivers[c.ID]; !ok {
		return ErrNotFound
	}
	m.s.t.caregivers[c.ID] = *c
	return nil
}

func (m memCaregivers) Delete(_ context.Context, id int) error {
	defer m.lock()()
	if err := m.check("caregivers.delete"); err != nil {
		return err
	}
	if _, ok := m.s.t.caregivers[id]; !ok {
		return ErrNotFound
	}
	for _, d := range m.s.t.dependents {
		if d.CaregiverID == id {
			return fmt.Errorf("%w: dependents_caregiver_id_fkey", ErrForeignKey)
		}
	}
	delete(m.s.t.caregivers, id)
	return nil
}

// --- Dependents ---

type memDependents struct{ *memRepo }

func (m memDependents) GetByUserID(_ context.Context, userID string) (*models.Dependent, error) {
	defer m.lock()()
	for _, d := range m.s.t.dependents {
		if d.UserID == userID {
			d := d
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (m memDependents) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	_, err := m.GetByUserID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m memDependents) ListByCaregiver(_ context.Context, caregiverID int) ([]*models.Dependent, error) {
	defer m.lock()()
	var out []*models.Dependent
	for _, d := range m.s.t.dependents {
		if d.CaregiverID == caregiverID {
			d := d
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memDependents) Create(_ context.Context, d *models.Dependent) error {
	defer m.lock()()
	if err := m.check("dependents.create"); err != nil {
		return err
	}
	if _, ok := m.s.t.caregivers[d.CaregiverID]; !ok {
		return fmt.Errorf("%w: dependents_caregiver_id_fkey", ErrForeignKey)
	}
	for _, existing := range m.s.t.dependents {
		if existing.UserID == d.UserID {
			return fmt.Errorf("%w: dependents_user_id_key", ErrDuplicateKey)
		}
	}
	d.ID = m.id()
	d.LastChatGroup = 0
	d.IsFirst = true
	d.IsExerciseFirst = true
	d.CreatedAt = time.Now().UTC()
	m.s.t.dependents[d.ID] = *d
	return nil
}

func (m memDependents) Update(_ context.Context, d *models.Dependent) error {
	defer m.lock()()
	if err := m.check("dependents.update"); err != nil {
		return err
	}
	if _, ok := m.s.t.dependents[d.ID]; !ok {
		return ErrNotFound
	}
	m.s.t.dependents[d.ID] = *d
	return nil
}

func (m memDependents) Delete(_ context.Context, id int) error {
	defer m.lock()()
	if err := m.check("dependents.delete"); err != nil {
		return err
	}
	if _, ok := m.s.t.dependents[id]; !ok {
		return ErrNotFound
	}
	t := m.s.t
	for k, v := range t.preferences {
		if k.dependentID == id && len(v) > 0 {
			return fmt.Errorf("%w: %s_dependent_id_fkey", ErrForeignKey, k.kind.Field())
		}
	}
	for _, e := range t.chatLogs {
		if e.DependentID == id {
			return fmt.Errorf("%w: chat_logs_dependent_id_fkey", ErrForeignKey)
		}
	}
	for _, r := range t.memoryTests {
		if r.DependentID == id {
			return fmt.Errorf("%w: memory_test_results_dependent_id_fkey", ErrForeignKey)
		}
	}
	for _, l := range t.exerciseLogs {
		if l.DependentID == id {
			return fmt.Errorf("%w: exercise_logs_dependent_id_fkey", ErrForeignKey)
		}
	}
	if _, ok := t.levelTests[id]; ok {
		return fmt.Errorf("%w: level_tests_dependent_id_fkey", ErrForeignKey)
	}
	delete(t.dependents, id)
	return nil
}

// --- Preferences ---

type memPreferences struct{ *memRepo }

func (m memPreferences) List(_ context.Context, dependentID int, kind models.PreferenceKind) ([]string, error) {
	defer m.lock()()
	return append([]string{}, m.s.t.preferences[prefKey{dependentID, kind}]...), nil
}

func (m memPreferences) Replace(_ context.Context, dependentID int, kind models.PreferenceKind, values []string) error {
	defer m.lock()()
	if err := m.check("preferences.replace"); err != nil {
		return err
	}
	if len(values) == 0 {
		delete(m.s.t.preferences, prefKey{dependentID, kind})
		return nil
	}
	m.s.t.preferences[prefKey{dependentID, kind}] = append([]string(nil), values...)
	return nil
}

func (m memPreferences) DeleteAll(_ context.Context, dependentID int) error {
	defer m.lock()()
	if err := m.check("preferences.delete"); err != nil {
		return err
	}
	for _, kind := range models.PreferenceKinds {
		delete(m.s.t.preferences, prefKey{dependentID, kind})
	}
	return nil
}

// --- Chat logs ---

type memChatLogs struct{ *memRepo }

func (m memChatLogs) Append(_ context.Context, entry *models.ChatLogEntry) error {
	defer m.lock()()
	if err := m.check("chat_logs.append"); err != nil {
		return err
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}
	entry.ID = m.id()
	m.s.t.chatLogs = append(m.s.t.chatLogs, *entry)
	return nil
}

func (m memChatLogs) List(_ context.Context, dependentID int, day *time.Time) ([]*models.ChatLogEntry, error) {
	defer m.lock()()
	var out []*models.ChatLogEntry
	for _, e := range m.s.t.chatLogs {
		if e.DependentID == dependentID && sameDay(e.Time, day) {
			e := e
			out = append(out, &e)
		}
	}
	sortChat(out)
	return out, nil
}

func (m memChatLogs) Recent(_ context.Context, dependentID, groupID, limit int) ([]*models.ChatLogEntry, error) {
	defer m.lock()()
	var out []*models.ChatLogEntry
	for _, e := range m.s.t.chatLogs {
		if e.DependentID == dependentID && e.ChatGroupID == groupID {
			e := e
			out = append(out, &e)
		}
	}
	sortChat(out)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m memChatLogs) DeleteAll(_ context.Context, dependentID int) error {
	defer m.lock()()
	if err := m.check("chat_logs.delete"); err != nil {
		return err
	}
	kept := m.s.t.chatLogs[:0:0]
	for _, e := range m.s.t.chatLogs {
		if e.DependentID != dependentID {
			kept = append(kept, e)
		}
	}
	m.s.t.chatLogs = kept
	return nil
}

func sortChat(entries []*models.ChatLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Time.Equal(entries[j].Time) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].Time.Before(entries[j].Time)
	})
}

// --- Memory test results ---

type memMemoryTests struct{ *memRepo }

func (m memMemoryTests) Append(_ context.Context, result *models.MemoryTestResult) error {
	defer m.lock()()
	if err := m.check("memory_test_results.append"); err != nil {
		return err
	}
	if result.Date.IsZero() {
		result.Date = time.Now().UTC()
	}
	result.ID = m.id()
	m.s.t.memoryTests = append(m.s.t.memoryTests, *result)
	return nil
}

func (m memMemoryTests) List(_ context.Context, dependentID int, day *time.Time) ([]*models.MemoryTestResult, error) {
	defer m.lock()()
	var out []*models.MemoryTestResult
	for _, r := range m.s.t.memoryTests {
		if r.DependentID == dependentID && sameDay(r.Date, day) {
			r := r
			out = append(out, &r)
		}
	}
	return out, nil
}

func (m memMemoryTests) DeleteAll(_ context.Context, dependentID int) error {
	defer m.lock()()
	if err := m.check("memory_test_results.delete"); err != nil {
		return err
	}
	kept := m.s.t.memoryTests[:0:0]
	for _, r := range m.s.t.memoryTests {
		if r.DependentID != dependentID {
			kept = append(kept, r)
		}
	}
	m.s.t.memoryTests = kept
	return nil
}

// --- Level tests ---

type memLevelTests struct{ *memRepo }

func (m memLevelTests) Get(_ context.Context, dependentID int) (*models.LevelTest, error) {
	defer m.lock()()
	lt, ok := m.s.t.levelTests[dependentID]
	if !ok {
		return nil, ErrNotFound
	}
	return &lt, nil
}

func (m memLevelTests) Upsert(_ context.Context, lt *models.LevelTest) (bool, error) {
	defer m.lock()()
	if err := m.check("level_tests.upsert"); err != nil {
		return false, err
	}
	existing, ok := m.s.t.levelTests[lt.DependentID]
	if ok {
		lt.ID = existing.ID
	} else {
		lt.ID = m.id()
	}
	m.s.t.levelTests[lt.DependentID] = *lt
	return !ok, nil
}

func (m memLevelTests) Delete(_ context.Context, dependentID int) error {
	defer m.lock()()
	if err := m.check("level_tests.delete"); err != nil {
		return err
	}
	delete(m.s.t.levelTests, dependentID)
	return nil
}

// --- Exercise logs ---

type memExerciseLogs struct{ *memRepo }

func (m memExerciseLogs) Append(_ context.Context, log *models.ExerciseLog) error {
	defer m.lock()()
	if err := m.check("exercise_logs.append"); err != nil {
		return err
	}
	if log.Time.IsZero() {
		log.Time = time.Now().UTC()
	}
	log.ID = m.id()
	m.s.t.exerciseLogs = append(m.s.t.exerciseLogs, *log)
	return nil
}

func (m memExerciseLogs) List(_ context.Context, dependentID int, day *time.Time) ([]*models.ExerciseLog, error) {
	defer m.lock()()
	var out []*models.ExerciseLog
	for _, l := range m.s.t.exerciseLogs {
		if l.DependentID == dependentID && sameDay(l.Time, day) {
			l := l
			out = append(out, &l)
		}
	}
	return out, nil
}

func (m memExerciseLogs) DeleteAll(_ context.Context, dependentID int) error {
	defer m.lock()()
	if err := m.check("exercise_logs.delete"); err != nil {
		return err
	}
	kept := m.s.t.exerciseLogs[:0:0]
	for _, l := range m.s.t.exerciseLogs {
		if l.DependentID != dependentID {
			kept = append(kept, l)
		}
	}
	m.s.t.exerciseLogs = kept
	return nil
}
