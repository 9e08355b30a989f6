package service_test

import (
	"sync"
	"time"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

// --- Mock group repository ---

type MockGroupRepo struct {
	mu      sync.Mutex
	Groups  map[int64]string
	Members map[int]int
	Deleted []int
}

func (m *MockGroupRepo) Create(name string) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Groups {
		if existing == name {
			return nil, appErrors.NewGroupNameTaken(name)
		}
	}
	id := int64(len(m.Groups) + 1)
	if m.Groups == nil {
		m.Groups = map[int64]string{}
	}
	m.Groups[id] = name
	return &model.Group{ID: int(id), Name: name, CreatedAt: time.Now()}, nil
}

func (m *MockGroupRepo) Rename(id int, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Groups[int64(id)]; !ok {
		return appErrors.NewGroupNotFound(id)
	}
	m.Groups[int64(id)] = name
	return nil
}

func (m *MockGroupRepo) Delete(id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Groups[int64(id)]; !ok {
		return appErrors.NewGroupNotFound(id)
	}
	delete(m.Groups, int64(id))
	m.Deleted = append(m.Deleted, id)
	return nil
}

func (m *MockGroupRepo) GetByID(id int) (*model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.Groups[int64(id)]
	if !ok {
		return nil, appErrors.NewGroupNotFound(id)
	}
	return &model.Group{ID: id, Name: name, MemberCount: m.Members[id]}, nil
}

func (m *MockGroupRepo) List() ([]model.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	groups := []model.Group{}
	for id, name := range m.Groups {
		groups = append(groups, model.Group{ID: int(id), Name: name, MemberCount: m.Members[int(id)]})
	}
	return groups, nil
}

func (m *MockGroupRepo) MemberCount(id int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Members[id], nil
}

func (m *MockGroupRepo) NamesByIDs(ids []int64) (map[int64]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := map[int64]string{}
	for _, id := range ids {
		if name, ok := m.Groups[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}

var _ repository.GroupRepositoryInterface = (*MockGroupRepo)(nil)

// --- Mock contact repository ---

type MockContactRepo struct {
	mu        sync.Mutex
	Contacts  []model.Contact
	ByGroups  []model.Contact // what ListByGroups returns, duplicates allowed
	Counts    []int           // successive Count() results; last one repeats
	countCall int
	SetGroups map[int]*int
	Remarks   map[int]string
	Upserted  [][]model.ContactSnapshot
}

func (m *MockContactRepo) List(filter string) ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Contacts, nil
}

func (m *MockContactRepo) GetByID(id int) (*model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Contacts {
		if m.Contacts[i].ID == id {
			return &m.Contacts[i], nil
		}
	}
	return nil, appErrors.NewContactNotFound(id)
}

func (m *MockContactRepo) Count() (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Counts) == 0 {
		return len(m.Contacts), nil
	}
	i := m.countCall
	if i >= len(m.Counts) {
		i = len(m.Counts) - 1
	}
	m.countCall++
	return m.Counts[i], nil
}

// CountCalls reports how many times Count was polled.
func (m *MockContactRepo) CountCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.countCall
}

func (m *MockContactRepo) UpsertSnapshot(snapshot []model.ContactSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Upserted = append(m.Upserted, snapshot)
	return nil
}

func (m *MockContactRepo) SetGroup(contactID int, groupID *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetGroups == nil {
		m.SetGroups = map[int]*int{}
	}
	m.SetGroups[contactID] = groupID
	return nil
}

func (m *MockContactRepo) UpdateRemark(contactID int, remark string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Remarks == nil {
		m.Remarks = map[int]string{}
	}
	m.Remarks[contactID] = remark
	return nil
}

func (m *MockContactRepo) ListByGroups(groupIDs []int64) ([]model.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ByGroups, nil
}

var _ repository.ContactRepositoryInterface = (*MockContactRepo)(nil)

// --- Mock delivery history repository ---

type MockHistoryRepo struct {
	mu      sync.Mutex
	Records []model.DeliveryRecord
}

func (m *MockHistoryRepo) Append(rec *model.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.ID = len(m.Records) + 1
	rec.CreatedAt = time.Now()
	m.Records = append(m.Records, *rec)
	return nil
}

func (m *MockHistoryRepo) List() ([]model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Records, nil
}

var _ repository.DeliveryHistoryRepositoryInterface = (*MockHistoryRepo)(nil)

// --- Mock broadcast job repository (in-memory queue with CAS semantics) ---

type MockJobRepo struct {
	mu     sync.Mutex
	jobs   map[int]*model.BroadcastJob
	nextID int
}

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[int]*model.BroadcastJob{}}
}

func (m *MockJobRepo) Create(j *model.BroadcastJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	j.ID = m.nextID
	j.CreatedAt = time.Now()
	cp := *j
	m.jobs[j.ID] = &cp
	return nil
}

func (m *MockJobRepo) GetByID(id int) (*model.BroadcastJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, appErrors.NewJobNotFound(id)
	}
	cp := *j
	return &cp, nil
}

func (m *MockJobRepo) List() ([]model.BroadcastJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobs := []model.BroadcastJob{}
	for id := m.nextID; id >= 1; id-- {
		if j, ok := m.jobs[id]; ok {
			jobs = append(jobs, *j)
		}
	}
	return jobs, nil
}

func (m *MockJobRepo) DuePending(now time.Time, limit int) ([]model.BroadcastJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := []model.BroadcastJob{}
	for id := 1; id <= m.nextID && len(due) < limit; id++ {
		j, ok := m.jobs[id]
		if ok && j.Status == model.JobStatusPending && !j.RunAt.After(now) {
			due = append(due, *j)
		}
	}
	return due, nil
}

func (m *MockJobRepo) MarkRunning(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusPending {
		return false, nil
	}
	j.Status = model.JobStatusRunning
	now := time.Now()
	j.UpdatedAt = &now
	return true, nil
}

func (m *MockJobRepo) MarkSucceeded(id, total, successCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = model.JobStatusSucceeded
	j.Total = &total
	j.SuccessCount = &successCount
	now := time.Now()
	j.UpdatedAt = &now
	return nil
}

func (m *MockJobRepo) MarkFailed(id int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j := m.jobs[id]
	j.Status = model.JobStatusFailed
	j.Error = &errMsg
	now := time.Now()
	j.UpdatedAt = &now
	return nil
}

func (m *MockJobRepo) CancelPending(id int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok || j.Status != model.JobStatusPending {
		return false, nil
	}
	j.Status = model.JobStatusCancelled
	now := time.Now()
	j.UpdatedAt = &now
	return true, nil
}

func (m *MockJobRepo) FailStaleRunning(olderThan time.Time, errMsg string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, j := range m.jobs {
		if j.Status == model.JobStatusRunning && j.UpdatedAt != nil && j.UpdatedAt.Before(olderThan) {
			j.Status = model.JobStatusFailed
			msg := errMsg
			j.Error = &msg
			n++
		}
	}
	return n, nil
}

var _ repository.BroadcastJobRepositoryInterface = (*MockJobRepo)(nil)
