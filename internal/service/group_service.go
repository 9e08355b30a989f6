// internal/service/group_service.go
package service

import (
	"strings"
	"sync"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

// GroupService owns group lifecycle and contact membership. Deleting a group
// and assigning a contact into it are serialized per group, so the
// empty-check before delete cannot race a concurrent assignment.
type GroupService struct {
	GroupRepo   repository.GroupRepositoryInterface
	ContactRepo repository.ContactRepositoryInterface

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (s *GroupService) groupLock(id int) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = map[int]*sync.Mutex{}
	}
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *GroupService) ListGroups() ([]model.Group, error) {
	return s.GroupRepo.List()
}

func (s *GroupService) CreateGroup(name string) (*model.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, appErrors.NewInvalidArgument("group name cannot be empty")
	}
	return s.GroupRepo.Create(name)
}

func (s *GroupService) RenameGroup(id int, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return appErrors.NewInvalidArgument("group name cannot be empty")
	}
	return s.GroupRepo.Rename(id, name)
}

// DeleteGroup removes an empty group. The member check and the delete run
// under the group's lock so no assignment can slip in between.
func (s *GroupService) DeleteGroup(id int) error {
	l := s.groupLock(id)
	l.Lock()
	defer l.Unlock()

	members, err := s.GroupRepo.MemberCount(id)
	if err != nil {
		return err
	}
	if members > 0 {
		return appErrors.NewGroupNotEmpty(id, members)
	}
	return s.GroupRepo.Delete(id)
}

// AssignContact moves a contact into a group, or clears the assignment when
// groupID is nil. Assigning holds the target group's lock while the group's
// existence is validated and the reference written.
func (s *GroupService) AssignContact(contactID int, groupID *int) error {
	if groupID == nil {
		return s.ContactRepo.SetGroup(contactID, nil)
	}

	l := s.groupLock(*groupID)
	l.Lock()
	defer l.Unlock()

	if _, err := s.GroupRepo.GetByID(*groupID); err != nil {
		return err
	}
	return s.ContactRepo.SetGroup(contactID, groupID)
}
