// internal/service/roster_service.go
package service

import (
	"strings"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

// RosterService owns contact listing and operator mutations, and ingests
// roster snapshots pushed by the external channel.
type RosterService struct {
	ContactRepo repository.ContactRepositoryInterface
}

// ListContacts returns the roster, optionally narrowed by a
// case-insensitive substring filter over name, uid, region and phone.
func (s *RosterService) ListContacts(filter string) ([]model.Contact, error) {
	return s.ContactRepo.List(filter)
}

func (s *RosterService) UpdateRemark(contactID int, remark string) error {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return appErrors.NewInvalidArgument("remark cannot be empty")
	}
	return s.ContactRepo.UpdateRemark(contactID, remark)
}

// ApplySnapshot merges an external roster snapshot into the store. Profile
// fields only; remark and group assignment stay untouched.
func (s *RosterService) ApplySnapshot(snapshot []model.ContactSnapshot) error {
	if len(snapshot) == 0 {
		return nil
	}
	return s.ContactRepo.UpsertSnapshot(snapshot)
}
