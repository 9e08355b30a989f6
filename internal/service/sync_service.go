// internal/service/sync_service.go
package service

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/wxpilot/broadcast-backend/internal/channel"
	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultMaxPollAttempts = 15
)

// SyncService asks the external channel to refresh the roster and detects
// completion by watching the contact count. The external operation gives no
// push notification, so completion is either "count changed" or "poll budget
// exhausted with no change"; both are success, since the external roster may
// legitimately be unchanged.
type SyncService struct {
	ContactRepo repository.ContactRepositoryInterface
	Channel     channel.Channel

	PollInterval    time.Duration
	MaxPollAttempts int

	inFlight atomic.Bool
}

type SyncResult struct {
	FinalCount int             `json:"final_count"`
	Contacts   []model.Contact `json:"contacts"`
}

func NewSyncService(contactRepo repository.ContactRepositoryInterface, ch channel.Channel) *SyncService {
	return &SyncService{
		ContactRepo:     contactRepo,
		Channel:         ch,
		PollInterval:    defaultPollInterval,
		MaxPollAttempts: defaultMaxPollAttempts,
	}
}

// Synchronize triggers a roster refresh and waits for it to settle. Only one
// synchronization may be in flight per process; a concurrent call fails fast
// with AlreadyInProgress instead of queueing.
func (s *SyncService) Synchronize(ctx context.Context) (*SyncResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, appErrors.NewSyncInProgress()
	}
	defer s.inFlight.Store(false)

	before, err := s.ContactRepo.Count()
	if err != nil {
		return nil, err
	}

	if err := s.Channel.RequestRosterRefresh(); err != nil {
		return nil, fmt.Errorf("roster refresh not accepted: %w", err)
	}
	log.Printf("🔄 roster refresh requested, %d contacts before\n", before)

	count := before
	for attempt := 1; attempt <= s.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.PollInterval):
		}

		n, err := s.ContactRepo.Count()
		if err != nil {
			// A failed read consumes an attempt; the next poll retries.
			log.Printf("⚠️ roster poll %d/%d failed: %v\n", attempt, s.MaxPollAttempts, err)
			continue
		}
		count = n
		if n != before {
			log.Printf("✅ roster sync settled on poll %d: %d -> %d contacts\n", attempt, before, n)
			break
		}
	}

	contacts, err := s.ContactRepo.List("")
	if err != nil {
		return nil, err
	}
	return &SyncResult{FinalCount: count, Contacts: contacts}, nil
}
