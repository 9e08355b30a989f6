// internal/service/dispatch_service.go
package service

import (
	"context"
	"log"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wxpilot/broadcast-backend/internal/channel"
	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

// DispatchService resolves group selections into a deduplicated recipient
// set and fans a message out to it, tallying per-recipient outcomes. Both
// immediate sends and triggered scheduled jobs go through Dispatch, so the
// ledger records them in the same shape.
type DispatchService struct {
	GroupRepo   repository.GroupRepositoryInterface
	ContactRepo repository.ContactRepositoryInterface
	HistoryRepo repository.DeliveryHistoryRepositoryInterface
	Channel     channel.Channel
	Limiter     *rate.Limiter
}

type DispatchResult struct {
	Total        int `json:"total"`
	SuccessCount int `json:"success_count"`
}

func NewDispatchService(
	groupRepo repository.GroupRepositoryInterface,
	contactRepo repository.ContactRepositoryInterface,
	historyRepo repository.DeliveryHistoryRepositoryInterface,
	ch channel.Channel,
	ratePerSec int,
) *DispatchService {
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	return &DispatchService{
		GroupRepo:   groupRepo,
		ContactRepo: contactRepo,
		HistoryRepo: historyRepo,
		Channel:     ch,
		Limiter:     rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// Dispatch sends content to the union of the selected groups' members.
// One recipient's failure never aborts the batch; partial failure is not an
// error, the tally carries it. Exactly one DeliveryRecord is appended for
// every executed batch.
func (s *DispatchService) Dispatch(ctx context.Context, content string, groupIDs []int64) (*DispatchResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, appErrors.NewInvalidArgument("message content cannot be empty")
	}
	if len(groupIDs) == 0 {
		return nil, appErrors.NewInvalidArgument("at least one group must be selected")
	}

	groupNames, err := s.resolveGroupNames(groupIDs)
	if err != nil {
		return nil, err
	}

	contacts, err := s.ContactRepo.ListByGroups(groupIDs)
	if err != nil {
		return nil, err
	}

	// Union semantics: a contact reached through more than one selected
	// group is messaged once.
	seen := map[int]bool{}
	recipients := []model.Contact{}
	for _, c := range contacts {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		recipients = append(recipients, c)
	}

	if len(recipients) == 0 {
		return nil, appErrors.NewNoRecipients()
	}

	successCount := 0
	for _, c := range recipients {
		if err := s.Limiter.Wait(ctx); err != nil {
			// Shutdown mid-batch: the remaining recipients count as failed.
			log.Println("⚠️ dispatch interrupted:", err)
			break
		}
		name := c.Name
		if c.Remark != "" {
			name = c.Remark
		}
		if err := s.Channel.SendOne(channel.Message{UID: c.UID, Name: name, Content: content}); err != nil {
			log.Printf("⚠️ send to %s failed: %v\n", name, err)
			continue
		}
		successCount++
	}

	result := &DispatchResult{Total: len(recipients), SuccessCount: successCount}

	rec := &model.DeliveryRecord{
		Content:      content,
		GroupNames:   groupNames,
		Total:        result.Total,
		SuccessCount: result.SuccessCount,
	}
	if err := s.HistoryRepo.Append(rec); err != nil {
		// The batch already ran; losing the ledger row must not fail it.
		log.Println("⚠️ failed to record delivery history:", err)
	}

	log.Printf("📤 dispatch complete: %d/%d sent to groups %v\n",
		result.SuccessCount, result.Total, groupNames)
	return result, nil
}

// resolveGroupNames confirms every selected group exists and snapshots the
// names in selection order.
func (s *DispatchService) resolveGroupNames(groupIDs []int64) ([]string, error) {
	names, err := s.GroupRepo.NamesByIDs(groupIDs)
	if err != nil {
		return nil, err
	}
	resolved := make([]string, 0, len(groupIDs))
	seen := map[int64]bool{}
	for _, id := range groupIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		name, ok := names[id]
		if !ok {
			return nil, appErrors.NewGroupNotFound(int(id))
		}
		resolved = append(resolved, name)
	}
	return resolved, nil
}
