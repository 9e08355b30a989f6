// internal/service/scheduler_service.go
package service

import (
	"context"
	"log"
	"strings"
	"time"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/repository"
)

const (
	// TickInterval is how often the trigger loop scans for due jobs, and
	// doubles as the grace period for the startup recovery sweep.
	TickInterval = 3 * time.Second

	tickBatchSize = 10

	restartErrMsg = "interrupted by restart"
)

// Dispatcher is the slice of DispatchService the scheduler needs.
type Dispatcher interface {
	Dispatch(ctx context.Context, content string, groupIDs []int64) (*DispatchResult, error)
}

// SchedulerService owns the scheduled-job queue. It is the only writer of
// job status; each transition goes through a compare-and-set in the
// repository, so overlapping ticks or a tick racing a cancel execute a job
// at most once.
type SchedulerService struct {
	JobRepo    repository.BroadcastJobRepositoryInterface
	GroupRepo  repository.GroupRepositoryInterface
	Dispatcher Dispatcher

	Now func() time.Time // test seam, defaults to time.Now
}

func (s *SchedulerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Schedule persists a future send request as a pending job. The group name
// snapshot is taken here so the job list stays readable after renames.
func (s *SchedulerService) Schedule(content string, groupIDs []int64, runAt time.Time) (*model.BroadcastJob, error) {
	if strings.TrimSpace(content) == "" {
		return nil, appErrors.NewInvalidArgument("message content cannot be empty")
	}
	if len(groupIDs) == 0 {
		return nil, appErrors.NewInvalidArgument("at least one group must be selected")
	}
	if !runAt.After(s.now()) {
		return nil, appErrors.NewInvalidArgument("run time must be in the future")
	}

	names, err := s.GroupRepo.NamesByIDs(groupIDs)
	if err != nil {
		return nil, err
	}
	groupNames := make([]string, 0, len(groupIDs))
	for _, id := range groupIDs {
		name, ok := names[id]
		if !ok {
			return nil, appErrors.NewGroupNotFound(int(id))
		}
		groupNames = append(groupNames, name)
	}

	job := &model.BroadcastJob{
		Content:    content,
		GroupIDs:   groupIDs,
		GroupNames: groupNames,
		RunAt:      runAt,
		Status:     model.JobStatusPending,
	}
	if err := s.JobRepo.Create(job); err != nil {
		return nil, err
	}
	log.Printf("🗓️ job %d scheduled for %s, groups %v\n", job.ID, runAt.Format(time.RFC3339), groupNames)
	return job, nil
}

func (s *SchedulerService) List() ([]model.BroadcastJob, error) {
	return s.JobRepo.List()
}

// Cancel transitions a pending job to cancelled. Any other current status
// fails with PreconditionFailed; a cancelled, running or finished job is
// never pulled back.
func (s *SchedulerService) Cancel(id int) error {
	ok, err := s.JobRepo.CancelPending(id)
	if err != nil {
		return err
	}
	if ok {
		log.Printf("🚫 job %d cancelled\n", id)
		return nil
	}
	job, err := s.JobRepo.GetByID(id)
	if err != nil {
		return err
	}
	return appErrors.NewJobNotCancellable(id, job.Status)
}

// Tick promotes due pending jobs and executes them. Safe to run even when a
// previous slow tick is still going: the pending->running CAS makes each job
// execute at most once.
func (s *SchedulerService) Tick(ctx context.Context) {
	jobs, err := s.JobRepo.DuePending(s.now(), tickBatchSize)
	if err != nil {
		log.Println("⚠️ scheduler scan failed:", err)
		return
	}

	for _, job := range jobs {
		won, err := s.JobRepo.MarkRunning(job.ID)
		if err != nil {
			log.Printf("⚠️ job %d: failed to mark running: %v\n", job.ID, err)
			continue
		}
		if !won {
			// Another tick claimed it, or it was cancelled under us.
			continue
		}

		result, err := s.Dispatcher.Dispatch(ctx, job.Content, job.GroupIDs)
		if err != nil {
			if markErr := s.JobRepo.MarkFailed(job.ID, err.Error()); markErr != nil {
				log.Printf("⚠️ job %d: failed to record failure: %v\n", job.ID, markErr)
			}
			log.Printf("❌ job %d failed: %v\n", job.ID, err)
			continue
		}

		if err := s.JobRepo.MarkSucceeded(job.ID, result.Total, result.SuccessCount); err != nil {
			log.Printf("⚠️ job %d: failed to record success: %v\n", job.ID, err)
			continue
		}
		log.Printf("✅ job %d done: %d/%d\n", job.ID, result.SuccessCount, result.Total)
	}
}

// RecoverStale fails jobs stuck in running since before the last restart.
// Run once at startup, before the first tick.
func (s *SchedulerService) RecoverStale() {
	n, err := s.JobRepo.FailStaleRunning(s.now().Add(-TickInterval), restartErrMsg)
	if err != nil {
		log.Println("⚠️ stale job sweep failed:", err)
		return
	}
	if n > 0 {
		log.Printf("🧹 swept %d stale running job(s)\n", n)
	}
}

// IsTerminal reports whether a job status can never change again.
func IsTerminal(status string) bool {
	switch status {
	case model.JobStatusSucceeded, model.JobStatusFailed, model.JobStatusCancelled:
		return true
	}
	return false
}
