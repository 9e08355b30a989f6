package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	appErrors "github.com/wxpilot/broadcast-backend/internal/errors"
	"github.com/wxpilot/broadcast-backend/internal/model"
	"github.com/wxpilot/broadcast-backend/internal/service"
)

type stubDispatcher struct {
	Result *service.DispatchResult
	Err    error
	Calls  int
}

func (d *stubDispatcher) Dispatch(ctx context.Context, content string, groupIDs []int64) (*service.DispatchResult, error) {
	d.Calls++
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Result, nil
}

func newSchedulerFixture(now time.Time) (*service.SchedulerService, *MockJobRepo, *stubDispatcher) {
	jobs := NewMockJobRepo()
	dispatcher := &stubDispatcher{Result: &service.DispatchResult{Total: 4, SuccessCount: 4}}
	svc := &service.SchedulerService{
		JobRepo:    jobs,
		GroupRepo:  &MockGroupRepo{Groups: map[int64]string{1: "客户", 2: "同事"}},
		Dispatcher: dispatcher,
		Now:        func() time.Time { return now },
	}
	return svc, jobs, dispatcher
}

func TestScheduleRejectsPastRunTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newSchedulerFixture(now)

	_, err := svc.Schedule("hello", []int64{1}, now.Add(-time.Minute))
	if !errors.Is(err, appErrors.ErrInvalidArgument) {
		t.Fatalf("past run time: expected ErrInvalidArgument, got %v", err)
	}
	_, err = svc.Schedule("hello", []int64{1}, now)
	if !errors.Is(err, appErrors.ErrInvalidArgument) {
		t.Fatalf("run time equal to now: expected ErrInvalidArgument, got %v", err)
	}
}

func TestScheduleSnapshotsGroupNames(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	job, err := svc.Schedule("hello", []int64{1, 2}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if job.Status != model.JobStatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if len(job.GroupNames) != 2 || job.GroupNames[0] != "客户" || job.GroupNames[1] != "同事" {
		t.Errorf("expected name snapshot [客户 同事], got %v", job.GroupNames)
	}

	listed, err := jobs.List()
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != job.ID {
		t.Fatalf("expected the new job in the list, got %v", listed)
	}
}

func TestScheduleUnknownGroup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	_, err := svc.Schedule("hello", []int64{1, 99}, now.Add(time.Hour))
	if !errors.Is(err, appErrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if listed, _ := jobs.List(); len(listed) != 0 {
		t.Errorf("no job should be created for an invalid selection")
	}
}

func TestCancelOnlyPendingJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	job, err := svc.Schedule("hello", []int64{1}, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	if err := svc.Cancel(job.ID); err != nil {
		t.Fatalf("cancelling a pending job must succeed, got: %v", err)
	}
	got, _ := jobs.GetByID(job.ID)
	if got.Status != model.JobStatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}

	// Cancelling again must refuse: the job is no longer pending.
	err = svc.Cancel(job.ID)
	if !errors.Is(err, appErrors.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}

	if err := svc.Cancel(12345); !errors.Is(err, appErrors.ErrNotFound) {
		t.Errorf("unknown job: expected ErrNotFound, got %v", err)
	}
}

func TestCancelSucceededJobFails(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	job, _ := svc.Schedule("hello", []int64{1}, now.Add(time.Minute))
	svc.Now = func() time.Time { return now.Add(2 * time.Minute) }
	svc.Tick(context.Background())

	got, _ := jobs.GetByID(job.ID)
	if got.Status != model.JobStatusSucceeded {
		t.Fatalf("expected succeeded after tick, got %s", got.Status)
	}
	if err := svc.Cancel(job.ID); !errors.Is(err, appErrors.ErrPreconditionFailed) {
		t.Errorf("expected ErrPreconditionFailed, got %v", err)
	}
}

func TestTickExecutesDueJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, dispatcher := newSchedulerFixture(now)
	dispatcher.Result = &service.DispatchResult{Total: 7, SuccessCount: 5}

	due, _ := svc.Schedule("due", []int64{1}, now.Add(time.Minute))
	future, _ := svc.Schedule("future", []int64{2}, now.Add(time.Hour))

	svc.Now = func() time.Time { return now.Add(2 * time.Minute) }
	svc.Tick(context.Background())

	if dispatcher.Calls != 1 {
		t.Fatalf("expected 1 dispatch, got %d", dispatcher.Calls)
	}
	got, _ := jobs.GetByID(due.ID)
	if got.Status != model.JobStatusSucceeded {
		t.Errorf("due job: expected succeeded, got %s", got.Status)
	}
	if got.Total == nil || *got.Total != 7 || got.SuccessCount == nil || *got.SuccessCount != 5 {
		t.Errorf("due job: tally not recorded, got %v/%v", got.SuccessCount, got.Total)
	}
	notYet, _ := jobs.GetByID(future.ID)
	if notYet.Status != model.JobStatusPending {
		t.Errorf("future job: expected still pending, got %s", notYet.Status)
	}
	if !service.IsTerminal(got.Status) || service.IsTerminal(notYet.Status) {
		t.Errorf("terminal classification wrong: %s vs %s", got.Status, notYet.Status)
	}
}

func TestTickMarksFailedJobWithError(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, dispatcher := newSchedulerFixture(now)
	dispatcher.Err = appErrors.NewNoRecipients()

	job, _ := svc.Schedule("hello", []int64{1}, now.Add(time.Minute))
	svc.Now = func() time.Time { return now.Add(2 * time.Minute) }
	svc.Tick(context.Background())

	got, _ := jobs.GetByID(job.ID)
	if got.Status != model.JobStatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.Error == nil || *got.Error == "" {
		t.Errorf("expected the dispatch error to be recorded on the job")
	}
}

func TestTickIsIdempotentAcrossRuns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, dispatcher := newSchedulerFixture(now)

	if _, err := svc.Schedule("hello", []int64{1}, now.Add(time.Minute)); err != nil {
		t.Fatalf("Schedule returned error: %v", err)
	}
	svc.Now = func() time.Time { return now.Add(2 * time.Minute) }
	svc.Tick(context.Background())
	svc.Tick(context.Background())

	if dispatcher.Calls != 1 {
		t.Errorf("a job must execute at most once, got %d dispatches", dispatcher.Calls)
	}
}

func TestRecoverStaleFailsInterruptedJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	job, _ := svc.Schedule("hello", []int64{1}, now.Add(time.Minute))
	// Simulate a crash mid-execution: the job was claimed long ago but
	// never reached a terminal status.
	if won, _ := jobs.MarkRunning(job.ID); !won {
		t.Fatal("fixture: could not mark job running")
	}
	stale := now.Add(-time.Hour)
	jobs.jobs[job.ID].UpdatedAt = &stale

	svc.RecoverStale()

	got, _ := jobs.GetByID(job.ID)
	if got.Status != model.JobStatusFailed {
		t.Fatalf("expected failed after sweep, got %s", got.Status)
	}
	if got.Error == nil || *got.Error != "interrupted by restart" {
		t.Errorf("unexpected sweep error message: %v", got.Error)
	}
}

func TestRecoverStaleLeavesFreshRunningJobs(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, jobs, _ := newSchedulerFixture(now)

	job, _ := svc.Schedule("hello", []int64{1}, now.Add(time.Minute))
	if won, _ := jobs.MarkRunning(job.ID); !won {
		t.Fatal("fixture: could not mark job running")
	}
	fresh := now
	jobs.jobs[job.ID].UpdatedAt = &fresh

	svc.RecoverStale()

	got, _ := jobs.GetByID(job.ID)
	if got.Status != model.JobStatusRunning {
		t.Errorf("a recently claimed job must survive the sweep, got %s", got.Status)
	}
}
