// internal/handler/broadcast_handler.go
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wxpilot/broadcast-backend/internal/repository"
	"github.com/wxpilot/broadcast-backend/internal/service"
)

// BroadcastHandler covers immediate dispatch, the delivery ledger and the
// scheduled-job queue.
type BroadcastHandler struct {
	Dispatcher  *service.DispatchService
	Scheduler   *service.SchedulerService
	HistoryRepo repository.DeliveryHistoryRepositoryInterface
}

// SendMessage dispatches content to the selected groups right away and
// returns the tally. Partial failure still returns 200; the counts tell the
// operator what happened.
func (h *BroadcastHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content  string  `json:"content"`
		GroupIDs []int64 `json:"group_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.Dispatcher.Dispatch(r.Context(), body.Content, body.GroupIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *BroadcastHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.HistoryRepo.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ScheduleJob persists a future send. run_at is RFC3339 and must be
// strictly in the future.
func (h *BroadcastHandler) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content  string  `json:"content"`
		GroupIDs []int64 `json:"group_ids"`
		RunAt    string  `json:"run_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	runAt, err := time.Parse(time.RFC3339, body.RunAt)
	if err != nil {
		http.Error(w, "invalid run_at, expected RFC3339: "+err.Error(), http.StatusBadRequest)
		return
	}

	job, err := h.Scheduler.Schedule(body.Content, body.GroupIDs, runAt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (h *BroadcastHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Scheduler.List()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// CancelJob cancels a pending job; any other status is refused.
func (h *BroadcastHandler) CancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}

	if err := h.Scheduler.Cancel(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
