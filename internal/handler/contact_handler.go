// internal/handler/contact_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/wxpilot/broadcast-backend/internal/service"
)

// ContactHandler holds the dependencies for roster-related HTTP handlers.
type ContactHandler struct {
	Roster *service.RosterService
	Groups *service.GroupService
	Sync   *service.SyncService
}

// ListContacts returns the roster, optionally filtered by ?q=.
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Roster.ListContacts(r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contacts)
}

// AssignGroup sets or clears a contact's group. A null group_id clears it.
func (h *ContactHandler) AssignGroup(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	var body struct {
		GroupID *int `json:"group_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Groups.AssignContact(id, body.GroupID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *ContactHandler) UpdateRemark(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid contact id", http.StatusBadRequest)
		return
	}

	var body struct {
		Remark string `json:"remark"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.Roster.UpdateRemark(id, body.Remark); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// SyncContacts triggers a roster synchronization and blocks until it
// settles. Runs under the process context, not the request context: an
// operator disconnect must not abort an in-flight poll loop.
func (h *ContactHandler) SyncContacts(w http.ResponseWriter, r *http.Request) {
	result, err := h.Sync.Synchronize(context.Background())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
