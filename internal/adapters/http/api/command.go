// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
)

// CommandHandler handles command requests.
type CommandHandler struct {
	deps Dependencies
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(deps Dependencies) *CommandHandler {
	return &CommandHandler{deps: deps}
}

// HandleCommand handles POST /v1/command requests. The reply mirrors
// what a chat surface would show the user; command-level failures are
// rendered into the reply text, not HTTP errors.
func (h *CommandHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	const op = "api.command"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	reply := h.deps.Dispatch(r.Context(), req.UserID, req.Text)
	writeJSON(w, http.StatusOK, commandResponse{Reply: reply})
}
