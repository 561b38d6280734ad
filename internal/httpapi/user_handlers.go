package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/httputil"
)

// handleListUsers lists every profile. Admin only.
func (s *Service) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.Fetch(r.Context())
	if err != nil {
		httputil.InternalError(w, "failed to load users")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

type roleInput struct {
	Role string `json:"role"`
}

// handleUpdateUserRole changes a user's role. Admin only.
func (s *Service) handleUpdateUserRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var in roleInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	if !domain.ValidRole(in.Role) {
		httputil.BadRequest(w, "invalid role: "+in.Role)
		return
	}

	updated, err := s.users.UpdateRole(r.Context(), id, in.Role)
	if err != nil {
		httputil.NotFound(w, "user not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}

type activeInput struct {
	Current bool `json:"current"`
}

// handleToggleUserActive flips a user's active flag from its reported
// current value. Admin only.
func (s *Service) handleToggleUserActive(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var in activeInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}

	updated, err := s.users.ToggleActive(r.Context(), id, in.Current)
	if err != nil {
		httputil.NotFound(w, "user not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}
