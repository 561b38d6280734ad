package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/debtdesk/debtdesk/internal/httputil"
)

// PublicPaths are served without authentication.
var PublicPaths = []string{
	"/health",
	"/metrics",
	"/api/auth/signup",
	"/api/auth/signin",
}

// Register mounts the API routes on r. requireAdmin wraps the handlers
// reserved for admin profiles.
func (s *Service) Register(r *mux.Router, requireAdmin func(http.Handler) http.Handler) {
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/signup", s.handleSignUp).Methods(http.MethodPost)
	api.HandleFunc("/auth/signin", s.handleSignIn).Methods(http.MethodPost)
	api.HandleFunc("/auth/signout", s.handleSignOut).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	api.HandleFunc("/debts", s.handleListDebts).Methods(http.MethodGet)
	api.Handle("/debts", requireAdmin(http.HandlerFunc(s.handleCreateDebt))).Methods(http.MethodPost)
	api.Handle("/debts/{id}", requireAdmin(http.HandlerFunc(s.handleUpdateDebt))).Methods(http.MethodPatch)
	api.Handle("/debts/{id}", requireAdmin(http.HandlerFunc(s.handleDeleteDebt))).Methods(http.MethodDelete)

	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)
	api.HandleFunc("/requests", s.handleCreateRequest).Methods(http.MethodPost)
	api.Handle("/requests/{id}/approve", requireAdmin(http.HandlerFunc(s.handleApproveRequest))).Methods(http.MethodPost)
	api.Handle("/requests/{id}/reject", requireAdmin(http.HandlerFunc(s.handleRejectRequest))).Methods(http.MethodPost)

	api.Handle("/users", requireAdmin(http.HandlerFunc(s.handleListUsers))).Methods(http.MethodGet)
	api.Handle("/users/{id}/role", requireAdmin(http.HandlerFunc(s.handleUpdateUserRole))).Methods(http.MethodPatch)
	api.Handle("/users/{id}/active", requireAdmin(http.HandlerFunc(s.handleToggleUserActive))).Methods(http.MethodPatch)

	api.HandleFunc("/profile", s.handleGetProfile).Methods(http.MethodGet)
	api.HandleFunc("/profile", s.handleUpdateProfile).Methods(http.MethodPatch)
	api.HandleFunc("/profile/avatar", s.handleUploadAvatar).Methods(http.MethodPost)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "debtdesk",
	})
}
