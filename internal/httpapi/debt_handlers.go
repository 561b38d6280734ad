package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/httputil"
	"github.com/debtdesk/debtdesk/internal/middleware"
	"github.com/debtdesk/debtdesk/internal/money"
	"github.com/debtdesk/debtdesk/internal/repo"
)

// debtView decorates a debt row with its display amount.
type debtView struct {
	domain.Debt
	AmountFormatted string `json:"amount_formatted"`
}

func viewDebt(d domain.Debt) debtView {
	return debtView{Debt: d, AmountFormatted: money.FormatCurrency(d.AmountCents)}
}

func viewDebts(debts []domain.Debt) []debtView {
	out := make([]debtView, 0, len(debts))
	for _, d := range debts {
		out = append(out, viewDebt(d))
	}
	return out
}

// isAdmin reports whether the caller's profile carries the admin role.
func (s *Service) isAdmin(r *http.Request) bool {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		return false
	}
	profile, err := s.profiles.Get(r.Context(), identity.ID)
	if err != nil {
		return false
	}
	return profile.IsAdmin()
}

// handleListDebts lists debts. Admins see everything, optionally narrowed
// by ?user_id=; other callers only ever see their own.
func (s *Service) handleListDebts(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	filter := repo.DebtFilter{UserID: userID}
	if s.isAdmin(r) {
		filter.UserID = r.URL.Query().Get("user_id")
	}

	debts, err := s.debts.Fetch(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, "failed to load debts")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, viewDebts(debts))
}

type createDebtInput struct {
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// handleCreateDebt records a debt against a user. Admin only.
func (s *Service) handleCreateDebt(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var in createDebtInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.UserID == "" || in.Title == "" {
		httputil.BadRequest(w, "user_id and title required")
		return
	}
	if in.AmountCents <= 0 {
		httputil.BadRequest(w, "amount_cents must be positive")
		return
	}

	debt, err := s.debts.Create(r.Context(), repo.NewDebt{
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		AmountCents: in.AmountCents,
		DueDate:     in.DueDate,
		CreatedBy:   identity.ID,
	})
	if err != nil {
		httputil.InternalError(w, "failed to create debt")
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, viewDebt(*debt))
}

// debtPatchFields are the columns a PATCH may touch.
var debtPatchFields = map[string]bool{
	"title":        true,
	"description":  true,
	"amount_cents": true,
	"status":       true,
	"due_date":     true,
	"user_id":      true,
}

// handleUpdateDebt patches a debt. Admin only.
func (s *Service) handleUpdateDebt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var patch map[string]interface{}
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	for field := range patch {
		if !debtPatchFields[field] {
			httputil.BadRequest(w, "unknown field: "+field)
			return
		}
	}
	if status, ok := patch["status"].(string); ok && !domain.ValidDebtStatus(status) {
		httputil.BadRequest(w, "invalid status: "+status)
		return
	}
	if len(patch) == 0 {
		httputil.BadRequest(w, "empty patch")
		return
	}

	debt, err := s.debts.Update(r.Context(), id, patch)
	if err != nil {
		httputil.NotFound(w, "debt not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, viewDebt(*debt))
}

// handleDeleteDebt removes a debt. Admin only.
func (s *Service) handleDeleteDebt(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.debts.Delete(r.Context(), id); err != nil {
		httputil.InternalError(w, "failed to delete debt")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
