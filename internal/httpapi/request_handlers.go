package httpapi

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/httputil"
	"github.com/debtdesk/debtdesk/internal/repo"
	"github.com/debtdesk/debtdesk/internal/upload"
)

// maxRequestBody bounds multipart payloads; receipts top out at 5 MiB plus
// form overhead.
const maxRequestBody = 8 << 20

// handleListRequests lists payment requests. Admins see everything,
// optionally narrowed by ?user_id=; other callers only ever see their own.
func (s *Service) handleListRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	filter := repo.RequestFilter{UserID: userID}
	if s.isAdmin(r) {
		filter.UserID = r.URL.Query().Get("user_id")
	}

	requests, err := s.requests.Fetch(r.Context(), filter)
	if err != nil {
		httputil.InternalError(w, "failed to load payment requests")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, requests)
}

// handleCreateRequest submits a payment confirmation request. The body is
// multipart form data: debt_id and message fields plus an optional receipt
// file part.
func (s *Service) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		httputil.BadRequest(w, "invalid multipart body")
		return
	}

	in := repo.NewRequest{
		DebtID:  r.FormValue("debt_id"),
		UserID:  userID,
		Message: strings.TrimSpace(r.FormValue("message")),
	}
	if in.DebtID == "" || in.Message == "" {
		httputil.BadRequest(w, "debt_id and message required")
		return
	}

	var receipt *upload.File
	if file, header, err := r.FormFile("receipt"); err == nil {
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			httputil.BadRequest(w, "failed to read receipt")
			return
		}
		receipt = &upload.File{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	}

	created, err := s.requests.Create(r.Context(), in, receipt)
	if err != nil {
		// Validation failures carry their reason; surface it inline.
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, created)
}

type decisionInput struct {
	Note string `json:"note"`
}

// handleApproveRequest approves a payment request. Admin only. The
// referenced debt keeps its current status; marking it paid is a separate
// admin action.
func (s *Service) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	s.decideRequest(w, r, s.requests.Approve)
}

// handleRejectRequest rejects a payment request. Admin only.
func (s *Service) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	s.decideRequest(w, r, s.requests.Reject)
}

func (s *Service) decideRequest(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id, note string) (*domain.PaymentRequest, error)) {
	id := mux.Vars(r)["id"]

	var in decisionInput
	// An empty body means no note.
	if r.Body != nil && r.ContentLength != 0 {
		if !httputil.DecodeJSON(w, r, &in) {
			return
		}
	}

	decided, err := op(r.Context(), id, in.Note)
	if err != nil {
		httputil.NotFound(w, "payment request not found")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, decided)
}
