package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/supabase"
	"github.com/debtdesk/debtdesk/internal/upload"
)

// requestSelect embeds the referenced debt and the requesting profile.
const requestSelect = "*,debts(id,title,amount_cents,status),profiles(id,name,avatar_url)"

// RequestFilter narrows a payment requests fetch.
type RequestFilter struct {
	UserID string
}

// NewRequest is the payload for creating a payment request.
type NewRequest struct {
	DebtID      string `json:"debt_id"`
	UserID      string `json:"user_id"`
	Message     string `json:"message"`
	Status      string `json:"status"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
	ReceiptName string `json:"receipt_name,omitempty"`
}

// PaymentRequests is the payment request repository.
type PaymentRequests struct {
	db       *supabase.DatabaseClient
	uploader *upload.Uploader

	mu    sync.RWMutex
	items []domain.PaymentRequest
}

// NewPaymentRequests creates a payment request repository.
func NewPaymentRequests(db *supabase.DatabaseClient, uploader *upload.Uploader) *PaymentRequests {
	return &PaymentRequests{db: db, uploader: uploader}
}

// Fetch lists requests ordered by creation time descending, optionally
// filtered to one requesting user, and replaces the mirror.
func (r *PaymentRequests) Fetch(ctx context.Context, filter RequestFilter) ([]domain.PaymentRequest, error) {
	q := r.db.From("payment_requests").Select(requestSelect).Order("created_at", true).AsService()
	if filter.UserID != "" {
		q = q.Eq("user_id", filter.UserID)
	}

	var rows []domain.PaymentRequest
	err := q.ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("payment_requests", "fetch", err)
	if err != nil {
		return nil, fmt.Errorf("fetch payment requests: %w", err)
	}

	r.mu.Lock()
	r.items = rows
	r.mu.Unlock()
	return rows, nil
}

// Create inserts an open request. When a receipt file is supplied it is
// validated and uploaded first and the resulting URL and original filename
// are merged into the inserted row.
func (r *PaymentRequests) Create(ctx context.Context, in NewRequest, receipt *upload.File) (*domain.PaymentRequest, error) {
	if in.DebtID == "" {
		return nil, fmt.Errorf("debt_id cannot be empty")
	}
	if in.Message == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}
	if in.Status == "" {
		in.Status = domain.RequestOpen
	}

	if receipt != nil {
		stored, err := r.uploader.Receipt(ctx, *receipt)
		if err != nil {
			return nil, err
		}
		in.ReceiptURL = stored.URL
		in.ReceiptName = stored.Name
	}

	var rows []domain.PaymentRequest
	err := r.db.From("payment_requests").Insert(in).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("payment_requests", "create", err)
	if err != nil {
		return nil, fmt.Errorf("create payment request: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create payment request: empty representation")
	}
	created := rows[0]

	r.mu.Lock()
	r.items = append([]domain.PaymentRequest{created}, r.items...)
	r.mu.Unlock()
	return &created, nil
}

// Update patches a request and replaces its mirror element.
func (r *PaymentRequests) Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.PaymentRequest, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	var rows []domain.PaymentRequest
	err := r.db.From("payment_requests").Update(patch).Eq("id", id).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("payment_requests", "update", err)
	if err != nil {
		return nil, fmt.Errorf("update payment request: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("payment request not found: %s", id)
	}
	updated := rows[0]

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			updated.Debt = r.items[i].Debt
			updated.Requester = r.items[i].Requester
			r.items[i] = updated
			break
		}
	}
	r.mu.Unlock()
	return &updated, nil
}

// Approve moves an open request to approved with an optional admin note.
// decided_at is stamped by the hosted store's own defaulting; the client
// does not set it. Approving does not flip the referenced debt to paid.
func (r *PaymentRequests) Approve(ctx context.Context, id, adminNote string) (*domain.PaymentRequest, error) {
	return r.decide(ctx, id, domain.RequestApproved, adminNote)
}

// Reject moves an open request to rejected with an optional admin note.
func (r *PaymentRequests) Reject(ctx context.Context, id, adminNote string) (*domain.PaymentRequest, error) {
	return r.decide(ctx, id, domain.RequestRejected, adminNote)
}

func (r *PaymentRequests) decide(ctx context.Context, id, status, adminNote string) (*domain.PaymentRequest, error) {
	patch := map[string]interface{}{"status": status}
	if adminNote != "" {
		patch["admin_note"] = adminNote
	}
	decided, err := r.Update(ctx, id, patch)
	if err == nil {
		metrics.RecordDecision(status)
	}
	return decided, err
}

// Cached returns a copy of the mirror from the last fetch.
func (r *PaymentRequests) Cached() []domain.PaymentRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.PaymentRequest, len(r.items))
	copy(out, r.items)
	return out
}
