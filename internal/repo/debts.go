// Package repo provides the domain repositories over the hosted data
// store. Each repository mirrors the last fetched result set in memory and
// patches the mirror in place instead of re-fetching: prepend on create,
// element replace on update, element removal on delete. Repositories never
// retry; hosted-store errors propagate to the caller as-is.
package repo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// debtSelect embeds the owning profile alongside each debt row.
const debtSelect = "*,profiles(id,name,avatar_url)"

// DebtFilter narrows a debts fetch. A zero filter returns everything the
// caller may see.
type DebtFilter struct {
	UserID string
}

// NewDebt is the payload for creating a debt.
type NewDebt struct {
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
}

// Debts is the debt repository.
type Debts struct {
	db *supabase.DatabaseClient

	mu    sync.RWMutex
	items []domain.Debt
}

// NewDebts creates a debt repository.
func NewDebts(db *supabase.DatabaseClient) *Debts {
	return &Debts{db: db}
}

// Fetch lists debts ordered by creation time descending, optionally
// filtered to one owning user, and replaces the mirror.
func (r *Debts) Fetch(ctx context.Context, filter DebtFilter) ([]domain.Debt, error) {
	q := r.db.From("debts").Select(debtSelect).Order("created_at", true).AsService()
	if filter.UserID != "" {
		q = q.Eq("user_id", filter.UserID)
	}

	var rows []domain.Debt
	err := q.ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("debts", "fetch", err)
	if err != nil {
		return nil, fmt.Errorf("fetch debts: %w", err)
	}

	r.mu.Lock()
	r.items = rows
	r.mu.Unlock()
	return rows, nil
}

// Create inserts a debt and prepends the stored row to the mirror.
func (r *Debts) Create(ctx context.Context, in NewDebt) (*domain.Debt, error) {
	if in.Status == "" {
		in.Status = domain.DebtPending
	}
	if !domain.ValidDebtStatus(in.Status) {
		return nil, fmt.Errorf("invalid debt status: %s", in.Status)
	}

	var rows []domain.Debt
	err := r.db.From("debts").Insert(in).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("debts", "create", err)
	if err != nil {
		return nil, fmt.Errorf("create debt: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create debt: empty representation")
	}
	created := rows[0]

	r.mu.Lock()
	r.items = append([]domain.Debt{created}, r.items...)
	r.mu.Unlock()
	return &created, nil
}

// Update patches a debt and replaces its mirror element with the stored
// row.
func (r *Debts) Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Debt, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	var rows []domain.Debt
	err := r.db.From("debts").Update(patch).Eq("id", id).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("debts", "update", err)
	if err != nil {
		return nil, fmt.Errorf("update debt: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("debt not found: %s", id)
	}
	updated := rows[0]

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			// Keep the embedded owner; PATCH representations do not
			// include relations.
			updated.Owner = r.items[i].Owner
			r.items[i] = updated
			break
		}
	}
	r.mu.Unlock()
	return &updated, nil
}

// SetStatus toggles a debt between pending and paid.
func (r *Debts) SetStatus(ctx context.Context, id, status string) (*domain.Debt, error) {
	if !domain.ValidDebtStatus(status) {
		return nil, fmt.Errorf("invalid debt status: %s", status)
	}
	return r.Update(ctx, id, map[string]interface{}{"status": status})
}

// Delete removes a debt and drops it from the mirror.
func (r *Debts) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	_, err := r.db.From("debts").Delete().Eq("id", id).AsService().Execute(ctx)
	metrics.RecordRepoOperation("debts", "delete", err)
	if err != nil {
		return fmt.Errorf("delete debt: %w", err)
	}

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return nil
}

// Cached returns a copy of the mirror from the last fetch.
func (r *Debts) Cached() []domain.Debt {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Debt, len(r.items))
	copy(out, r.items)
	return out
}
