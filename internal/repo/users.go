package repo

import (
	"context"
	"fmt"
	"sync"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// Users is the admin-facing view over all profiles, regardless of role.
type Users struct {
	db *supabase.DatabaseClient

	mu    sync.RWMutex
	items []domain.Profile
}

// NewUsers creates a user repository.
func NewUsers(db *supabase.DatabaseClient) *Users {
	return &Users{db: db}
}

// Fetch lists every profile ordered by creation time descending and
// replaces the mirror.
func (r *Users) Fetch(ctx context.Context) ([]domain.Profile, error) {
	var rows []domain.Profile
	err := r.db.From("profiles").Select("*").Order("created_at", true).
		AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("users", "fetch", err)
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}

	r.mu.Lock()
	r.items = rows
	r.mu.Unlock()
	return rows, nil
}

// UpdateRole changes a user's role and patches the mirror.
func (r *Users) UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error) {
	if !domain.ValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	return r.patch(ctx, id, map[string]interface{}{"role": role})
}

// ToggleActive flips a user's is_active flag from its current value and
// patches the mirror.
func (r *Users) ToggleActive(ctx context.Context, id string, current bool) (*domain.Profile, error) {
	return r.patch(ctx, id, map[string]interface{}{"is_active": !current})
}

func (r *Users) patch(ctx context.Context, id string, patch map[string]interface{}) (*domain.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	var rows []domain.Profile
	err := r.db.From("profiles").Update(patch).Eq("id", id).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("users", "update", err)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	updated := rows[0]

	r.mu.Lock()
	for i := range r.items {
		if r.items[i].ID == id {
			r.items[i] = updated
			break
		}
	}
	r.mu.Unlock()
	return &updated, nil
}

// Cached returns a copy of the mirror from the last fetch.
func (r *Users) Cached() []domain.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Profile, len(r.items))
	copy(out, r.items)
	return out
}
