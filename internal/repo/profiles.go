package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/metrics"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

// Profiles is the profile repository. Fetch is scoped to user-role
// profiles (the debtor listing); Get/EnsureExists serve the session
// controller's profile resolution.
type Profiles struct {
	db *supabase.DatabaseClient

	mu    sync.RWMutex
	items []domain.Profile
}

// NewProfiles creates a profile repository.
func NewProfiles(db *supabase.DatabaseClient) *Profiles {
	return &Profiles{db: db}
}

// Fetch lists user-role profiles ordered by creation time descending and
// replaces the mirror.
func (r *Profiles) Fetch(ctx context.Context) ([]domain.Profile, error) {
	var rows []domain.Profile
	err := r.db.From("profiles").Select("*").Eq("role", domain.RoleUser).
		Order("created_at", true).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("profiles", "fetch", err)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}

	r.mu.Lock()
	r.items = rows
	r.mu.Unlock()
	return rows, nil
}

// Get fetches one profile by identity id. Row-not-found surfaces as a
// supabase error satisfying supabase.IsNotFound.
func (r *Profiles) Get(ctx context.Context, id string) (*domain.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	var p domain.Profile
	err := r.db.From("profiles").Select("*").Eq("id", id).Single().AsService().ExecuteInto(ctx, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// EnsureExists resolves the profile for an identity, inserting the default
// row on first sight: name derived from the email local-part, role user.
// The insert-then-re-read sequence makes resolution idempotent; a second
// resolution of the same identity finds the row instead of inserting.
func (r *Profiles) EnsureExists(ctx context.Context, id, email string) (*domain.Profile, error) {
	p, err := r.Get(ctx, id)
	if err == nil {
		return p, nil
	}
	if !supabase.IsNotFound(err) {
		return nil, err
	}

	name := email
	if i := strings.Index(email, "@"); i > 0 {
		name = email[:i]
	}
	if name == "" {
		name = "user"
	}

	insert := map[string]interface{}{
		"id":   id,
		"name": name,
		"role": domain.RoleUser,
	}
	if _, err := r.db.From("profiles").Insert(insert).AsService().Execute(ctx); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	return r.Get(ctx, id)
}

// Update patches a profile and replaces its mirror element.
func (r *Profiles) Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Profile, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}
	if role, ok := patch["role"].(string); ok && !domain.ValidRole(role) {
		return nil, fmt.Errorf("invalid role: %s", role)
	}

	var rows []domain.Profile
	err := r.db.From("profiles").Update(patch).Eq("id", id).AsService().ExecuteInto(ctx, &rows)
	metrics.RecordRepoOperation("profiles", "update", err)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("profile not found: %s", id)
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

// Delete removes a profile and drops it from the mirror.
func (r *Profiles) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	_, err := r.db.From("profiles").Delete().Eq("id", id).AsService().Execute(ctx)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
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
func (r *Profiles) Cached() []domain.Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Profile, len(r.items))
	copy(out, r.items)
	return out
}
