package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
)

// fakeProfileStore backs the profiles table with a map so EnsureExists can
// be exercised across the not-found, insert and re-read round trips.
type fakeProfileStore struct {
	mu      sync.Mutex
	rows    map[string]map[string]interface{}
	inserts int
}

func (s *fakeProfileStore) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
			if r.Header.Get("Accept") == "application/vnd.pgrst.object+json" {
				row, ok := s.rows[id]
				if !ok {
					w.WriteHeader(http.StatusNotAcceptable)
					json.NewEncoder(w).Encode(map[string]string{
						"code":    "PGRST116",
						"message": "JSON object requested, multiple (or no) rows returned",
					})
					return
				}
				json.NewEncoder(w).Encode(row)
				return
			}
			out := make([]map[string]interface{}, 0, len(s.rows))
			for _, row := range s.rows {
				out = append(out, row)
			}
			json.NewEncoder(w).Encode(out)
		case http.MethodPost:
			s.inserts++
			var in map[string]interface{}
			json.NewDecoder(r.Body).Decode(&in)
			id, _ := in["id"].(string)
			s.rows[id] = in
			json.NewEncoder(w).Encode([]map[string]interface{}{in})
		default:
			t.Errorf("unexpected %s to fake profile store", r.Method)
		}
	}
}

func TestProfilesEnsureExistsCreatesDefault(t *testing.T) {
	store := &fakeProfileStore{rows: map[string]map[string]interface{}{}}
	db := newTestDB(t, store.handler(t))

	r := NewProfiles(db)
	p, err := r.EnsureExists(context.Background(), "u1", "maria.souza@example.com")
	if err != nil {
		t.Fatalf("EnsureExists() error: %v", err)
	}
	if p.Name != "maria.souza" {
		t.Errorf("name = %q, want email local-part", p.Name)
	}
	if p.Role != "user" {
		t.Errorf("role = %q, want user", p.Role)
	}
}

func TestProfilesEnsureExistsIsIdempotent(t *testing.T) {
	store := &fakeProfileStore{rows: map[string]map[string]interface{}{}}
	db := newTestDB(t, store.handler(t))

	r := NewProfiles(db)
	ctx := context.Background()
	first, err := r.EnsureExists(ctx, "u1", "joao@example.com")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.EnsureExists(ctx, "u1", "joao@example.com")
	if err != nil {
		t.Fatal(err)
	}

	if store.inserts != 1 {
		t.Errorf("inserts = %d, want exactly one", store.inserts)
	}
	if first.ID != second.ID || first.Name != second.Name {
		t.Errorf("resolutions diverge: %+v vs %+v", first, second)
	}
}

func TestProfilesEnsureExistsSkipsExisting(t *testing.T) {
	store := &fakeProfileStore{rows: map[string]map[string]interface{}{
		"u1": {"id": "u1", "name": "Maria", "role": "admin"},
	}}
	db := newTestDB(t, store.handler(t))

	r := NewProfiles(db)
	p, err := r.EnsureExists(context.Background(), "u1", "maria@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if store.inserts != 0 {
		t.Errorf("inserts = %d, existing profile must not be re-created", store.inserts)
	}
	if p.Name != "Maria" || p.Role != "admin" {
		t.Errorf("profile = %+v, want the stored row untouched", p)
	}
}

func TestProfilesFetchScopesToUserRole(t *testing.T) {
	var gotQuery string
	db := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	})

	r := NewProfiles(db)
	if _, err := r.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest("GET", "/?"+gotQuery, nil)
	if got := req.URL.Query().Get("role"); got != "eq.user" {
		t.Errorf("role filter = %q, want eq.user", got)
	}
}

func TestUsersUpdateRole(t *testing.T) {
	db := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "u1", "name": "ana", "role": "user"},
			})
		case http.MethodPatch:
			var patch map[string]interface{}
			json.NewDecoder(r.Body).Decode(&patch)
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "u1", "name": "ana", "role": patch["role"]},
			})
		}
	})

	r := NewUsers(db)
	if _, err := r.Fetch(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := r.UpdateRole(context.Background(), "u1", "superuser"); err == nil {
		t.Fatal("expected invalid role error")
	}

	updated, err := r.UpdateRole(context.Background(), "u1", "admin")
	if err != nil {
		t.Fatalf("UpdateRole() error: %v", err)
	}
	if !updated.IsAdmin() {
		t.Errorf("role = %q, want admin", updated.Role)
	}
	if cached := r.Cached(); cached[0].Role != "admin" {
		t.Errorf("mirror role = %q, want admin without re-fetch", cached[0].Role)
	}
}

func TestUsersToggleActive(t *testing.T) {
	db := newTestDB(t, func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]interface{}
		json.NewDecoder(r.Body).Decode(&patch)
		if patch["is_active"] != false {
			t.Errorf("is_active patch = %v, want false", patch["is_active"])
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": "u1", "name": "ana", "role": "user", "is_active": false},
		})
	})

	r := NewUsers(db)
	updated, err := r.ToggleActive(context.Background(), "u1", true)
	if err != nil {
		t.Fatalf("ToggleActive() error: %v", err)
	}
	if updated.Active() {
		t.Error("profile still active after toggle")
	}
}
