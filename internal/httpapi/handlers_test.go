package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/logging"
	"github.com/debtdesk/debtdesk/internal/middleware"
	"github.com/debtdesk/debtdesk/internal/repo"
	"github.com/debtdesk/debtdesk/internal/supabase"
	"github.com/debtdesk/debtdesk/internal/upload"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type memDebts struct {
	items []domain.Debt
}

func (m *memDebts) Fetch(ctx context.Context, filter repo.DebtFilter) ([]domain.Debt, error) {
	if filter.UserID == "" {
		return m.items, nil
	}
	var out []domain.Debt
	for _, d := range m.items {
		if d.UserID == filter.UserID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDebts) Create(ctx context.Context, in repo.NewDebt) (*domain.Debt, error) {
	d := domain.Debt{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Title:       in.Title,
		Description: in.Description,
		AmountCents: in.AmountCents,
		Status:      domain.DebtPending,
		CreatedBy:   in.CreatedBy,
	}
	m.items = append([]domain.Debt{d}, m.items...)
	return &d, nil
}

func (m *memDebts) Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Debt, error) {
	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		if status, ok := patch["status"].(string); ok {
			m.items[i].Status = status
		}
		if title, ok := patch["title"].(string); ok {
			m.items[i].Title = title
		}
		return &m.items[i], nil
	}
	return nil, fmt.Errorf("debt not found: %s", id)
}

func (m *memDebts) Delete(ctx context.Context, id string) error {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("debt not found: %s", id)
}

type memRequests struct {
	items []domain.PaymentRequest
}

func (m *memRequests) Fetch(ctx context.Context, filter repo.RequestFilter) ([]domain.PaymentRequest, error) {
	if filter.UserID == "" {
		return m.items, nil
	}
	var out []domain.PaymentRequest
	for _, r := range m.items {
		if r.UserID == filter.UserID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRequests) Create(ctx context.Context, in repo.NewRequest, receipt *upload.File) (*domain.PaymentRequest, error) {
	pr := domain.PaymentRequest{
		ID:      uuid.New().String(),
		DebtID:  in.DebtID,
		UserID:  in.UserID,
		Message: in.Message,
		Status:  domain.RequestOpen,
	}
	if receipt != nil {
		if err := upload.ValidateReceipt(receipt.ContentType, int64(len(receipt.Data))); err != nil {
			return nil, err
		}
		pr.ReceiptURL = "https://storage.example/" + receipt.Name
		pr.ReceiptName = receipt.Name
	}
	m.items = append([]domain.PaymentRequest{pr}, m.items...)
	return &pr, nil
}

func (m *memRequests) Approve(ctx context.Context, id, note string) (*domain.PaymentRequest, error) {
	return m.decide(id, domain.RequestApproved, note)
}

func (m *memRequests) Reject(ctx context.Context, id, note string) (*domain.PaymentRequest, error) {
	return m.decide(id, domain.RequestRejected, note)
}

func (m *memRequests) decide(id, status, note string) (*domain.PaymentRequest, error) {
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Status = status
			m.items[i].AdminNote = note
			return &m.items[i], nil
		}
	}
	return nil, fmt.Errorf("request not found: %s", id)
}

type memProfiles struct {
	rows map[string]*domain.Profile
}

func (m *memProfiles) Get(ctx context.Context, id string) (*domain.Profile, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	return p, nil
}

func (m *memProfiles) EnsureExists(ctx context.Context, id, email string) (*domain.Profile, error) {
	if p, ok := m.rows[id]; ok {
		return p, nil
	}
	name := email
	if i := strings.Index(email, "@"); i > 0 {
		name = email[:i]
	}
	p := &domain.Profile{ID: id, Name: name, Role: domain.RoleUser}
	m.rows[id] = p
	return p, nil
}

func (m *memProfiles) Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Profile, error) {
	p, ok := m.rows[id]
	if !ok {
		return nil, errors.New("profile not found")
	}
	if name, ok := patch["name"].(string); ok {
		p.Name = name
	}
	if url, ok := patch["avatar_url"].(string); ok {
		p.AvatarURL = url
	}
	return p, nil
}

type memUsers struct {
	profiles *memProfiles
}

func (m *memUsers) Fetch(ctx context.Context) ([]domain.Profile, error) {
	out := make([]domain.Profile, 0, len(m.profiles.rows))
	for _, p := range m.profiles.rows {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memUsers) UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error) {
	p, ok := m.profiles.rows[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	p.Role = role
	return p, nil
}

func (m *memUsers) ToggleActive(ctx context.Context, id string, current bool) (*domain.Profile, error) {
	p, ok := m.profiles.rows[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	next := !current
	p.IsActive = &next
	return p, nil
}

type stubAuth struct {
	session *supabase.Session
	err     error
}

func (s *stubAuth) SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error) {
	return s.session, s.err
}

func (s *stubAuth) SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.Session, error) {
	return s.session, s.err
}

func (s *stubAuth) SignOut(ctx context.Context, token string) error { return nil }

type memAvatars struct {
	removed []string
}

func (m *memAvatars) Avatar(ctx context.Context, userID string, f upload.File) (*upload.Result, error) {
	if err := upload.ValidateAvatar(f.ContentType, int64(len(f.Data))); err != nil {
		return nil, err
	}
	return &upload.Result{
		URL:  "https://storage.example/avatars/" + userID + "/" + f.Name,
		Name: f.Name,
		Path: userID + "/" + f.Name,
	}, nil
}

func (m *memAvatars) RemoveAvatar(ctx context.Context, url string) error {
	m.removed = append(m.removed, url)
	return nil
}

// ---------------------------------------------------------------------------
// Harness
// ---------------------------------------------------------------------------

type fixture struct {
	router   *mux.Router
	debts    *memDebts
	requests *memRequests
	profiles *memProfiles
	users    *memUsers
	avatars  *memAvatars
	auth     *stubAuth
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logging.New("httpapi-test", "error", "text")

	profiles := &memProfiles{rows: map[string]*domain.Profile{
		"admin-1": {ID: "admin-1", Name: "Admin", Role: domain.RoleAdmin},
		"user-1":  {ID: "user-1", Name: "Ana", Role: domain.RoleUser},
		"user-2":  {ID: "user-2", Name: "Bruno", Role: domain.RoleUser},
	}}
	f := &fixture{
		debts:    &memDebts{},
		requests: &memRequests{},
		profiles: profiles,
		users:    &memUsers{profiles: profiles},
		avatars:  &memAvatars{},
		auth:     &stubAuth{},
	}

	svc := New(f.auth, f.debts, f.requests, f.profiles, f.users, f.avatars, logger)
	f.router = mux.NewRouter()
	svc.Register(f.router, middleware.RequireAdmin(f.profiles, logger))
	return f
}

// as stamps the request with an authenticated identity.
func as(req *http.Request, userID string) *http.Request {
	ctx := middleware.WithIdentity(req.Context(), &middleware.Identity{
		ID:    userID,
		Email: userID + "@example.com",
		Role:  "authenticated",
		Token: "token-" + userID,
	})
	ctx = logging.WithUserID(ctx, userID)
	return req.WithContext(ctx)
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSignInReturnsSessionAndProfile(t *testing.T) {
	f := newFixture(t)
	f.auth.session = &supabase.Session{
		AccessToken: "at",
		User:        &supabase.User{ID: "user-9", Email: "carla@example.com"},
	}

	req := httptest.NewRequest("POST", "/api/auth/signin",
		jsonBody(t, map[string]string{"email": "carla@example.com", "password": "pw"}))
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Session *supabase.Session `json:"session"`
		Profile *domain.Profile   `json:"profile"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Session == nil || resp.Session.AccessToken != "at" {
		t.Errorf("session = %+v", resp.Session)
	}
	if resp.Profile == nil || resp.Profile.Name != "carla" {
		t.Errorf("profile = %+v, want auto-created from email local-part", resp.Profile)
	}
}

func TestSignInPassesProviderErrorThrough(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New("Invalid login credentials")

	req := httptest.NewRequest("POST", "/api/auth/signin",
		jsonBody(t, map[string]string{"email": "x@example.com", "password": "bad"}))
	rec := f.do(req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid login credentials") {
		t.Errorf("body = %s, want provider message verbatim", rec.Body.String())
	}
}

func TestListDebtsScopedToCaller(t *testing.T) {
	f := newFixture(t)
	f.debts.items = []domain.Debt{
		{ID: "d1", UserID: "user-1", Title: "rent", AmountCents: 150, Status: "pending"},
		{ID: "d2", UserID: "user-2", Title: "bill", AmountCents: 5000, Status: "pending"},
	}

	rec := f.do(as(httptest.NewRequest("GET", "/api/debts", nil), "user-1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var debts []debtView
	json.Unmarshal(rec.Body.Bytes(), &debts)
	if len(debts) != 1 || debts[0].UserID != "user-1" {
		t.Errorf("debts = %+v, non-admin must only see their own", debts)
	}
	if debts[0].AmountFormatted != "R$ 1,50" {
		t.Errorf("amount_formatted = %q", debts[0].AmountFormatted)
	}
}

func TestListDebtsAdminSeesAll(t *testing.T) {
	f := newFixture(t)
	f.debts.items = []domain.Debt{
		{ID: "d1", UserID: "user-1", AmountCents: 150},
		{ID: "d2", UserID: "user-2", AmountCents: 5000},
	}

	rec := f.do(as(httptest.NewRequest("GET", "/api/debts", nil), "admin-1"))
	var debts []debtView
	json.Unmarshal(rec.Body.Bytes(), &debts)
	if len(debts) != 2 {
		t.Errorf("admin sees %d debts, want 2", len(debts))
	}
}

func TestCreateDebtAdminOnly(t *testing.T) {
	f := newFixture(t)
	payload := map[string]interface{}{
		"user_id": "user-1", "title": "aluguel", "amount_cents": 123456,
	}

	rec := f.do(as(httptest.NewRequest("POST", "/api/debts", jsonBody(t, payload)), "user-1"))
	if rec.Code != http.StatusForbidden {
		t.Errorf("non-admin create = %d, want 403", rec.Code)
	}

	rec = f.do(as(httptest.NewRequest("POST", "/api/debts", jsonBody(t, payload)), "admin-1"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create = %d, body %s", rec.Code, rec.Body.String())
	}

	var created debtView
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.CreatedBy != "admin-1" {
		t.Errorf("created_by = %q", created.CreatedBy)
	}
	if created.AmountFormatted != "R$ 1.234,56" {
		t.Errorf("amount_formatted = %q", created.AmountFormatted)
	}
}

func TestUpdateDebtRejectsUnknownField(t *testing.T) {
	f := newFixture(t)
	f.debts.items = []domain.Debt{{ID: "d1", UserID: "user-1"}}

	req := as(httptest.NewRequest("PATCH", "/api/debts/d1",
		jsonBody(t, map[string]interface{}{"owner": "someone"})), "admin-1")
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for unknown field", rec.Code)
	}
}

func TestMarkDebtPaid(t *testing.T) {
	f := newFixture(t)
	f.debts.items = []domain.Debt{{ID: "d1", UserID: "user-1", Status: "pending"}}

	req := as(httptest.NewRequest("PATCH", "/api/debts/d1",
		jsonBody(t, map[string]interface{}{"status": "paid"})), "admin-1")
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if f.debts.items[0].Status != "paid" {
		t.Errorf("debt status = %q", f.debts.items[0].Status)
	}
}

func multipartRequest(t *testing.T, target string, fields map[string]string, fileField, fileName, fileType string, fileData []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if fileField != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, fileField, fileName)}
		h["Content-Type"] = []string{fileType}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(fileData)
	}
	mw.Close()

	req := httptest.NewRequest("POST", target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreateRequestWithReceipt(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/requests",
		map[string]string{"debt_id": "d1", "message": "paguei ontem"},
		"receipt", "comprovante.pdf", "application/pdf", []byte("%PDF-1.4"))
	rec := f.do(as(req, "user-1"))

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var created domain.PaymentRequest
	json.Unmarshal(rec.Body.Bytes(), &created)
	if created.Status != domain.RequestOpen {
		t.Errorf("status = %q, want open", created.Status)
	}
	if created.UserID != "user-1" {
		t.Errorf("user_id = %q, must come from the token", created.UserID)
	}
	if created.ReceiptName != "comprovante.pdf" {
		t.Errorf("receipt_name = %q", created.ReceiptName)
	}
}

func TestCreateRequestRejectsOversizeReceipt(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/requests",
		map[string]string{"debt_id": "d1", "message": "segue"},
		"receipt", "big.pdf", "application/pdf", make([]byte, upload.MaxReceiptSize+1))
	rec := f.do(as(req, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if len(f.requests.items) != 0 {
		t.Error("request stored despite invalid receipt")
	}
}

func TestApproveDoesNotFlipDebt(t *testing.T) {
	f := newFixture(t)
	f.debts.items = []domain.Debt{{ID: "d1", UserID: "user-1", Status: "pending"}}
	f.requests.items = []domain.PaymentRequest{
		{ID: "r1", DebtID: "d1", UserID: "user-1", Status: domain.RequestOpen},
	}

	req := as(httptest.NewRequest("POST", "/api/requests/r1/approve", nil), "admin-1")
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if f.requests.items[0].Status != domain.RequestApproved {
		t.Errorf("request status = %q", f.requests.items[0].Status)
	}
	if f.debts.items[0].Status != "pending" {
		t.Errorf("debt status = %q, approval must not mark it paid", f.debts.items[0].Status)
	}
}

func TestRejectWithNote(t *testing.T) {
	f := newFixture(t)
	f.requests.items = []domain.PaymentRequest{
		{ID: "r1", DebtID: "d1", UserID: "user-1", Status: domain.RequestOpen},
	}

	req := as(httptest.NewRequest("POST", "/api/requests/r1/reject",
		jsonBody(t, map[string]string{"note": "insufficient evidence"})), "admin-1")
	rec := f.do(req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := f.requests.items[0]
	if got.Status != domain.RequestRejected || got.AdminNote != "insufficient evidence" {
		t.Errorf("request = %+v", got)
	}
}

func TestDecisionEndpointsAdminOnly(t *testing.T) {
	f := newFixture(t)
	f.requests.items = []domain.PaymentRequest{
		{ID: "r1", Status: domain.RequestOpen},
	}

	for _, action := range []string{"approve", "reject"} {
		req := as(httptest.NewRequest("POST", "/api/requests/r1/"+action, nil), "user-1")
		rec := f.do(req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("%s as user = %d, want 403", action, rec.Code)
		}
	}
}

func TestUserRoleAndActiveEndpoints(t *testing.T) {
	f := newFixture(t)

	req := as(httptest.NewRequest("PATCH", "/api/users/user-1/role",
		jsonBody(t, map[string]string{"role": "admin"})), "admin-1")
	rec := f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("role update = %d", rec.Code)
	}
	if f.profiles.rows["user-1"].Role != domain.RoleAdmin {
		t.Errorf("role = %q", f.profiles.rows["user-1"].Role)
	}

	req = as(httptest.NewRequest("PATCH", "/api/users/user-2/active",
		jsonBody(t, map[string]bool{"current": true})), "admin-1")
	rec = f.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d", rec.Code)
	}
	if f.profiles.rows["user-2"].Active() {
		t.Error("user-2 still active after toggle")
	}

	req = as(httptest.NewRequest("GET", "/api/users", nil), "user-1")
	rec = f.do(req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("user listing as non-admin = %d, want 403", rec.Code)
	}
}

func TestInvalidRoleRejected(t *testing.T) {
	f := newFixture(t)

	req := as(httptest.NewRequest("PATCH", "/api/users/user-1/role",
		jsonBody(t, map[string]string{"role": "root"})), "admin-1")
	rec := f.do(req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	f := newFixture(t)

	// First sight provisions a default profile.
	rec := f.do(as(httptest.NewRequest("GET", "/api/profile", nil), "user-9"))
	if rec.Code != http.StatusOK {
		t.Fatalf("get = %d", rec.Code)
	}
	var p domain.Profile
	json.Unmarshal(rec.Body.Bytes(), &p)
	if p.Name != "user-9" || p.Role != domain.RoleUser {
		t.Errorf("provisioned profile = %+v", p)
	}

	rec = f.do(as(httptest.NewRequest("PATCH", "/api/profile",
		jsonBody(t, map[string]string{"name": "Carlos"})), "user-9"))
	if rec.Code != http.StatusOK {
		t.Fatalf("patch = %d", rec.Code)
	}
	if f.profiles.rows["user-9"].Name != "Carlos" {
		t.Errorf("name = %q", f.profiles.rows["user-9"].Name)
	}

	rec = f.do(as(httptest.NewRequest("PATCH", "/api/profile",
		jsonBody(t, map[string]string{"role": "admin"})), "user-9"))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("self role change = %d, want 400", rec.Code)
	}
}

func TestAvatarUploadReplacesPrevious(t *testing.T) {
	f := newFixture(t)
	f.profiles.rows["user-1"].AvatarURL = "https://storage.example/avatars/user-1/old.png"

	req := multipartRequest(t, "/api/profile/avatar", nil,
		"avatar", "new.png", "image/png", []byte("img"))
	rec := f.do(as(req, "user-1"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(f.profiles.rows["user-1"].AvatarURL, "new.png") {
		t.Errorf("avatar_url = %q", f.profiles.rows["user-1"].AvatarURL)
	}
	if len(f.avatars.removed) != 1 || !strings.Contains(f.avatars.removed[0], "old.png") {
		t.Errorf("removed = %v, want previous avatar cleaned up", f.avatars.removed)
	}
}

func TestAvatarUploadRejectsPDF(t *testing.T) {
	f := newFixture(t)

	req := multipartRequest(t, "/api/profile/avatar", nil,
		"avatar", "doc.pdf", "application/pdf", []byte("%PDF"))
	rec := f.do(as(req, "user-1"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
