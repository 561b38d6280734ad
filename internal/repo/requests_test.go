package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/debtdesk/debtdesk/internal/supabase"
	"github.com/debtdesk/debtdesk/internal/upload"
)

func newTestRequests(t *testing.T, handler http.HandlerFunc) *PaymentRequests {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := supabase.New(supabase.Config{URL: srv.URL, AnonKey: "anon", ServiceKey: "service"})
	if err != nil {
		t.Fatal(err)
	}
	return NewPaymentRequests(c.Database(), upload.New(c.Storage()))
}

func TestRequestsCreateUploadsReceiptFirst(t *testing.T) {
	var uploaded bool
	r := newTestRequests(t, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/storage/"):
			uploaded = true
			w.Write([]byte(`{"Key":"ok"}`))
		case req.Method == http.MethodPost:
			if !uploaded {
				t.Error("row inserted before receipt upload")
			}
			var in map[string]interface{}
			json.NewDecoder(req.Body).Decode(&in)
			if in["receipt_name"] != "comprovante.pdf" {
				t.Errorf("receipt_name = %v", in["receipt_name"])
			}
			if u, _ := in["receipt_url"].(string); !strings.Contains(u, "/storage/v1/object/public/payment-receipts/") {
				t.Errorf("receipt_url = %v", in["receipt_url"])
			}
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "r1", "debt_id": "d1", "user_id": "u1", "status": "open",
					"message": in["message"], "receipt_url": in["receipt_url"]},
			})
		}
	})

	created, err := r.Create(context.Background(), NewRequest{
		DebtID: "d1", UserID: "u1", Message: "paguei ontem",
	}, &upload.File{
		Name:        "comprovante.pdf",
		ContentType: "application/pdf",
		Data:        []byte("%PDF-1.4"),
	})
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if created.Status != "open" {
		t.Errorf("status = %q, want open", created.Status)
	}

	cached := r.Cached()
	if len(cached) != 1 || cached[0].ID != "r1" {
		t.Errorf("mirror after create = %+v", cached)
	}
}

func TestRequestsCreateRejectsBadReceipt(t *testing.T) {
	r := newTestRequests(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("no request may reach the store for an invalid receipt")
	})

	_, err := r.Create(context.Background(), NewRequest{
		DebtID: "d1", UserID: "u1", Message: "segue anexo",
	}, &upload.File{
		Name:        "notes.docx",
		ContentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		Data:        make([]byte, 16),
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRequestsCreateRequiresMessage(t *testing.T) {
	r := newTestRequests(t, func(w http.ResponseWriter, req *http.Request) {
		t.Error("store must not be reached")
	})

	if _, err := r.Create(context.Background(), NewRequest{DebtID: "d1"}, nil); err == nil {
		t.Fatal("expected message validation error")
	}
}

// Rejecting an open request sets status and admin_note on the request row
// only. The referenced debt is untouched and its mirror embed survives.
func TestRequestsRejectLeavesDebtAlone(t *testing.T) {
	var debtTouched bool
	r := newTestRequests(t, func(w http.ResponseWriter, req *http.Request) {
		switch {
		case strings.HasPrefix(req.URL.Path, "/rest/v1/debts"):
			debtTouched = true
		case req.Method == http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "r1", "debt_id": "d1", "user_id": "u1", "status": "open",
					"message": "paguei",
					"debts":   map[string]interface{}{"id": "d1", "title": "rent", "status": "pending"}},
			})
		case req.Method == http.MethodPatch:
			var patch map[string]interface{}
			json.NewDecoder(req.Body).Decode(&patch)
			if patch["status"] != "rejected" {
				t.Errorf("patched status = %v", patch["status"])
			}
			if patch["admin_note"] != "insufficient evidence" {
				t.Errorf("admin_note = %v", patch["admin_note"])
			}
			if _, ok := patch["decided_at"]; ok {
				t.Error("decided_at must be stamped by the store, not the client")
			}
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "r1", "debt_id": "d1", "user_id": "u1", "status": "rejected",
					"message": "paguei", "admin_note": "insufficient evidence",
					"decided_at": "2026-08-28T12:00:00Z"},
			})
		}
	})

	if _, err := r.Fetch(context.Background(), RequestFilter{}); err != nil {
		t.Fatal(err)
	}

	rejected, err := r.Reject(context.Background(), "r1", "insufficient evidence")
	if err != nil {
		t.Fatalf("Reject() error: %v", err)
	}
	if rejected.Status != "rejected" || rejected.AdminNote != "insufficient evidence" {
		t.Errorf("rejected = %+v", rejected)
	}
	if !rejected.Decided() {
		t.Error("decided_at missing after rejection")
	}
	if rejected.Debt == nil || rejected.Debt.Status != "pending" {
		t.Errorf("embedded debt = %+v, want pending and preserved", rejected.Debt)
	}
	if debtTouched {
		t.Error("rejecting a request must not write the debts table")
	}

	cached := r.Cached()
	if len(cached) != 1 || cached[0].Status != "rejected" {
		t.Errorf("mirror = %+v", cached)
	}
}

func TestRequestsApproveKeepsDebtPending(t *testing.T) {
	r := newTestRequests(t, func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "r1", "debt_id": "d1", "status": "open",
					"debts": map[string]interface{}{"id": "d1", "status": "pending"}},
			})
		case http.MethodPatch:
			if strings.HasPrefix(req.URL.Path, "/rest/v1/debts") {
				t.Error("approval must not flip the debt")
			}
			json.NewEncoder(w).Encode([]map[string]interface{}{
				{"id": "r1", "debt_id": "d1", "status": "approved",
					"decided_at": "2026-08-28T12:00:00Z"},
			})
		}
	})

	if _, err := r.Fetch(context.Background(), RequestFilter{}); err != nil {
		t.Fatal(err)
	}

	approved, err := r.Approve(context.Background(), "r1", "")
	if err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if approved.Status != "approved" {
		t.Errorf("status = %q", approved.Status)
	}
	if approved.Debt == nil || approved.Debt.Status != "pending" {
		t.Errorf("embedded debt = %+v, want still pending", approved.Debt)
	}
}
