// Package domain defines the records stored in the hosted Supabase tables.
// Rows are decoded into these explicit schemas at the boundary instead of
// being passed around as untyped maps.
package domain

import "time"

// Role values for profiles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Debt status values.
const (
	DebtPending = "pending"
	DebtPaid    = "paid"
)

// PaymentRequest status values.
const (
	RequestOpen     = "open"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Profile is the application-level user record, keyed by the auth
// provider's identity id (one-to-one).
type Profile struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Role      string     `json:"role"`
	IsActive  *bool      `json:"is_active,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsAdmin reports whether the profile has the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// Active reports the is_active flag, defaulting to true when unset.
func (p *Profile) Active() bool {
	if p == nil || p.IsActive == nil {
		return true
	}
	return *p.IsActive
}

// Debt is a money obligation owed by one user. Amounts are integer minor
// currency units; the status only changes through admin actions.
type Debt struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	// Owner is the embedded profiles relation when the fetch requested it.
	Owner *Profile `json:"profiles,omitempty"`
}

// PaymentRequest is a user-submitted claim that a debt has been paid,
// pending an admin decision. open -> approved|rejected happens exactly once;
// decided_at is stamped by the hosted store, not the client.
type PaymentRequest struct {
	ID          string     `json:"id"`
	DebtID      string     `json:"debt_id"`
	UserID      string     `json:"user_id"`
	Message     string     `json:"message"`
	ReceiptURL  string     `json:"receipt_url,omitempty"`
	ReceiptName string     `json:"receipt_name,omitempty"`
	Status      string     `json:"status"`
	AdminNote   string     `json:"admin_note,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	DecidedAt   *time.Time `json:"decided_at,omitempty"`

	// Embedded relations, populated when the fetch requested them.
	Debt      *Debt    `json:"debts,omitempty"`
	Requester *Profile `json:"profiles,omitempty"`
}

// Decided reports whether the request has reached a terminal state.
func (r *PaymentRequest) Decided() bool {
	return r.Status == RequestApproved || r.Status == RequestRejected
}

// ValidRole reports whether s is a known profile role.
func ValidRole(s string) bool {
	return s == RoleUser || s == RoleAdmin
}

// ValidDebtStatus reports whether s is a known debt status.
func ValidDebtStatus(s string) bool {
	return s == DebtPending || s == DebtPaid
}

// ValidRequestStatus reports whether s is a known payment request status.
func ValidRequestStatus(s string) bool {
	return s == RequestOpen || s == RequestApproved || s == RequestRejected
}
