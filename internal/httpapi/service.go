// Package httpapi exposes the debt, payment request, user and profile
// operations over REST.
package httpapi

import (
	"context"

	"github.com/debtdesk/debtdesk/internal/domain"
	"github.com/debtdesk/debtdesk/internal/logging"
	"github.com/debtdesk/debtdesk/internal/repo"
	"github.com/debtdesk/debtdesk/internal/supabase"
	"github.com/debtdesk/debtdesk/internal/upload"
)

// DebtStore is the slice of the debt repository the handlers use.
type DebtStore interface {
	Fetch(ctx context.Context, filter repo.DebtFilter) ([]domain.Debt, error)
	Create(ctx context.Context, in repo.NewDebt) (*domain.Debt, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Debt, error)
	Delete(ctx context.Context, id string) error
}

// RequestStore is the slice of the payment request repository the handlers
// use.
type RequestStore interface {
	Fetch(ctx context.Context, filter repo.RequestFilter) ([]domain.PaymentRequest, error)
	Create(ctx context.Context, in repo.NewRequest, receipt *upload.File) (*domain.PaymentRequest, error)
	Approve(ctx context.Context, id, adminNote string) (*domain.PaymentRequest, error)
	Reject(ctx context.Context, id, adminNote string) (*domain.PaymentRequest, error)
}

// ProfileStore is the slice of the profile repository the handlers use.
type ProfileStore interface {
	Get(ctx context.Context, id string) (*domain.Profile, error)
	EnsureExists(ctx context.Context, id, email string) (*domain.Profile, error)
	Update(ctx context.Context, id string, patch map[string]interface{}) (*domain.Profile, error)
}

// UserStore is the slice of the user repository the handlers use.
type UserStore interface {
	Fetch(ctx context.Context) ([]domain.Profile, error)
	UpdateRole(ctx context.Context, id, role string) (*domain.Profile, error)
	ToggleActive(ctx context.Context, id string, current bool) (*domain.Profile, error)
}

// AuthAPI is the slice of the auth client the handlers use.
type AuthAPI interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, email, password string, data map[string]interface{}) (*supabase.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// AvatarStore stores and removes profile avatars.
type AvatarStore interface {
	Avatar(ctx context.Context, userID string, f upload.File) (*upload.Result, error)
	RemoveAvatar(ctx context.Context, avatarURL string) error
}

// Service holds the handler dependencies.
type Service struct {
	auth     AuthAPI
	debts    DebtStore
	requests RequestStore
	profiles ProfileStore
	users    UserStore
	avatars  AvatarStore
	logger   *logging.Logger
}

// New creates the HTTP API service.
func New(auth AuthAPI, debts DebtStore, requests RequestStore, profiles ProfileStore, users UserStore, avatars AvatarStore, logger *logging.Logger) *Service {
	return &Service{
		auth:     auth,
		debts:    debts,
		requests: requests,
		profiles: profiles,
		users:    users,
		avatars:  avatars,
		logger:   logger,
	}
}
