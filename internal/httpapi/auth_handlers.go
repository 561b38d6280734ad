package httpapi

import (
	"net/http"
	"strings"

	"github.com/debtdesk/debtdesk/internal/httputil"
	"github.com/debtdesk/debtdesk/internal/middleware"
	"github.com/debtdesk/debtdesk/internal/supabase"
)

type signUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type signInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Session *supabase.Session `json:"session"`
	Profile interface{}       `json:"profile,omitempty"`
}

// handleSignUp registers a new account, attaching the display name as user
// metadata.
func (s *Service) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in signUpInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		httputil.BadRequest(w, "email and password required")
		return
	}

	session, err := s.auth.SignUp(r.Context(), in.Email, in.Password, map[string]interface{}{
		"name": in.Name,
	})
	if err != nil {
		// Provider messages pass through verbatim.
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{Session: session})
}

// handleSignIn authenticates and resolves the caller's profile, creating
// the default row on first sign-in.
func (s *Service) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in signInInput
	if !httputil.DecodeJSON(w, r, &in) {
		return
	}
	if in.Email == "" || in.Password == "" {
		httputil.BadRequest(w, "email and password required")
		return
	}

	session, err := s.auth.SignInWithPassword(r.Context(), in.Email, in.Password)
	if err != nil {
		httputil.Unauthorized(w, err.Error())
		return
	}

	resp := sessionResponse{Session: session}
	if session.User != nil {
		profile, err := s.profiles.EnsureExists(r.Context(), session.User.ID, session.User.Email)
		if err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Warn("profile resolution failed on sign-in")
		} else {
			resp.Profile = profile
		}
	}

	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleSignOut revokes the caller's session.
func (s *Service) handleSignOut(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		httputil.Unauthorized(w, "")
		return
	}

	if err := s.auth.SignOut(r.Context(), identity.Token); err != nil {
		s.logger.WithContext(r.Context()).WithError(err).Warn("sign-out revocation failed")
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the caller's identity and resolved profile.
func (s *Service) handleMe(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		httputil.Unauthorized(w, "")
		return
	}

	profile, err := s.profiles.EnsureExists(r.Context(), identity.ID, identity.Email)
	if err != nil {
		httputil.InternalError(w, "failed to resolve profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"id":      identity.ID,
		"email":   identity.Email,
		"profile": profile,
	})
}
