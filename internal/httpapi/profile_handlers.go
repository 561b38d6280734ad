package httpapi

import (
	"io"
	"net/http"

	"github.com/debtdesk/debtdesk/internal/httputil"
	"github.com/debtdesk/debtdesk/internal/middleware"
	"github.com/debtdesk/debtdesk/internal/upload"
)

// handleGetProfile returns the caller's profile, provisioning the default
// row on first sight.
func (s *Service) handleGetProfile(w http.ResponseWriter, r *http.Request) {
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

	httputil.WriteJSON(w, http.StatusOK, profile)
}

// profilePatchFields are the columns a caller may change on their own
// profile. Role and active flags only move through the admin endpoints.
var profilePatchFields = map[string]bool{
	"name":       true,
	"avatar_url": true,
}

// handleUpdateProfile patches the caller's own profile.
func (s *Service) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		httputil.Unauthorized(w, "")
		return
	}

	var patch map[string]interface{}
	if !httputil.DecodeJSON(w, r, &patch) {
		return
	}
	for field := range patch {
		if !profilePatchFields[field] {
			httputil.BadRequest(w, "unknown field: "+field)
			return
		}
	}
	if len(patch) == 0 {
		httputil.BadRequest(w, "empty patch")
		return
	}

	updated, err := s.profiles.Update(r.Context(), identity.ID, patch)
	if err != nil {
		httputil.InternalError(w, "failed to update profile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}

// handleUploadAvatar stores a new avatar and points the caller's profile
// at it. The previous avatar object is removed best effort.
func (s *Service) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		httputil.Unauthorized(w, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := r.ParseMultipartForm(maxRequestBody); err != nil {
		httputil.BadRequest(w, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		httputil.BadRequest(w, "avatar file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httputil.BadRequest(w, "failed to read avatar")
		return
	}

	previous := ""
	if current, err := s.profiles.Get(r.Context(), identity.ID); err == nil {
		previous = current.AvatarURL
	}

	stored, err := s.avatars.Avatar(r.Context(), identity.ID, upload.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	updated, err := s.profiles.Update(r.Context(), identity.ID, map[string]interface{}{
		"avatar_url": stored.URL,
	})
	if err != nil {
		httputil.InternalError(w, "failed to update profile")
		return
	}

	if previous != "" && previous != stored.URL {
		if err := s.avatars.RemoveAvatar(r.Context(), previous); err != nil {
			s.logger.WithContext(r.Context()).WithError(err).Warn("stale avatar cleanup failed")
		}
	}

	httputil.WriteJSON(w, http.StatusOK, updated)
}
