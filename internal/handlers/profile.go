package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/yapchat/backend/internal/logging"
	"github.com/yapchat/backend/internal/repositories"
)

const (
	maxInterests      = 12
	maxInterestLength = 40
)

// ProfileHandler serves the caller's own profile and its avatar uploads.
type ProfileHandler struct {
	SessionReader
	Uploads UploadBroker
}

// Get handles GET /api/profile.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	respondJSON(r.Context(), w, http.StatusOK, map[string]userPayload{"user": publicUser(user)})
}

// Update handles PUT /api/profile.
func (h ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	var req profileUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	displayName := user.DisplayName
	if req.DisplayName != nil {
		displayName = strings.TrimSpace(*req.DisplayName)
		if msg, valid := validateDisplayName(displayName); !valid {
			respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, msg)
			return
		}
	}

	interests := user.Interests
	if req.Interests != nil {
		cleaned, msg, valid := normalizeInterests(*req.Interests)
		if !valid {
			respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, msg)
			return
		}
		interests = cleaned
	}

	if err := h.Users.UpdateProfile(ctx, user.ID, displayName, interests); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "User not found")
			return
		}
		logging.FromContext(ctx).Error("profile update failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unable to update profile")
		return
	}

	user.DisplayName = displayName
	user.Interests = interests
	respondJSON(ctx, w, http.StatusOK, map[string]userPayload{"user": publicUser(user)})
}

// ImageUpload handles POST /api/profile/image/sas, returning a short-lived
// credential the client PUTs the avatar to directly.
func (h ProfileHandler) ImageUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	cred, err := h.Uploads.ProfileUpload(ctx, user.ID, req.ContentType, req.SizeBytes)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, cred)
}

// ImageConfirm handles POST /api/profile/image/confirm, recording the public
// URL once the client finished its upload.
func (h ProfileHandler) ImageConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	var req imageConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL == "" {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "imageUrl is required")
		return
	}

	if err := h.Users.SetProfileImage(ctx, user.ID, imageURL); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, codeNotFound, "User not found")
			return
		}
		logging.FromContext(ctx).Error("profile image confirm failed", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unable to update profile image")
		return
	}

	user.ProfileImageURL = imageURL
	respondJSON(ctx, w, http.StatusOK, map[string]userPayload{"user": publicUser(user)})
}

// normalizeInterests trims, lowercases, and de-duplicates interests, keeping
// first-seen order.
func normalizeInterests(raw []string) ([]string, string, bool) {
	cleaned := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, interest := range raw {
		interest = strings.ToLower(strings.TrimSpace(interest))
		if interest == "" {
			continue
		}
		if len([]rune(interest)) > maxInterestLength {
			return nil, "Interests must be 40 characters or fewer", false
		}
		if _, dup := seen[interest]; dup {
			continue
		}
		seen[interest] = struct{}{}
		cleaned = append(cleaned, interest)
	}
	if len(cleaned) > maxInterests {
		return nil, "At most 12 interests allowed", false
	}
	return cleaned, "", true
}

type profileUpdateRequest struct {
	DisplayName *string   `json:"displayName"`
	Interests   *[]string `json:"interests"`
}

type uploadRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type imageConfirmRequest struct {
	ImageURL string `json:"imageUrl"`
}
