package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yapchat/backend/internal/auth"
	"github.com/yapchat/backend/internal/chat"
	"github.com/yapchat/backend/internal/logging"
	"github.com/yapchat/backend/internal/match"
	"github.com/yapchat/backend/internal/ratelimit"
	"github.com/yapchat/backend/internal/storage"
)

// Stable error codes surfaced in the response envelope.
const (
	codeUnauthorized       = "UNAUTHORIZED"
	codeInvalidCredentials = "INVALID_CREDENTIALS"
	codeEmailInUse         = "EMAIL_IN_USE"
	codeCSRFMissing        = "CSRF_MISSING"
	codeCSRFInvalid        = "CSRF_INVALID"
	codeInvalidInput       = "INVALID_INPUT"
	codeProfileIncomplete  = "PROFILE_INCOMPLETE"
	codeNoMatch            = "NO_MATCH"
	codeInvalidPartner     = "INVALID_PARTNER"
	codePartnerNotFound    = "PARTNER_NOT_FOUND"
	codeYapNotFound        = "YAP_NOT_FOUND"
	codeNotParticipant     = "NOT_PARTICIPANT"
	codeYapLimit           = "YAP_LIMIT"
	codeUnsupportedMedia   = "UNSUPPORTED_MEDIA"
	codeMediaTooLarge      = "MEDIA_TOO_LARGE"
	codeRateLimited        = "RATE_LIMITED"
	codeNotFound           = "NOT_FOUND"
	codeInternalError      = "INTERNAL_ERROR"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		logging.FromContext(ctx).Error("request failed", "status", status, "code", code)
	} else {
		logging.FromContext(ctx).Warn("request returned client error", "status", status, "code", code)
	}
	respondJSON(ctx, w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// respondDomainError translates well-known domain errors into the stable
// envelope. Anything unexpected is logged and collapsed to a generic 500 so
// internals never leak to the caller.
func respondDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		respondError(ctx, w, http.StatusUnauthorized, codeUnauthorized, "Invalid token")
	case errors.Is(err, auth.ErrCSRFMissing):
		respondError(ctx, w, http.StatusForbidden, codeCSRFMissing, "CSRF token missing from session")
	case errors.Is(err, auth.ErrCSRFInvalid):
		respondError(ctx, w, http.StatusForbidden, codeCSRFInvalid, "Invalid CSRF token")
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		respondError(ctx, w, http.StatusTooManyRequests, codeYapLimit, "Daily yap limit reached")
	case errors.Is(err, match.ErrProfileIncomplete):
		respondError(ctx, w, http.StatusBadRequest, codeProfileIncomplete, "Profile incomplete")
	case errors.Is(err, match.ErrNoMatch):
		respondError(ctx, w, http.StatusNotFound, codeNoMatch, "No match available right now")
	case errors.Is(err, chat.ErrSelfYap):
		respondError(ctx, w, http.StatusBadRequest, codeInvalidPartner, "Cannot start a yap with yourself")
	case errors.Is(err, chat.ErrPartnerNotFound):
		respondError(ctx, w, http.StatusNotFound, codePartnerNotFound, "Partner not found")
	case errors.Is(err, chat.ErrYapNotFound):
		respondError(ctx, w, http.StatusNotFound, codeYapNotFound, "Yap not found")
	case errors.Is(err, chat.ErrNotParticipant):
		respondError(ctx, w, http.StatusForbidden, codeNotParticipant, "Not part of this yap")
	case errors.Is(err, chat.ErrInvalidMessage):
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid message payload")
	case errors.Is(err, storage.ErrUnsupportedMedia):
		respondError(ctx, w, http.StatusBadRequest, codeUnsupportedMedia, "Unsupported media type")
	case errors.Is(err, storage.ErrMediaTooLarge):
		respondError(ctx, w, http.StatusBadRequest, codeMediaTooLarge, "Media exceeds maximum size")
	case errors.Is(err, storage.ErrUnknownBucket):
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Unknown container")
	default:
		logging.FromContext(ctx).Error("unhandled error", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, codeInternalError, "Unexpected error")
	}
}
