package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/yapchat/backend/internal/models"
	"github.com/yapchat/backend/internal/storage"
)

// ChatHandler serves yap sessions and their transcripts.
type ChatHandler struct {
	SessionReader
	Chats   ChatService
	Uploads UploadBroker
}

// Start handles POST /api/chat/start. Starting with a partner the caller already
// has an active yap with reuses that yap and does not consume quota; only a
// genuinely new conversation counts against the daily limit.
func (h ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	var req startYapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	partnerID := strings.TrimSpace(req.PartnerID)
	if partnerID == "" {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "partnerId is required")
		return
	}

	yap, partner, created, err := h.Chats.StartOrReuse(ctx, user, partnerID)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	respondJSON(ctx, w, status, yapResponse{
		Yap:     yapPayload(yap),
		Partner: partnerUser(partner),
		Created: created,
	})
}

// Messages handles GET /api/chat/{yapId}/messages.
func (h ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, _, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	yapID := r.PathValue("yapId")
	if _, err := h.Chats.AssertParticipant(ctx, user.ID, yapID); err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	messages, err := h.Chats.ListMessages(ctx, yapID)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	payload := make([]messagePayload, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, messageToPayload(message))
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]messagePayload{"messages": payload})
}

// Send handles POST /api/chat/{yapId}/messages.
func (h ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	yapID := r.PathValue("yapId")
	if _, err := h.Chats.AssertParticipant(ctx, user.ID, yapID); err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	message, err := h.Chats.AppendMessage(ctx, yapID, user.ID, strings.TrimSpace(req.Kind), req.Text, req.MediaURL)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]messagePayload{"message": messageToPayload(message)})
}

// MediaUpload handles POST /api/chat/{yapId}/media/sas, issuing a
// short-lived credential for an image or audio attachment.
func (h ChatHandler) MediaUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	yapID := r.PathValue("yapId")
	if _, err := h.Chats.AssertParticipant(ctx, user.ID, yapID); err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	var req mediaUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	category := strings.TrimSpace(req.Category)
	switch category {
	case storage.CategoryImage, storage.CategoryAudio:
	default:
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "category must be image or audio")
		return
	}

	cred, err := h.Uploads.MessageUpload(ctx, yapID, req.ContentType, req.SizeBytes, category)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, cred)
}

func yapPayload(yap models.Yap) yapBody {
	return yapBody{
		ID:           yap.ID,
		Participants: yap.Participants(),
		StartedAt:    yap.StartedAt,
		EndedAt:      yap.EndedAt,
		IsActive:     yap.IsActive,
	}
}

func messageToPayload(message models.Message) messagePayload {
	return messagePayload{
		ID:        message.ID,
		YapID:     message.YapID,
		SenderID:  message.SenderID,
		Kind:      message.Kind,
		Text:      message.Text,
		MediaURL:  message.MediaURL,
		CreatedAt: message.CreatedAt,
	}
}

type startYapRequest struct {
	PartnerID string `json:"partnerId"`
}

type sendMessageRequest struct {
	Kind     string `json:"kind"`
	Text     string `json:"text"`
	MediaURL string `json:"mediaUrl"`
}

type mediaUploadRequest struct {
	Category    string `json:"category"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type messagePayload struct {
	ID        string    `json:"id"`
	YapID     string    `json:"yapId"`
	SenderID  string    `json:"senderId"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	MediaURL  string    `json:"mediaUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type yapBody struct {
	ID           string     `json:"id"`
	Participants []string   `json:"participants"`
	StartedAt    time.Time  `json:"startedAt"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
	IsActive     bool       `json:"isActive"`
}

type yapResponse struct {
	Yap     yapBody     `json:"yap"`
	Partner userPayload `json:"partner"`
	Created bool        `json:"created"`
}
