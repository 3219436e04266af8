package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// MediaHandler issues upload credentials for arbitrary named objects. The
// chat and profile flows have stricter, purpose-built endpoints; this one
// backs miscellaneous client assets.
type MediaHandler struct {
	SessionReader
	Uploads UploadBroker
}

// Upload handles POST /api/media/sas.
func (h MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	_, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	var req genericUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid request body")
		return
	}

	objectName := strings.TrimSpace(req.ObjectName)
	if objectName == "" || strings.Contains(objectName, "..") {
		respondError(ctx, w, http.StatusBadRequest, codeInvalidInput, "Invalid object name")
		return
	}

	cred, err := h.Uploads.GenericUpload(ctx, req.Container, objectName, req.ContentType, req.SizeBytes, req.Category)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, cred)
}

type genericUploadRequest struct {
	Container   string `json:"container"`
	ObjectName  string `json:"objectName"`
	Category    string `json:"category"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}
