package handlers

import (
	"context"

	"github.com/yapchat/backend/internal/auth"
	"github.com/yapchat/backend/internal/models"
	"github.com/yapchat/backend/internal/storage"
)

// UserStore captures the persistence operations required by the HTTP handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
	UpdateProfile(ctx context.Context, id, displayName string, interests []string) error
	SetProfileImage(ctx context.Context, id, imageURL string) error
}

// SessionManager issues and verifies the signed session tokens carried by the
// session cookie.
type SessionManager interface {
	Issue(userID string) (token, csrfToken string, err error)
	Parse(token string) (auth.Claims, error)
}

// MatchFinder produces a candidate partner for a user.
type MatchFinder interface {
	FindMatch(ctx context.Context, user models.User) (models.MatchCandidate, error)
}

// ChatService captures the yap session and message workflows.
type ChatService interface {
	StartOrReuse(ctx context.Context, user models.User, partnerID string) (models.Yap, models.User, bool, error)
	AssertParticipant(ctx context.Context, userID, yapID string) (models.Yap, error)
	AppendMessage(ctx context.Context, yapID, senderID, kind, text, mediaURL string) (models.Message, error)
	ListMessages(ctx context.Context, yapID string) ([]models.Message, error)
}

// UploadBroker issues time-boxed upload credentials for media.
type UploadBroker interface {
	ProfileUpload(ctx context.Context, userID, contentType string, sizeBytes int64) (storage.UploadCredential, error)
	MessageUpload(ctx context.Context, yapID, contentType string, sizeBytes int64, category string) (storage.UploadCredential, error)
	GenericUpload(ctx context.Context, bucketAlias, objectName, contentType string, sizeBytes int64, category string) (storage.UploadCredential, error)
}
