// Package chat manages yap session lifecycles and their message transcripts.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yapchat/backend/internal/logging"
	"github.com/yapchat/backend/internal/models"
	"github.com/yapchat/backend/internal/repositories"
)

var (
	// ErrSelfYap indicates a user tried to start a yap with themself.
	ErrSelfYap = errors.New("cannot start a yap with yourself")
	// ErrPartnerNotFound indicates the requested partner does not exist.
	ErrPartnerNotFound = errors.New("partner not found")
	// ErrYapNotFound indicates the yap id does not resolve.
	ErrYapNotFound = errors.New("yap not found")
	// ErrNotParticipant indicates the user is not part of the yap.
	ErrNotParticipant = errors.New("not part of this yap")
	// ErrInvalidMessage indicates the message payload violates the
	// type/payload pairing rules.
	ErrInvalidMessage = errors.New("invalid message payload")
)

// UserStore resolves partner identities.
type UserStore interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// YapStore persists yap sessions. Create must fail with
// repositories.ErrConflict when an active yap already exists for the pair, so
// that concurrent start attempts cannot produce two active sessions.
type YapStore interface {
	FindByID(ctx context.Context, id string) (models.Yap, error)
	FindActiveByPair(ctx context.Context, userA, userB string) (models.Yap, error)
	Create(ctx context.Context, yap models.Yap) error
}

// MessageStore persists yap messages.
type MessageStore interface {
	Create(ctx context.Context, message models.Message) error
	ListByYap(ctx context.Context, yapID string) ([]models.Message, error)
}

// QuotaKeeper gates and charges the daily new-yap quota. Check runs only when
// a new yap is about to be created; reuse of an existing active yap is exempt.
type QuotaKeeper interface {
	Check(ctx context.Context, userID string) error
	Record(ctx context.Context, userID string) error
}

// Service implements the yap session and message workflows.
type Service struct {
	users    UserStore
	yaps     YapStore
	messages MessageStore
	quota    QuotaKeeper

	nowFunc func() time.Time
}

// NewService constructs a chat service over the provided stores.
func NewService(users UserStore, yaps YapStore, messages MessageStore, quota QuotaKeeper) *Service {
	return &Service{
		users:    users,
		yaps:     yaps,
		messages: messages,
		quota:    quota,
		nowFunc:  time.Now,
	}
}

// StartOrReuse returns the active yap between the user and partner, creating
// it when none exists. The daily quota gate runs up front on every start
// attempt, before the reuse lookup, so a capped user cannot start at all.
// Only creation charges the quota; reuse never does. The returned flag
// reports whether a new yap was created.
func (s *Service) StartOrReuse(ctx context.Context, user models.User, partnerID string) (models.Yap, models.User, bool, error) {
	ctx, span := logging.StartSpan(ctx, "chat.start")
	defer span.End()

	if partnerID == user.ID {
		return models.Yap{}, models.User{}, false, ErrSelfYap
	}

	if err := s.quota.Check(ctx, user.ID); err != nil {
		return models.Yap{}, models.User{}, false, err
	}

	partner, err := s.users.FindByID(ctx, partnerID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Yap{}, models.User{}, false, ErrPartnerNotFound
		}
		return models.Yap{}, models.User{}, false, fmt.Errorf("find partner: %w", err)
	}

	yap, err := s.yaps.FindActiveByPair(ctx, user.ID, partner.ID)
	if err == nil {
		return yap, partner, false, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.Yap{}, models.User{}, false, fmt.Errorf("find active yap: %w", err)
	}

	yap = models.Yap{
		ID:           uuid.NewString(),
		ParticipantA: user.ID,
		ParticipantB: partner.ID,
		StartedAt:    s.now(),
		IsActive:     true,
	}

	if err := s.yaps.Create(ctx, yap); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			// A concurrent start for the same pair won the race; return the
			// winner's yap instead of creating a second active session.
			existing, findErr := s.yaps.FindActiveByPair(ctx, user.ID, partner.ID)
			if findErr != nil {
				return models.Yap{}, models.User{}, false, fmt.Errorf("find winning yap: %w", findErr)
			}
			return existing, partner, false, nil
		}
		return models.Yap{}, models.User{}, false, fmt.Errorf("create yap: %w", err)
	}

	if err := s.quota.Record(ctx, user.ID); err != nil {
		return models.Yap{}, models.User{}, false, fmt.Errorf("record quota usage: %w", err)
	}

	return yap, partner, true, nil
}

// AssertParticipant resolves the yap and verifies the user belongs to it.
// Every downstream chat operation calls this guard first.
func (s *Service) AssertParticipant(ctx context.Context, userID, yapID string) (models.Yap, error) {
	yap, err := s.yaps.FindByID(ctx, yapID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return models.Yap{}, ErrYapNotFound
		}
		return models.Yap{}, fmt.Errorf("find yap: %w", err)
	}
	if !yap.HasParticipant(userID) {
		return models.Yap{}, ErrNotParticipant
	}
	return yap, nil
}

// AppendMessage validates and stores a message in the yap. The sender must
// already have been verified as a participant via AssertParticipant.
func (s *Service) AppendMessage(ctx context.Context, yapID, senderID, kind, text, mediaURL string) (models.Message, error) {
	if err := validatePayload(kind, text, mediaURL); err != nil {
		return models.Message{}, err
	}

	message := models.Message{
		ID:        uuid.NewString(),
		YapID:     yapID,
		SenderID:  senderID,
		Kind:      kind,
		Text:      text,
		MediaURL:  mediaURL,
		CreatedAt: s.now(),
	}

	if err := s.messages.Create(ctx, message); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return message, nil
}

// ListMessages returns the yap's transcript in creation order.
func (s *Service) ListMessages(ctx context.Context, yapID string) ([]models.Message, error) {
	messages, err := s.messages.ListByYap(ctx, yapID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// WithNowFunc allows tests to override the time source.
func (s *Service) WithNowFunc(now func() time.Time) *Service {
	s.nowFunc = now
	return s
}

func (s *Service) now() time.Time {
	if s.nowFunc != nil {
		return s.nowFunc().UTC()
	}
	return time.Now().UTC()
}

func validatePayload(kind, text, mediaURL string) error {
	switch kind {
	case models.MessageKindText:
		if strings.TrimSpace(text) == "" || mediaURL != "" {
			return ErrInvalidMessage
		}
	case models.MessageKindImage, models.MessageKindAudio:
		if mediaURL == "" || text != "" {
			return ErrInvalidMessage
		}
	default:
		return ErrInvalidMessage
	}
	return nil
}
