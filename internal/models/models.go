package models

import "time"

// User represents an account within the Yap platform.
type User struct {
	ID              string
	Email           string
	Password        string
	DisplayName     string
	Interests       []string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Yap is an ephemeral two-party chat session. Participants are stored as an
// ordered pair but the pair itself is unordered: (A,B) and (B,A) describe the
// same conversation.
type Yap struct {
	ID           string
	ParticipantA string
	ParticipantB string
	StartedAt    time.Time
	EndedAt      *time.Time
	IsActive     bool
}

// Participants returns both participant ids.
func (y Yap) Participants() []string {
	return []string{y.ParticipantA, y.ParticipantB}
}

// HasParticipant reports whether the given user belongs to the yap.
func (y Yap) HasParticipant(userID string) bool {
	return userID != "" && (y.ParticipantA == userID || y.ParticipantB == userID)
}

// OtherParticipant returns the partner id for the given user, or empty when
// the user is not a participant.
func (y Yap) OtherParticipant(userID string) string {
	switch userID {
	case y.ParticipantA:
		return y.ParticipantB
	case y.ParticipantB:
		return y.ParticipantA
	default:
		return ""
	}
}

// PairKey normalizes a participant pair into the canonical key used to
// enforce that at most one active yap exists per unordered pair.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// Message kinds supported within a yap.
const (
	MessageKindText  = "text"
	MessageKindImage = "image"
	MessageKindAudio = "audio"
)

// Message is a single entry in a yap's transcript. Text messages carry an
// inline body; image and audio messages carry an external media URL instead.
type Message struct {
	ID        string
	YapID     string
	SenderID  string
	Kind      string
	Text      string
	MediaURL  string
	CreatedAt time.Time
}

// MatchCandidate is the partner-facing projection of a user produced by the
// matchmaker. It is never persisted.
type MatchCandidate struct {
	ID              string
	DisplayName     string
	Interests       []string
	ProfileImageURL string
}

// QuotaWindow tracks how many new yaps a user has started in the current
// rolling day window. A zero ResetAt means no window has been opened yet.
type QuotaWindow struct {
	UserID  string
	Count   int
	ResetAt time.Time
}
