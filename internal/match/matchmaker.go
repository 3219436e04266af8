// Package match selects random interest-matched partners for users.
package match

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/yapchat/backend/internal/logging"
	"github.com/yapchat/backend/internal/models"
)

var (
	// ErrProfileIncomplete indicates the requesting user has no interests
	// recorded and cannot be matched.
	ErrProfileIncomplete = errors.New("profile incomplete")
	// ErrNoMatch indicates the eligible candidate pool is empty.
	ErrNoMatch = errors.New("no match available")
)

// CandidateSource lists users whose interest set overlaps the given one,
// excluding the requesting user.
type CandidateSource interface {
	ListByInterests(ctx context.Context, excludeUserID string, interests []string) ([]models.User, error)
}

// ActiveYapSource lists the active yaps a user participates in.
type ActiveYapSource interface {
	ListActiveForUser(ctx context.Context, userID string) ([]models.Yap, error)
}

// Matchmaker produces a random candidate from the pool of users who share at
// least one interest with the requester and are not already mid-conversation
// with them. Selection is stateless: repeated calls may return different
// candidates even with an unchanged pool, and past (inactive) partners are
// eligible again.
type Matchmaker struct {
	users CandidateSource
	yaps  ActiveYapSource

	// pick selects an index in [0, n). Tests inject a deterministic one.
	pick func(n int) int
}

// NewMatchmaker constructs a Matchmaker over the provided sources.
func NewMatchmaker(users CandidateSource, yaps ActiveYapSource) *Matchmaker {
	return &Matchmaker{
		users: users,
		yaps:  yaps,
		pick:  rand.Intn,
	}
}

// FindMatch returns a candidate partner for the user, or ErrNoMatch when the
// eligible pool is empty.
func (m *Matchmaker) FindMatch(ctx context.Context, user models.User) (models.MatchCandidate, error) {
	ctx, span := logging.StartSpan(ctx, "match.find")
	defer span.End()

	if len(user.Interests) == 0 {
		return models.MatchCandidate{}, ErrProfileIncomplete
	}

	active, err := m.yaps.ListActiveForUser(ctx, user.ID)
	if err != nil {
		return models.MatchCandidate{}, fmt.Errorf("list active yaps: %w", err)
	}

	activePartners := make(map[string]struct{}, len(active))
	for _, yap := range active {
		if partner := yap.OtherParticipant(user.ID); partner != "" {
			activePartners[partner] = struct{}{}
		}
	}

	candidates, err := m.users.ListByInterests(ctx, user.ID, user.Interests)
	if err != nil {
		return models.MatchCandidate{}, fmt.Errorf("list candidates: %w", err)
	}

	pool := candidates[:0:0]
	for _, candidate := range candidates {
		if candidate.ID == user.ID {
			continue
		}
		if _, taken := activePartners[candidate.ID]; taken {
			continue
		}
		pool = append(pool, candidate)
	}

	if len(pool) == 0 {
		return models.MatchCandidate{}, ErrNoMatch
	}

	chosen := pool[m.pick(len(pool))]
	return models.MatchCandidate{
		ID:              chosen.ID,
		DisplayName:     chosen.DisplayName,
		Interests:       chosen.Interests,
		ProfileImageURL: chosen.ProfileImageURL,
	}, nil
}

// WithPickFunc allows tests to make candidate selection deterministic.
func (m *Matchmaker) WithPickFunc(pick func(n int) int) *Matchmaker {
	m.pick = pick
	return m
}
