package handlers

import (
	"net/http"

	"github.com/yapchat/backend/internal/models"
)

// MatchHandler serves partner discovery.
type MatchHandler struct {
	SessionReader
	Matches MatchFinder
}

// Find handles POST /api/match/find. It returns a randomly chosen candidate
// who shares at least one interest with the caller; starting the yap is a
// separate, explicit step.
func (h MatchHandler) Find(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, claims, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if !requireCSRF(w, r, claims) {
		return
	}

	candidate, err := h.Matches.FindMatch(ctx, user)
	if err != nil {
		respondDomainError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, matchResponse{
		Match:           candidatePayload(candidate),
		SharedInterests: sharedInterests(user.Interests, candidate.Interests),
	})
}

func candidatePayload(candidate models.MatchCandidate) userPayload {
	return userPayload{
		ID:              candidate.ID,
		DisplayName:     candidate.DisplayName,
		Interests:       candidate.Interests,
		ProfileImageURL: candidate.ProfileImageURL,
	}
}

func sharedInterests(mine, theirs []string) []string {
	set := make(map[string]struct{}, len(mine))
	for _, interest := range mine {
		set[interest] = struct{}{}
	}

	shared := make([]string, 0, len(theirs))
	for _, interest := range theirs {
		if _, ok := set[interest]; ok {
			shared = append(shared, interest)
		}
	}
	return shared
}

type matchResponse struct {
	Match           userPayload `json:"match"`
	SharedInterests []string    `json:"sharedInterests"`
}
