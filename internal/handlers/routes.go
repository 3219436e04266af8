package handlers

import (
	"net/http"
	"time"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users    UserStore
	Sessions SessionManager
	Matches  MatchFinder
	Chats    ChatService
	Uploads  UploadBroker
	Limiter  RateLimiter

	CookieName   string
	CookieSecure bool
	SessionTTL   time.Duration
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	sessions := SessionReader{
		Users:      deps.Users,
		Sessions:   deps.Sessions,
		CookieName: deps.CookieName,
	}
	cookie := CookieWriter{
		Name:   deps.CookieName,
		Secure: deps.CookieSecure,
		TTL:    deps.SessionTTL,
	}

	health := HealthHandler{}
	auth := AuthHandler{SessionReader: sessions, Cookie: cookie, Limiter: deps.Limiter}
	profile := ProfileHandler{SessionReader: sessions, Uploads: deps.Uploads}
	match := MatchHandler{SessionReader: sessions, Matches: deps.Matches}
	chat := ChatHandler{SessionReader: sessions, Chats: deps.Chats, Uploads: deps.Uploads}
	media := MediaHandler{SessionReader: sessions, Uploads: deps.Uploads}

	mux.HandleFunc("GET /health", health.Handle)

	mux.HandleFunc("POST /api/auth/register", auth.Register)
	mux.HandleFunc("POST /api/auth/login", auth.Login)
	mux.HandleFunc("POST /api/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/auth/me", auth.Me)
	mux.HandleFunc("GET /api/auth/csrf", auth.CSRF)

	mux.HandleFunc("GET /api/profile", profile.Get)
	mux.HandleFunc("PUT /api/profile", profile.Update)
	mux.HandleFunc("POST /api/profile/image/sas", profile.ImageUpload)
	mux.HandleFunc("POST /api/profile/image/confirm", profile.ImageConfirm)

	mux.HandleFunc("POST /api/match/find", match.Find)

	mux.HandleFunc("POST /api/chat/start", chat.Start)
	mux.HandleFunc("GET /api/chat/{yapId}/messages", chat.Messages)
	mux.HandleFunc("POST /api/chat/{yapId}/messages", chat.Send)
	mux.HandleFunc("POST /api/chat/{yapId}/media/sas", chat.MediaUpload)

	mux.HandleFunc("POST /api/media/sas", media.Upload)

	// Unmatched paths get the standard error envelope instead of the plain
	// text ServeMux default.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, http.StatusNotFound, codeNotFound, "Resource not found")
	})
}
