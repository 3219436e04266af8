package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yapchat/backend/internal/auth"
	"github.com/yapchat/backend/internal/chat"
	"github.com/yapchat/backend/internal/config"
	"github.com/yapchat/backend/internal/db"
	"github.com/yapchat/backend/internal/handlers"
	"github.com/yapchat/backend/internal/match"
	"github.com/yapchat/backend/internal/middleware"
	"github.com/yapchat/backend/internal/ratelimit"
	"github.com/yapchat/backend/internal/repositories"
	"github.com/yapchat/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	broker, err := storage.NewBroker(ctx, cfg.ObjectStore, cfg.MaxImageMB, cfg.MaxAudioMB, cfg.UploadTTL)
	if err != nil {
		return handlers.Dependencies{}, fmt.Errorf("configure upload broker: %w", err)
	}

	users := repositories.NewPostgresUserRepository(pool)
	yaps := repositories.NewPostgresYapRepository(pool)
	messages := repositories.NewPostgresMessageRepository(pool)
	quotas := repositories.NewPostgresQuotaRepository(pool)

	limiter := ratelimit.NewDailyLimiter(quotas, cfg.DailyYapLimit)

	return handlers.Dependencies{
		Users:        users,
		Sessions:     auth.NewManager(cfg.SessionSecret, cfg.SessionTTL),
		Matches:      match.NewMatchmaker(users, yaps),
		Chats:        chat.NewService(users, yaps, messages, limiter),
		Uploads:      broker,
		Limiter:      middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
		SessionTTL:   cfg.SessionTTL,
	}, nil
}
