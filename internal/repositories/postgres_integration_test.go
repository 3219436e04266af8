package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yapchat/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func TestPostgresUserRepository_CreateFindAndUpdateProfile(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	user := models.User{
		ID:          uuid.NewString(),
		Email:       "alice@example.com",
		Password:    "secret-hash",
		DisplayName: "Alice",
		Interests:   []string{"music", "film"},
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		UpdatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	dup := models.User{
		ID:          uuid.NewString(),
		Email:       user.Email,
		Password:    "another-hash",
		DisplayName: "Imposter",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict when creating duplicate email, got %v", err)
	}

	fetched, err := repo.FindByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("find by email: %v", err)
	}

	if fetched.ID != user.ID || fetched.DisplayName != "Alice" || len(fetched.Interests) != 2 {
		t.Fatalf("unexpected user fetched: %+v", fetched)
	}

	if err := repo.UpdateProfile(ctx, user.ID, "Alice B", []string{"music", "chess"}); err != nil {
		t.Fatalf("update profile: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}

	if fetched.DisplayName != "Alice B" || len(fetched.Interests) != 2 || fetched.Interests[1] != "chess" {
		t.Fatalf("expected updated profile to persist, got %+v", fetched)
	}

	if err := repo.SetProfileImage(ctx, user.ID, "https://cdn/profiles/alice.jpg"); err != nil {
		t.Fatalf("set profile image: %v", err)
	}

	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id after image: %v", err)
	}
	if fetched.ProfileImageURL != "https://cdn/profiles/alice.jpg" {
		t.Fatalf("expected profile image to persist, got %q", fetched.ProfileImageURL)
	}

	if err := repo.UpdateProfile(ctx, uuid.NewString(), "Ghost", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestPostgresUserRepository_ListByInterests(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)

	alice := createTestUser(t, repo, "alice@example.com", "music", "film")
	createTestUser(t, repo, "bob@example.com", "music")
	createTestUser(t, repo, "carol@example.com", "chess")

	candidates, err := repo.ListByInterests(ctx, alice.ID, alice.Interests)
	if err != nil {
		t.Fatalf("list by interests: %v", err)
	}

	if len(candidates) != 1 || candidates[0].Email != "bob@example.com" {
		t.Fatalf("expected only bob to overlap, got %+v", candidates)
	}
}

func TestPostgresYapRepository_ActivePairUniqueness(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice@example.com", "music")
	bob := createTestUser(t, userRepo, "bob@example.com", "music")

	repo := NewPostgresYapRepository(testPool)

	yap := models.Yap{
		ID:           uuid.NewString(),
		ParticipantA: alice.ID,
		ParticipantB: bob.ID,
		StartedAt:    time.Now().UTC(),
		IsActive:     true,
	}

	if err := repo.Create(ctx, yap); err != nil {
		t.Fatalf("create yap: %v", err)
	}

	// The mirrored pair normalizes to the same key and must conflict.
	mirrored := models.Yap{
		ID:           uuid.NewString(),
		ParticipantA: bob.ID,
		ParticipantB: alice.ID,
		StartedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	if err := repo.Create(ctx, mirrored); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate active pair, got %v", err)
	}

	found, err := repo.FindActiveByPair(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("find active by pair: %v", err)
	}
	if found.ID != yap.ID {
		t.Fatalf("expected yap %s, got %s", yap.ID, found.ID)
	}

	active, err := repo.ListActiveForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list active for user: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active yap, got %d", len(active))
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown yap, got %v", err)
	}
}

func TestPostgresYapRepository_ConcurrentCreateSamePair(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice@example.com", "music")
	bob := createTestUser(t, userRepo, "bob@example.com", "music")

	repo := NewPostgresYapRepository(testPool)

	const attempts = 8
	errs := make(chan error, attempts)

	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Create(ctx, models.Yap{
				ID:           uuid.NewString(),
				ParticipantA: alice.ID,
				ParticipantB: bob.ID,
				StartedAt:    time.Now().UTC(),
				IsActive:     true,
			})
		}()
	}
	wg.Wait()
	close(errs)

	var created, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if created != 1 || conflicted != attempts-1 {
		t.Fatalf("expected exactly one winner, got created=%d conflicted=%d", created, conflicted)
	}
}

func TestPostgresMessageRepository_AppendAndListInOrder(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, userRepo, "alice@example.com", "music")
	bob := createTestUser(t, userRepo, "bob@example.com", "music")

	yapRepo := NewPostgresYapRepository(testPool)
	yap := models.Yap{
		ID:           uuid.NewString(),
		ParticipantA: alice.ID,
		ParticipantB: bob.ID,
		StartedAt:    time.Now().UTC(),
		IsActive:     true,
	}
	if err := yapRepo.Create(ctx, yap); err != nil {
		t.Fatalf("create yap: %v", err)
	}

	repo := NewPostgresMessageRepository(testPool)

	base := time.Now().UTC().Truncate(time.Millisecond)
	inserts := []models.Message{
		{ID: uuid.NewString(), YapID: yap.ID, SenderID: alice.ID, Kind: models.MessageKindText, Text: "hi", CreatedAt: base.Add(2 * time.Second)},
		{ID: uuid.NewString(), YapID: yap.ID, SenderID: bob.ID, Kind: models.MessageKindImage, MediaURL: "https://cdn/pic.jpg", CreatedAt: base},
		{ID: uuid.NewString(), YapID: yap.ID, SenderID: alice.ID, Kind: models.MessageKindAudio, MediaURL: "https://cdn/clip.webm", CreatedAt: base.Add(time.Second)},
	}

	for _, message := range inserts {
		if err := repo.Create(ctx, message); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}

	messages, err := repo.ListByYap(ctx, yap.ID)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}

	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	if messages[0].Kind != models.MessageKindImage || messages[1].Kind != models.MessageKindAudio || messages[2].Kind != models.MessageKindText {
		t.Fatalf("expected creation-time ascending order, got %+v", messages)
	}
	if messages[2].Text != "hi" || messages[0].MediaURL != "https://cdn/pic.jpg" {
		t.Fatalf("payloads did not round-trip: %+v", messages)
	}

	if err := repo.Create(ctx, models.Message{
		ID:        uuid.NewString(),
		YapID:     uuid.NewString(),
		SenderID:  alice.ID,
		Kind:      models.MessageKindText,
		Text:      "orphan",
		CreatedAt: base,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown yap, got %v", err)
	}
}

func TestPostgresQuotaRepository_WindowLifecycle(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	userRepo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, userRepo, "alice@example.com", "music")

	repo := NewPostgresQuotaRepository(testPool)

	window, err := repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get fresh window: %v", err)
	}
	if window.Count != 0 || !window.ResetAt.IsZero() {
		t.Fatalf("expected zero window for unseen user, got %+v", window)
	}

	resetAt := time.Now().UTC().Add(6 * time.Hour).Truncate(time.Millisecond)
	if err := repo.Reset(ctx, user.ID, resetAt); err != nil {
		t.Fatalf("reset window: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := repo.Increment(ctx, user.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	window, err = repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get window: %v", err)
	}
	if window.Count != 3 {
		t.Fatalf("expected count 3, got %d", window.Count)
	}
	if !timesClose(window.ResetAt, resetAt, time.Millisecond) {
		t.Fatalf("expected reset boundary %v, got %v", resetAt, window.ResetAt)
	}

	if err := repo.Reset(ctx, user.ID, resetAt.Add(24*time.Hour)); err != nil {
		t.Fatalf("re-reset window: %v", err)
	}

	window, err = repo.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("get window after reset: %v", err)
	}
	if window.Count != 0 {
		t.Fatalf("expected count reset to 0, got %d", window.Count)
	}
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".sql" {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		// Apply only the Up section of the goose migration.
		up, _, _ := strings.Cut(string(contents), "-- +goose Down")

		if _, err := pool.Exec(ctx, up); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE messages, yaps, yap_quotas, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, email string, interests ...string) models.User {
	t.Helper()
	user := models.User{
		ID:          uuid.NewString(),
		Email:       email,
		Password:    "password-hash",
		DisplayName: strings.Split(email, "@")[0],
		Interests:   interests,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return user
}

func timesClose(a, b time.Time, delta time.Duration) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= delta
}
