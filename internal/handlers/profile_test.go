package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/yapchat/backend/internal/auth"
	"github.com/yapchat/backend/internal/models"
)

func newProfileHandler(users *inMemoryUserStore) (ProfileHandler, *session) {
	manager := auth.NewManager("test-secret-key", time.Hour)
	handler := ProfileHandler{
		SessionReader: SessionReader{Users: users, Sessions: manager, CookieName: "yap_token"},
		Uploads:       stubBroker{},
	}

	_ = users.Create(context.Background(), models.User{
		ID:          "u1",
		Email:       "a@example.com",
		DisplayName: "Alice",
		Interests:   []string{"chess"},
	})
	token, csrfToken, _ := manager.Issue("u1")

	return handler, &session{
		userID: "u1",
		cookie: &http.Cookie{Name: "yap_token", Value: token},
		csrf:   csrfToken,
	}
}

func profileRequest(method string, sess *session, payload any) *http.Request {
	req := jsonRequest(method, "/api/profile", payload)
	req.AddCookie(sess.cookie)
	req.Header.Set(csrfHeader, sess.csrf)
	return req
}

func TestProfileUpdateNormalizesInterests(t *testing.T) {
	users := newInMemoryUserStore()
	handler, sess := newProfileHandler(users)

	rec := httptest.NewRecorder()
	handler.Update(rec, profileRequest(http.MethodPut, sess, map[string]any{
		"interests": []string{" Hiking ", "hiking", "BAKING", "", "chess"},
	}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d body %s", rec.Code, rec.Body.String())
	}

	stored, _ := users.FindByID(context.Background(), "u1")
	want := []string{"hiking", "baking", "chess"}
	if !reflect.DeepEqual(stored.Interests, want) {
		t.Fatalf("expected interests %v got %v", want, stored.Interests)
	}
}

func TestProfileUpdateRejectsTooManyInterests(t *testing.T) {
	users := newInMemoryUserStore()
	handler, sess := newProfileHandler(users)

	interests := make([]string, maxInterests+1)
	for i := range interests {
		interests[i] = string(rune('a' + i))
	}

	rec := httptest.NewRecorder()
	handler.Update(rec, profileRequest(http.MethodPut, sess, map[string]any{"interests": interests}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
	if code := decodeErrorCode(t, rec); code != codeInvalidInput {
		t.Fatalf("expected INVALID_INPUT got %s", code)
	}

	stored, _ := users.FindByID(context.Background(), "u1")
	if !reflect.DeepEqual(stored.Interests, []string{"chess"}) {
		t.Fatalf("interests must be unchanged, got %v", stored.Interests)
	}
}

func TestProfileUpdatePartialFields(t *testing.T) {
	users := newInMemoryUserStore()
	handler, sess := newProfileHandler(users)

	// Omitting interests keeps them; only the display name changes.
	rec := httptest.NewRecorder()
	handler.Update(rec, profileRequest(http.MethodPut, sess, map[string]any{"displayName": "Alicia"}))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d body %s", rec.Code, rec.Body.String())
	}

	stored, _ := users.FindByID(context.Background(), "u1")
	if stored.DisplayName != "Alicia" {
		t.Fatalf("expected display name Alicia got %q", stored.DisplayName)
	}
	if !reflect.DeepEqual(stored.Interests, []string{"chess"}) {
		t.Fatalf("interests must be unchanged, got %v", stored.Interests)
	}
}

func TestProfileImageConfirmRequiresURL(t *testing.T) {
	users := newInMemoryUserStore()
	handler, sess := newProfileHandler(users)

	req := jsonRequest(http.MethodPost, "/api/profile/image/confirm", map[string]string{"imageUrl": "  "})
	req.AddCookie(sess.cookie)
	req.Header.Set(csrfHeader, sess.csrf)

	rec := httptest.NewRecorder()
	handler.ImageConfirm(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d", rec.Code)
	}
}

func TestProfileGetIncludesEmail(t *testing.T) {
	users := newInMemoryUserStore()
	handler, sess := newProfileHandler(users)

	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.AddCookie(sess.cookie)

	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var resp struct {
		User userPayload `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode profile: %v", err)
	}
	if resp.User.Email != "a@example.com" {
		t.Fatalf("own profile must include email, got %q", resp.User.Email)
	}
}
