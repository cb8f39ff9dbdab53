package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type sample struct {
	DonorID  int64  `json:"donor_id"`
	Step     string `json:"step"`
	Referrer string `json:"referrer"`
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	id := uuid.NewString()

	var got sample
	if err := s.Get(ctx, id, &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for new id, got %v", err)
	}

	want := sample{DonorID: 123, Step: "screening", Referrer: "/dashboard/staff"}
	if err := s.Set(ctx, id, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Get(ctx, id, &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	want.Step = "medical_history"
	if err := s.Set(ctx, id, want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Get(ctx, id, &got); err != nil || got.Step != "medical_history" {
		t.Errorf("expected overwritten step, got %+v (%v)", got, err)
	}

	if err := s.Clear(ctx, id); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := s.Get(ctx, id, &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after Clear, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(time.Hour))
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	ctx := context.Background()
	if err := s.Set(ctx, "a", sample{Step: "screening"}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	now = now.Add(30 * time.Second)
	var got sample
	if err := s.Get(ctx, "a", &got); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}

	// The read above slid the expiry forward.
	now = now.Add(45 * time.Second)
	if err := s.Get(ctx, "a", &got); err != nil {
		t.Fatalf("expected refreshed session, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	if err := s.Get(ctx, "a", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}
}

func newTestRedis(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisStore(client, ttl)
}

func TestRedisStore(t *testing.T) {
	_, s := newTestRedis(t, time.Minute)
	exerciseStore(t, s)
}

func TestRedisStore_TTL(t *testing.T) {
	mr, s := newTestRedis(t, time.Minute)
	ctx := context.Background()

	if err := s.Set(ctx, "a", sample{Step: "screening"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "a"); ttl != time.Minute {
		t.Fatalf("ttl = %v, want 1m", ttl)
	}

	mr.FastForward(40 * time.Second)
	var got sample
	if err := s.Get(ctx, "a", &got); err != nil {
		t.Fatalf("expected live session, got %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "a"); ttl != time.Minute {
		t.Errorf("read should refresh the ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if err := s.Get(ctx, "a", &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired session, got %v", err)
	}
}

func TestRedisStore_Errors(t *testing.T) {
	mr, s := newTestRedis(t, time.Minute)
	ctx := context.Background()

	if err := mr.Set(keyPrefix+"garbled", "{not json"); err != nil {
		t.Fatal(err)
	}
	var got sample
	err := s.Get(ctx, "garbled", &got)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}

	mr.Close()
	err = s.Get(ctx, "a", &got)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected connection error, got %v", err)
	}
	if err := s.Set(ctx, "a", sample{}); err == nil {
		t.Error("expected Set to fail with the server gone")
	}
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()
	client, err := NewRedisClient(context.Background(), url)
	if err != nil {
		t.Fatalf("NewRedisClient: %v", err)
	}
	defer client.Close()

	mr.Close()
	if _, err := NewRedisClient(context.Background(), url); err == nil {
		t.Error("expected ping failure with the server gone")
	}
}

func TestNewRedisClient_BadURL(t *testing.T) {
	if _, err := NewRedisClient(context.Background(), "not-a-url://"); err == nil {
		t.Fatal("expected error for invalid redis url")
	}
}

func TestMiddleware_IssuesCookie(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	var id string
	handler := func(c echo.Context) error {
		id = IDFromContext(c)
		return nil
	}
	cfg := CookieConfig{Name: "donorflow_session", TTL: time.Hour}
	if err := Middleware(cfg)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected uuid session id, got %q", id)
	}

	resp := http.Response{Header: rec.Header()}
	cookies := resp.Cookies()
	if len(cookies) != 1 || cookies[0].Value != id || !cookies[0].HttpOnly {
		t.Errorf("expected HttpOnly cookie carrying %s, got %+v", id, cookies)
	}
}

func TestMiddleware_ReusesValidCookie(t *testing.T) {
	existing := uuid.NewString()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: existing})
	c := e.NewContext(req, httptest.NewRecorder())

	var id string
	handler := func(c echo.Context) error {
		id = IDFromContext(c)
		return nil
	}
	if err := Middleware(CookieConfig{Name: "sid", TTL: time.Hour})(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != existing {
		t.Errorf("expected existing id %s, got %s", existing, id)
	}
}

func TestMiddleware_ReplacesMalformedCookie(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "../../etc"})
	c := e.NewContext(req, httptest.NewRecorder())

	var id string
	handler := func(c echo.Context) error {
		id = IDFromContext(c)
		return nil
	}
	if err := Middleware(CookieConfig{Name: "sid", TTL: time.Hour})(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "../../etc" {
		t.Error("expected malformed cookie to be replaced")
	}
}
