package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

// seedSession writes a session the way the external auth service does:
// JSON payload keyed by token hash, expiry handled by Redis TTL.
func seedSession(t *testing.T, s *miniredis.Miniredis, token string, session Session, ttl time.Duration) {
	t.Helper()
	payload, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	key := "session:" + HashToken(token)
	if err := s.Set(key, string(payload)); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if ttl > 0 {
		s.SetTTL(key, ttl)
	}
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestLookupSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	seedSession(t, s, "tok-abc", Session{VoterID: "voter-123", DisplayName: "Mar", Role: "member"}, time.Hour)

	session, err := store.Lookup(context.Background(), "tok-abc")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if session.VoterID != "voter-123" {
		t.Errorf("expected voter-123, got %s", session.VoterID)
	}
	if session.Role != "member" {
		t.Errorf("expected role member, got %s", session.Role)
	}
}

func TestLookupDefaultsEmptyRole(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	seedSession(t, s, "tok-norole", Session{VoterID: "voter-456"}, time.Hour)

	session, err := store.Lookup(context.Background(), "tok-norole")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if session.Role != "member" {
		t.Errorf("expected default role member, got %s", session.Role)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	seedSession(t, s, "tok-expired", Session{VoterID: "voter-789"}, time.Millisecond)

	// Fast-forward time in miniredis
	s.FastForward(2 * time.Millisecond)

	_, err := store.Lookup(context.Background(), "tok-expired")
	if err != ErrNoSession {
		t.Errorf("expected ErrNoSession for expired token, got %v", err)
	}
}

func TestLookupUnknownToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	_, err := store.Lookup(context.Background(), "never-issued")
	if err != ErrNoSession {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestLookupRejectsEmptyVoterID(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	seedSession(t, s, "tok-broken", Session{DisplayName: "nobody"}, time.Hour)

	_, err := store.Lookup(context.Background(), "tok-broken")
	if err != ErrNoSession {
		t.Errorf("expected ErrNoSession for payload without voter id, got %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Error("expected identical hashes for identical tokens")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Error("expected different hashes for different tokens")
	}
}
