package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestJWTSessionRoundTrip(t *testing.T) {
	s := NewJWTSessionStore("test-secret", time.Hour)
	token, err := s.NewSession("user-42")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok {
		t.Fatalf("validate: ok=%v err=%v", ok, err)
	}
	if uid != "user-42" {
		t.Fatalf("unexpected subject %q", uid)
	}
}

func TestJWTSessionRejectsWrongSecret(t *testing.T) {
	issuer := NewJWTSessionStore("secret-a", time.Hour)
	token, err := issuer.NewSession("user-42")
	if err != nil {
		t.Fatal(err)
	}
	verifier := NewJWTSessionStore("secret-b", time.Hour)
	if _, ok, err := verifier.GetUserIDByToken(token); ok || err == nil {
		t.Fatal("token signed with another secret must not validate")
	}
}

func TestJWTSessionRejectsGarbage(t *testing.T) {
	s := NewJWTSessionStore("test-secret", time.Hour)
	for _, token := range []string{"", "  ", "not.a.jwt"} {
		if _, ok, err := s.GetUserIDByToken(token); ok || err == nil {
			t.Errorf("token %q must not validate", token)
		}
	}
}

func TestRedisSessionRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	s := NewRedisSessionStore(srv.Addr(), "", time.Hour)

	token, err := s.NewSession("user-42")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || uid != "user-42" {
		t.Fatalf("validate: uid=%q ok=%v err=%v", uid, ok, err)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, err := s.GetUserIDByToken(token); ok || err != nil {
		t.Fatalf("deleted token resolved: ok=%v err=%v", ok, err)
	}
}

func TestRedisSessionExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	s := NewRedisSessionStore(srv.Addr(), "", time.Minute)
	token, err := s.NewSession("user-42")
	if err != nil {
		t.Fatal(err)
	}
	srv.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("expired token must not resolve")
	}
}
