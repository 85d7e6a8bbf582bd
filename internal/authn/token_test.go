package authn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens, err := New("s3cret", WithIssuer("test-issuer"), WithClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	token, err := tokens.Issue(" user-42 ", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	subject, err := tokens.Parse(token)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if subject != "user-42" {
		t.Fatalf("unexpected subject: %q", subject)
	}
}

func TestParseRejects(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tokens, err := New("s3cret", WithClock(fixedClock(now)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	valid, err := tokens.Issue("user-1", time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	later, _ := New("s3cret", WithClock(fixedClock(now.Add(2*time.Minute))))
	other, _ := New("other", WithClock(fixedClock(now)))
	foreign, _ := New("s3cret", WithIssuer("someone-else"), WithClock(fixedClock(now)))
	foreignToken, _ := foreign.Issue("user-1", time.Minute)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    DefaultIssuer,
		Subject:   "user-1",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	cases := map[string]struct {
		tokens *Tokens
		token  string
	}{
		"empty":        {tokens, "  "},
		"garbage":      {tokens, "not-a-jwt"},
		"expired":      {later, valid},
		"wrong secret": {other, valid},
		"wrong issuer": {tokens, foreignToken},
		"alg none":     {tokens, unsigned},
	}
	for name, tc := range cases {
		if _, err := tc.tokens.Parse(tc.token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestNewRequiresSecret(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestIssueValidatesInput(t *testing.T) {
	tokens, _ := New("s3cret")
	if _, err := tokens.Issue("", time.Minute); err == nil {
		t.Fatal("expected error for empty user")
	}
	if _, err := tokens.Issue("u", 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}

func TestBearerToken(t *testing.T) {
	good := map[string]string{
		"Bearer abc":     "abc",
		"bearer   abc  ": "abc",
		"BEARER x.y.z":   "x.y.z",
	}
	for header, want := range good {
		got, err := BearerToken(header)
		if err != nil || got != want {
			t.Fatalf("BearerToken(%q) = %q, %v", header, got, err)
		}
	}
	for _, header := range []string{"", "Basic abc", "Bearer ", "Bear"} {
		if _, err := BearerToken(header); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("BearerToken(%q) expected ErrUnauthenticated, got %v", header, err)
		}
	}
}

func TestActorContext(t *testing.T) {
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("expected no actor")
	}
	ctx := ContextWithActor(context.Background(), " alice ")
	actor, ok := ActorFromContext(ctx)
	if !ok || actor != "alice" {
		t.Fatalf("unexpected actor %q %v", actor, ok)
	}
	if _, ok := ActorFromContext(ContextWithActor(context.Background(), "")); ok {
		t.Fatal("blank actor must not count")
	}
}
