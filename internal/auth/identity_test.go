package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testClientID = "client-1"

type certServer struct {
	key      *rsa.PrivateKey
	kid      string
	requests atomic.Int32
	url      string
}

// newCertServer publishes one RSA signing key in JWK form.
func newCertServer(t *testing.T) *certServer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	cs := &certServer{key: key, kid: "key-1"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.requests.Add(1)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		json.NewEncoder(w).Encode(map[string]any{
			"keys": []map[string]string{{
				"kty": "RSA",
				"alg": "RS256",
				"use": "sig",
				"kid": cs.kid,
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	t.Cleanup(srv.Close)
	cs.url = srv.URL
	return cs
}

func (cs *certServer) verifier() *GoogleVerifier {
	v := NewGoogleVerifier(testClientID)
	v.CertsURL = cs.url
	return v
}

func signRS256(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "1234",
		"email":          "Asha@Example.com",
		"email_verified": true,
		"name":           "Asha",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
}

func TestGoogleVerifier(t *testing.T) {
	cs := newCertServer(t)
	v := cs.verifier()

	id, err := v.Verify(context.Background(), signRS256(t, cs.key, cs.kid, validClaims()))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if id.Email != "asha@example.com" {
		t.Errorf("expected lower-cased email, got %q", id.Email)
	}
	if id.Name != "Asha" || id.Subject != "1234" {
		t.Errorf("unexpected identity: %+v", id)
	}

	if _, err := v.Verify(context.Background(), signRS256(t, cs.key, cs.kid, validClaims())); err != nil {
		t.Fatalf("second Verify: %v", err)
	}
	if n := cs.requests.Load(); n != 1 {
		t.Errorf("expected signing keys fetched once, got %d", n)
	}
}

func TestGoogleVerifierRejects(t *testing.T) {
	cs := newCertServer(t)
	v := cs.verifier()

	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	with := func(mutate func(jwt.MapClaims)) jwt.MapClaims {
		c := validClaims()
		mutate(c)
		return c
	}
	hmacToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims()).SignedString([]byte("attacker-key"))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"signed by another key", signRS256(t, otherKey, cs.kid, validClaims())},
		{"unknown key id", signRS256(t, otherKey, "key-2", validClaims())},
		{"hmac signed", hmacToken},
		{"unsigned", func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims()).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return s
		}()},
		{"expired", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }))},
		{"no expiry", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { delete(c, "exp") }))},
		{"wrong issuer", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { c["iss"] = "evil.example" }))},
		{"no issuer", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { delete(c, "iss") }))},
		{"wrong audience", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { c["aud"] = "other" }))},
		{"no email", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { delete(c, "email") }))},
		{"unverified email", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { c["email_verified"] = false }))},
		{"email verification missing", signRS256(t, cs.key, cs.kid, with(func(c jwt.MapClaims) { delete(c, "email_verified") }))},
		{"garbage", "garbage"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidIdentity) {
				t.Errorf("expected ErrInvalidIdentity, got %v", err)
			}
		})
	}
}

func TestGoogleVerifierKeysUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	v := NewGoogleVerifier(testClientID)
	v.CertsURL = srv.URL

	_, err = v.Verify(context.Background(), signRS256(t, key, "key-1", validClaims()))
	if err == nil {
		t.Fatal("expected error when signing keys cannot be fetched")
	}
	if errors.Is(err, ErrInvalidIdentity) {
		t.Errorf("expected a fetch error, not ErrInvalidIdentity: %v", err)
	}
}

func TestGoogleVerifierRequiresClientID(t *testing.T) {
	v := NewGoogleVerifier("")
	if _, err := v.Verify(context.Background(), "anything"); err == nil {
		t.Error("expected error without a client id")
	}
}

func TestMaxAge(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"public, max-age=19800, must-revalidate", 19800 * time.Second},
		{"max-age=0", defaultKeysTTL},
		{"no-cache", defaultKeysTTL},
		{"", defaultKeysTTL},
	}
	for _, tt := range tests {
		if got := maxAge(tt.header); got != tt.want {
			t.Errorf("maxAge(%q) = %v, expected %v", tt.header, got, tt.want)
		}
	}
}
