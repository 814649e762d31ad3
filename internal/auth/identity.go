package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is what an identity provider asserts about a user.
type Identity struct {
	Subject string
	Email   string
	Name    string
}

// IdentityVerifier turns a provider identity token into an Identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// ErrInvalidIdentity is returned for identity tokens that cannot be used.
var ErrInvalidIdentity = errors.New("invalid identity token")

// GoogleCertsURL serves Google's current token signing keys.
const GoogleCertsURL = "https://www.googleapis.com/oauth2/v3/certs"

const (
	defaultKeysTTL = time.Hour
	// Unknown key ids trigger a refetch at most this often.
	minKeysRefresh = time.Minute
)

var googleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

// GoogleVerifier verifies Google identity tokens: the RS256 signature against
// Google's published keys, then expiry, issuer, audience and a verified email.
type GoogleVerifier struct {
	ClientID string
	CertsURL string
	Client   *http.Client

	mu      sync.Mutex
	keys    map[string]*rsa.PublicKey
	fetched time.Time
	expires time.Time
}

// NewGoogleVerifier returns a verifier accepting tokens issued to clientID.
func NewGoogleVerifier(clientID string) *GoogleVerifier {
	return &GoogleVerifier{
		ClientID: clientID,
		CertsURL: GoogleCertsURL,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Verify checks idToken and extracts the identity it asserts. Failures to
// fetch signing keys are returned as plain errors, everything else wraps
// ErrInvalidIdentity.
func (v *GoogleVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	if v.ClientID == "" {
		return nil, errors.New("google verifier has no client id")
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(v.ClientID),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	var fetchErr error
	var claims googleClaims
	_, err := parser.ParseWithClaims(idToken, &claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		key, err := v.key(ctx, kid)
		if err != nil && !errors.Is(err, ErrInvalidIdentity) {
			fetchErr = err
		}
		return key, err
	})
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentity, err)
	}

	if !slices.Contains(googleIssuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidIdentity, claims.Issuer)
	}
	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrInvalidIdentity)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidIdentity)
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   strings.ToLower(claims.Email),
		Name:    claims.Name,
	}, nil
}

// key returns the signing key for kid, refetching the key set when it has
// expired or does not know kid.
func (v *GoogleVerifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	if key, ok := v.keys[kid]; ok && now.Before(v.expires) {
		return key, nil
	}
	if now.Before(v.expires) && now.Sub(v.fetched) < minKeysRefresh {
		return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidIdentity, kid)
	}

	if err := v.refresh(ctx, now); err != nil {
		return nil, err
	}
	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: unknown signing key %q", ErrInvalidIdentity, kid)
}

type jwkSet struct {
	Keys []struct {
		Kty string `json:"kty"`
		Kid string `json:"kid"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *GoogleVerifier) refresh(ctx context.Context, now time.Time) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.CertsURL, nil)
	if err != nil {
		return fmt.Errorf("fetching signing keys: %w", err)
	}
	client := v.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching signing keys: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching signing keys: status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decoding signing keys: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if k.Kty != "RSA" || k.Kid == "" {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			return fmt.Errorf("decoding key %s: %w", k.Kid, err)
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			return fmt.Errorf("decoding key %s: %w", k.Kid, err)
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
	}

	v.keys = keys
	v.fetched = now
	v.expires = now.Add(maxAge(resp.Header.Get("Cache-Control")))
	return nil
}

// maxAge reads the max-age directive of a Cache-Control header.
func maxAge(header string) time.Duration {
	for _, directive := range strings.Split(header, ",") {
		value, ok := strings.CutPrefix(strings.TrimSpace(directive), "max-age=")
		if !ok {
			continue
		}
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultKeysTTL
}
