package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAssertionMaxAge = 10 * time.Minute
	assertionClockSkew     = time.Minute
)

// AssertionVerifier checks identity assertions minted by the upstream sign-in
// provider. An assertion is a query string "email=<addr>&ts=<unix>&sig=<hex>"
// where sig is HMAC-SHA256 over "email=<addr>&ts=<unix>" with the shared secret.
type AssertionVerifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewAssertionVerifier(secret string, maxAge time.Duration) *AssertionVerifier {
	if maxAge <= 0 {
		maxAge = defaultAssertionMaxAge
	}
	return &AssertionVerifier{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Verify returns the asserted email, lower-cased.
func (v *AssertionVerifier) Verify(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("assertion is empty: %w", ErrInvalidInput)
	}
	if len(v.secret) == 0 {
		return "", fmt.Errorf("identity secret is not configured: %w", ErrUnauthorized)
	}

	query, err := url.ParseQuery(raw)
	if err != nil {
		return "", fmt.Errorf("parse assertion: %w", ErrInvalidInput)
	}

	email := strings.TrimSpace(query.Get("email"))
	rawTS := strings.TrimSpace(query.Get("ts"))
	sig := strings.TrimSpace(query.Get("sig"))
	if email == "" || rawTS == "" || sig == "" {
		return "", fmt.Errorf("assertion fields missing: %w", ErrInvalidInput)
	}
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("assertion email malformed: %w", ErrInvalidInput)
	}

	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", ErrUnauthorized
	}
	if !hmac.Equal(got, assertionMAC(v.secret, email, rawTS)) {
		return "", ErrUnauthorized
	}

	ts, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return "", ErrUnauthorized
	}
	issuedAt := time.Unix(ts, 0)
	now := v.now()
	if now.Sub(issuedAt) > v.maxAge || issuedAt.Sub(now) > assertionClockSkew {
		return "", ErrUnauthorized
	}

	return strings.ToLower(email), nil
}

// SignAssertion builds an assertion the way the sign-in provider does.
func SignAssertion(secret, email string, issuedAt time.Time) string {
	ts := strconv.FormatInt(issuedAt.Unix(), 10)
	sig := hex.EncodeToString(assertionMAC([]byte(secret), email, ts))

	values := url.Values{}
	values.Set("email", email)
	values.Set("ts", ts)
	values.Set("sig", sig)
	return values.Encode()
}

func assertionMAC(secret []byte, email, ts string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("email=" + email + "&ts=" + ts))
	return mac.Sum(nil)
}
