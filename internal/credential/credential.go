// Package credential produces the authorization tokens providers expect.
// Two shapes exist: static secrets passed through verbatim, and self-signed
// time-bounded tokens that must be reissued before they expire.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Token is an authorization value ready to be placed on a request. ExpiresAt
// is zero for static tokens, which never expire.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider yields tokens for one orchestration run.
type Provider interface {
	// Obtain returns a token valid for immediate use.
	Obtain() (Token, error)
	// RefreshIfExpiring returns tok unchanged while its remaining lifetime
	// exceeds margin, and a freshly issued token otherwise. It is called on
	// every poll iteration and must be cheap in the common case.
	RefreshIfExpiring(tok Token, margin time.Duration) (Token, error)
}

// Static wraps a caller-supplied opaque secret.
type Static struct {
	secret string
}

// NewStatic validates and wraps an opaque API secret.
func NewStatic(secret string) (*Static, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("credential: api key is required")
	}
	return &Static{secret: secret}, nil
}

func (s *Static) Obtain() (Token, error) {
	return Token{Value: s.secret}, nil
}

func (s *Static) RefreshIfExpiring(tok Token, _ time.Duration) (Token, error) {
	return tok, nil
}

// Signed issues HS256 tokens bound to a validity window. The payload claims
// the access key as issuer, expires tokenTTL after issuance, and backdates
// not-before by skewGrace to tolerate clock skew against the provider.
type Signed struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

const (
	tokenTTL  = 30 * time.Minute
	skewGrace = 5 * time.Second
)

// NewSigned validates the key pair used to seal tokens.
func NewSigned(accessKey, secretKey string) (*Signed, error) {
	accessKey = strings.TrimSpace(accessKey)
	secretKey = strings.TrimSpace(secretKey)
	if accessKey == "" {
		return nil, errors.New("credential: access key is required")
	}
	if secretKey == "" {
		return nil, errors.New("credential: secret key is required")
	}
	return &Signed{accessKey: accessKey, secretKey: secretKey, now: time.Now}, nil
}

type signedClaims struct {
	Issuer    string `json:"iss"`
	Exp       int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
}

func (s *Signed) Obtain() (Token, error) {
	issued := s.now()
	claims := signedClaims{
		Issuer:    s.accessKey,
		Exp:       issued.Add(tokenTTL).Unix(),
		NotBefore: issued.Add(-skewGrace).Unix(),
	}
	value, err := signHS256(s.secretKey, claims)
	if err != nil {
		return Token{}, err
	}
	return Token{
		Value:     value,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(tokenTTL),
	}, nil
}

func (s *Signed) RefreshIfExpiring(tok Token, margin time.Duration) (Token, error) {
	if tok.ExpiresAt.IsZero() {
		return s.Obtain()
	}
	if s.now().Add(margin).Before(tok.ExpiresAt) {
		return tok, nil
	}
	return s.Obtain()
}

func signHS256(secret string, claims signedClaims) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	data := base64.RawURLEncoding.EncodeToString(headerJSON) + "." + base64.RawURLEncoding.EncodeToString(payloadJSON)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return data + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil)), nil
}
