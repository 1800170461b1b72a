package credentials

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pluginhub/pluginhub/internal/plugins"
)

// TokenClaims is the claim set minted for remote pluginhub servers. It
// matches what the API's JWT middleware accepts.
type TokenClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenProvider mints short-lived HS256 bearer tokens for a set of hosts
// sharing the signing secret.
type TokenProvider struct {
	name    string
	secret  []byte
	subject string
	issuer  string
	ttl     time.Duration
	hosts   []string
	nowFunc func() time.Time
}

// NewTokenProvider creates a provider minting tokens for hosts
func NewTokenProvider(name, secret, subject string, ttl time.Duration, hosts []string) (*TokenProvider, error) {
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	normalized := make([]string, len(hosts))
	for i, h := range hosts {
		normalized[i] = strings.ToLower(h)
	}

	return &TokenProvider{
		name:    name,
		secret:  []byte(secret),
		subject: subject,
		issuer:  "pluginhub",
		ttl:     ttl,
		hosts:   normalized,
		nowFunc: time.Now,
	}, nil
}

func (p *TokenProvider) Name() string { return p.name }

func (p *TokenProvider) Supports(src plugins.Source) bool {
	return slices.Contains(p.hosts, src.Host())
}

func (p *TokenProvider) Credential(_ context.Context, src plugins.Source) (*Credential, error) {
	if !p.Supports(src) {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, src)
	}

	now := p.nowFunc()
	claims := &TokenClaims{
		Username: p.subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.subject,
			Audience:  jwt.ClaimStrings{src.Host()},
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    p.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &Credential{Scheme: SchemeBearer, Token: signed}, nil
}
