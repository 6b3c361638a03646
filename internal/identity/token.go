package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"
)

// SessionCookie is the cookie the provider's frontend SDK stores the session token in.
const SessionCookie = "__session"

// Claim names in the provider's session token.
const (
	claimEmail       = "email"
	claimFirstName   = "first_name"
	claimLastName    = "last_name"
	claimMemberships = "memberships"
)

var ErrInvalidToken = errors.New("invalid session token")

// TokenProvider verifies provider-issued session tokens taken from the Authorization header
// or the session cookie.
type TokenProvider struct {
	keyFunc jwt.Keyfunc
	opts    []jwt.ParserOption
	logger  *zap.Logger
}

// NewHMACTokenProvider verifies HS256 session tokens with a shared secret.
func NewHMACTokenProvider(secret, issuer string, logger *zap.Logger) *TokenProvider {
	key := []byte(secret)
	return newTokenProvider(func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return key, nil
	}, []string{jwt.SigningMethodHS256.Alg()}, issuer, logger)
}

// NewRSATokenProvider verifies RS256 session tokens with a PEM-encoded public key.
func NewRSATokenProvider(publicKeyPEM, issuer string, logger *zap.Logger) (*TokenProvider, error) {
	pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse session public key: %w", err)
	}
	return newTokenProvider(func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		return pub, nil
	}, []string{jwt.SigningMethodRS256.Alg()}, issuer, logger), nil
}

func newTokenProvider(keyFunc jwt.Keyfunc, methods []string, issuer string, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods(methods), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenProvider{keyFunc: keyFunc, opts: opts, logger: logger}
}

// Identify implements Provider.
func (p *TokenProvider) Identify(ctx context.Context, r *http.Request) (*Identity, bool) {
	raw := sessionToken(r)
	if raw == "" {
		return nil, false
	}
	id, err := p.Verify(raw)
	if err != nil {
		p.logger.Debug("session token rejected", zap.Error(err))
		return nil, false
	}
	return id, true
}

// Verify parses and validates a session token into an Identity.
func (p *TokenProvider) Verify(raw string) (*Identity, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, p.keyFunc, p.opts...)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, ErrInvalidToken
	}
	memberships, err := decodeMemberships(claims[claimMemberships])
	if err != nil {
		return nil, err
	}
	return &Identity{
		ExternalID:  sub,
		Email:       stringClaim(claims, claimEmail),
		FirstName:   stringClaim(claims, claimFirstName),
		LastName:    stringClaim(claims, claimLastName),
		Memberships: memberships,
	}, nil
}

type rawMembership struct {
	OrgID string `mapstructure:"org_id"`
	Role  string `mapstructure:"role"`
}

// decodeMemberships turns the untyped memberships claim into validated entries, preserving order.
// Entries without an organization id are dropped.
func decodeMemberships(raw interface{}) ([]MembershipClaim, error) {
	if raw == nil {
		return nil, nil
	}
	var entries []rawMembership
	if err := mapstructure.Decode(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode memberships claim: %w", err)
	}
	out := make([]MembershipClaim, 0, len(entries))
	for _, e := range entries {
		orgID := strings.TrimSpace(e.OrgID)
		if orgID == "" {
			continue
		}
		out = append(out, MembershipClaim{OrgID: orgID, Role: strings.TrimSpace(e.Role)})
	}
	return out, nil
}

func stringClaim(claims jwt.MapClaims, name string) string {
	s, _ := claims[name].(string)
	return s
}

func sessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}
