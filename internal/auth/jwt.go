package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"landscape-job-service/internal/entity"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates HS256 access tokens issued by the auth service and
// returns the caller named by the subject claim.
type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

type VerifierConfig struct {
	Secret   string
	Issuer   string // optional
	Audience string // optional
	Leeway   time.Duration
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT secret not provided")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &Verifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}, nil
}

// Verify parses tokenString and returns the caller. All failures wrap ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (entity.Caller, error) {
	if tokenString == "" {
		return entity.Caller{}, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return entity.Caller{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return entity.Caller{}, ErrInvalidToken
	}

	if claims.Subject == "" {
		return entity.Caller{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return entity.Caller{}, fmt.Errorf("%w: subject is not a uuid", ErrInvalidToken)
	}

	return entity.Caller{UserID: userID}, nil
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

type contextKey int

const callerContextKey contextKey = iota

func WithCaller(ctx context.Context, c entity.Caller) context.Context {
	return context.WithValue(ctx, callerContextKey, c)
}

// CallerFromContext returns false for unauthenticated requests.
func CallerFromContext(ctx context.Context) (entity.Caller, bool) {
	c, ok := ctx.Value(callerContextKey).(entity.Caller)
	return c, ok
}

// IssueToken signs an HS256 access token for subject. Used by jobctl for
// local development; production tokens come from the auth service.
func IssueToken(secret, subject string, ttl time.Duration, issuer, audience string) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret not provided")
	}
	now := time.Now()
	claims := &jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		Issuer:    issuer,
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
