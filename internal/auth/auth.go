package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"
)

var (
	ErrAuthDisabled  = errors.New("auth disabled")
	ErrInvalidToken  = errors.New("invalid token")
	ErrNoCredentials = errors.New("no credentials supplied")
)

// Mode selects how the Authenticator validates inbound requests.
type Mode string

const (
	// ModeNone accepts every request unauthenticated.
	ModeNone Mode = "none"
	// ModeToken requires a static bearer token, compared in constant time.
	ModeToken Mode = "token"
	// ModeGateway requires a signed JWT, as issued to Gateway Transport
	// clients.
	ModeGateway Mode = "gateway"
)

// Config configures an Authenticator.
type Config struct {
	Mode Mode

	// Token is the static bearer value required when Mode == ModeToken.
	Token string

	// JWTSecret and TokenExpiry configure JWT issuance/validation when
	// Mode == ModeGateway.
	JWTSecret   string
	TokenExpiry time.Duration
}

// Authenticator validates the bearer credential on inbound A2A and Gateway
// requests.
type Authenticator struct {
	mode  Mode
	token string
	jwt   *JWTService
}

// NewAuthenticator builds an Authenticator from static configuration.
func NewAuthenticator(cfg Config) *Authenticator {
	a := &Authenticator{mode: cfg.Mode, token: strings.TrimSpace(cfg.Token)}
	if cfg.Mode == ModeGateway && strings.TrimSpace(cfg.JWTSecret) != "" {
		a.jwt = NewJWTService(cfg.JWTSecret, cfg.TokenExpiry)
	}
	return a
}

// Authenticate validates the Authorization header of r against the
// configured mode.
func (a *Authenticator) Authenticate(r *http.Request) error {
	_, err := a.AuthenticateToken(bearerToken(r))
	return err
}

// AuthenticateToken validates a bearer token value directly, for transports
// (like the Gateway websocket handshake) that don't carry an http.Request.
func (a *Authenticator) AuthenticateToken(token string) (Identity, error) {
	if a == nil || a.mode == ModeNone || a.mode == "" {
		return Identity{}, nil
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrNoCredentials
	}

	switch a.mode {
	case ModeToken:
		if a.token == "" {
			return Identity{}, ErrAuthDisabled
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			return Identity{}, ErrInvalidToken
		}
		return Identity{Subject: "token"}, nil
	case ModeGateway:
		if a.jwt == nil {
			return Identity{}, ErrAuthDisabled
		}
		subject, err := a.jwt.Validate(token)
		if err != nil {
			return Identity{}, err
		}
		return Identity{Subject: subject}, nil
	default:
		return Identity{}, ErrAuthDisabled
	}
}

// IssueGatewayToken signs a token for subject under ModeGateway.
func (a *Authenticator) IssueGatewayToken(subject string) (string, error) {
	if a == nil || a.jwt == nil {
		return "", ErrAuthDisabled
	}
	return a.jwt.Generate(subject)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
