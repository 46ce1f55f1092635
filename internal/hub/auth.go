package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// APIKeyPrefix marks a credential as an agent API key. Anything else is
// treated as a user session token.
const APIKeyPrefix = "ahq_"

// Close codes used during the handshake. The original single 4001 code for
// both reject reasons was ambiguous; missing and invalid credentials now get
// distinct codes.
const (
	CloseInternalError     = 4000
	CloseMissingCredential = 4001
	CloseInvalidCredential = 4002
	CloseSuperseded        = 4003
)

var (
	// ErrMissingCredential means the connection URL carried no token.
	ErrMissingCredential = errors.New("missing authentication token")
	// ErrInvalidCredential means the token resolved to no identity.
	ErrInvalidCredential = errors.New("invalid authentication")
	// ErrVerifierFailure means credential verification itself failed, e.g.
	// the API-key store was unreachable. Distinct from a plain lookup miss.
	ErrVerifierFailure = errors.New("credential verification failed")
)

// CloseCodeFor maps a handshake error to its websocket close code.
func CloseCodeFor(err error) int {
	switch {
	case errors.Is(err, ErrMissingCredential):
		return CloseMissingCredential
	case errors.Is(err, ErrInvalidCredential):
		return CloseInvalidCredential
	default:
		return CloseInternalError
	}
}

// AgentCredential is the result of a successful API-key verification.
type AgentCredential struct {
	AgentID string
	OrgID   string
}

// SessionCredential is the result of a successful session-token
// verification. TokenClass distinguishes access from refresh tokens; only
// access tokens may open a realtime connection.
type SessionCredential struct {
	SubjectID  string
	OrgID      string
	Role       string
	TokenClass string
}

// BearerVerifier resolves an agent API key. It returns (nil, nil) on a
// lookup miss and an error only when verification itself failed.
type BearerVerifier func(ctx context.Context, token string) (*AgentCredential, error)

// SessionVerifier resolves a user session token, returning an error for any
// token that does not verify.
type SessionVerifier func(token string) (*SessionCredential, error)

// AuthGate resolves the raw credential from the connection URL into an
// Identity before any registration happens. No partial state is visible to
// the rest of the hub while verification is in flight.
type AuthGate struct {
	verifyBearer  BearerVerifier
	verifySession SessionVerifier
	log           *zap.Logger
}

// NewAuthGate wires the gate to its two credential collaborators.
func NewAuthGate(bearer BearerVerifier, session SessionVerifier, log *zap.Logger) *AuthGate {
	return &AuthGate{
		verifyBearer:  bearer,
		verifySession: session,
		log:           log.With(zap.String("module", "authgate")),
	}
}

// Authenticate resolves token to an Identity or rejects the attempt.
func (g *AuthGate) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrMissingCredential
	}

	if strings.HasPrefix(token, APIKeyPrefix) {
		cred, err := g.verifyBearer(ctx, token)
		if err != nil {
			g.log.Error("API key verification failed", zap.Error(err))
			return Identity{}, fmt.Errorf("%w: %v", ErrVerifierFailure, err)
		}
		if cred == nil {
			return Identity{}, ErrInvalidCredential
		}
		return Identity{Kind: IdentityAgent, ID: cred.AgentID, OrgID: cred.OrgID}, nil
	}

	cred, err := g.verifySession(token)
	if err != nil {
		g.log.Debug("session verification failed", zap.Error(err))
		return Identity{}, ErrInvalidCredential
	}
	if cred.TokenClass != "access" {
		return Identity{}, fmt.Errorf("%w: %s token not accepted", ErrInvalidCredential, cred.TokenClass)
	}
	return Identity{Kind: IdentityUser, ID: cred.SubjectID, OrgID: cred.OrgID, Role: cred.Role}, nil
}
