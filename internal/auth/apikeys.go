package auth

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// apiKeyIndexLen is how many leading characters of a key are stored in
// plaintext as the database lookup index. The full key is only ever stored
// as a bcrypt hash.
const apiKeyIndexLen = 12

// APIKeyIdentity is the resolved owner of a valid API key.
type APIKeyIdentity struct {
	AgentID string
	OrgID   string
}

// APIKeyStore validates agent API keys against the agents table.
type APIKeyStore struct {
	db  *sql.DB
	log *zap.Logger
}

// NewAPIKeyStore creates an APIKeyStore backed by db.
func NewAPIKeyStore(db *sql.DB, log *zap.Logger) *APIKeyStore {
	return &APIKeyStore{db: db, log: log.With(zap.String("module", "apikeys"))}
}

// Validate resolves apiKey to its owning agent, or returns (nil, nil) when no
// agent matches. Candidate rows are selected by key prefix and confirmed with
// a bcrypt comparison against the stored hash.
func (s *APIKeyStore) Validate(ctx context.Context, apiKey string) (*APIKeyIdentity, error) {
	if len(apiKey) < apiKeyIndexLen {
		return nil, nil
	}
	prefix := apiKey[:apiKeyIndexLen]

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, org_id, api_key_hash FROM agents WHERE api_key_prefix = $1`, prefix)
	if err != nil {
		return nil, fmt.Errorf("query agents by key prefix: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, orgID, hash string
		if err := rows.Scan(&id, &orgID, &hash); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey)) == nil {
			return &APIKeyIdentity{AgentID: id, OrgID: orgID}, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent rows: %w", err)
	}

	s.log.Debug("API key matched no agent", zap.String("prefix", prefix))
	return nil, nil
}
