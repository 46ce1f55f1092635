package auth

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const agentQuery = "SELECT id, org_id, api_key_hash FROM agents WHERE api_key_prefix ="

func newTestStore(t *testing.T) (*APIKeyStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAPIKeyStore(db, zap.NewNop()), mock
}

func hashKey(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAPIKeyStoreValidateHit(t *testing.T) {
	store, mock := newTestStore(t)
	key := "ahq_live_0123456789abcdef"

	mock.ExpectQuery(agentQuery).
		WithArgs(key[:12]).
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "api_key_hash"}).
			AddRow("agent_1", "org_1", hashKey(t, key)))

	identity, err := store.Validate(context.Background(), key)

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "agent_1", identity.AgentID)
	assert.Equal(t, "org_1", identity.OrgID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyStoreValidateChecksAllCandidateRows(t *testing.T) {
	store, mock := newTestStore(t)
	key := "ahq_live_0123456789abcdef"
	other := "ahq_live_0123zzzzzzzzzzzz"

	// Two agents share the 12-char prefix index; only the bcrypt comparison
	// picks the owner.
	mock.ExpectQuery(agentQuery).
		WithArgs(key[:12]).
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "api_key_hash"}).
			AddRow("agent_other", "org_2", hashKey(t, other)).
			AddRow("agent_1", "org_1", hashKey(t, key)))

	identity, err := store.Validate(context.Background(), key)

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "agent_1", identity.AgentID)
}

func TestAPIKeyStoreValidateHashMismatchIsMiss(t *testing.T) {
	store, mock := newTestStore(t)
	key := "ahq_live_0123456789abcdef"

	mock.ExpectQuery(agentQuery).
		WithArgs(key[:12]).
		WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "api_key_hash"}).
			AddRow("agent_1", "org_1", hashKey(t, "ahq_live_differentkey000")))

	identity, err := store.Validate(context.Background(), key)

	require.NoError(t, err)
	assert.Nil(t, identity)
}

func TestAPIKeyStoreValidateShortKeyIsMiss(t *testing.T) {
	store, mock := newTestStore(t)

	// Shorter than the prefix index: a miss without ever touching the DB.
	identity, err := store.Validate(context.Background(), "ahq_x")

	require.NoError(t, err)
	assert.Nil(t, identity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAPIKeyStoreValidateQueryError(t *testing.T) {
	store, mock := newTestStore(t)
	key := "ahq_live_0123456789abcdef"

	mock.ExpectQuery(agentQuery).
		WithArgs(key[:12]).
		WillReturnError(errors.New("connection refused"))

	_, err := store.Validate(context.Background(), key)

	assert.Error(t, err)
}
