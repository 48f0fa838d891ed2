package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/oauth-idm/pkg/database"
	"github.com/tendant/oauth-idm/pkg/database/dbtest"
)

func TestMigrate(t *testing.T) {
	pool := dbtest.StartPostgres(t)
	ctx := context.Background()

	tables := []string{
		"users", "credentials", "clients",
		"client_redirect_uris", "client_grant_types", "client_response_types",
		"client_contacts", "client_jwks", "client_names", "client_uris",
		"client_logo_uris", "client_tos_uris", "client_policy_uris",
		"authorization_codes", "pending_authorizations",
	}
	for _, table := range tables {
		var exists bool
		err := pool.QueryRow(ctx, `SELECT EXISTS (
			SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, table)
	}

	// a second run is a no-op
	require.NoError(t, database.Migrate(ctx, pool))
}
