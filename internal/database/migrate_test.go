package database_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlehq/huddle/internal/database"
)

func TestMigrations_Ordered(t *testing.T) {
	migrations, err := database.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
	assert.Equal(t, "0001_init", migrations[0].Version)
}

func TestMigrations_InitCreatesTenantTables(t *testing.T) {
	migrations, err := database.Migrations()
	require.NoError(t, err)

	init := migrations[0].SQL
	for _, table := range []string{"teams", "users", "players", "plays", "games", "videos", "play_instances", "subscriptions", "token_balances", "audit_logs"} {
		assert.True(t, strings.Contains(init, "CREATE TABLE "+table+" ("), "missing table %s", table)
	}
}
