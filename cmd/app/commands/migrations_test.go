package commands

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationsSource(t *testing.T) {
	source, err := migrationsSource("postgres")
	require.NoError(t, err)
	require.Equal(t, "file://migrations/postgresql", source)

	source, err = migrationsSource("mysql")
	require.NoError(t, err)
	require.Equal(t, "file://migrations/mysql", source)

	_, err = migrationsSource("sqlite")
	require.EqualError(t, err, "unsupported database driver: sqlite")
}

func TestRunMigrations(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("unsupported-driver", func(t *testing.T) {
		err := RunMigrations(logger, "invalid", "postgres://localhost")
		require.Error(t, err)
		require.Contains(t, err.Error(), "unsupported database driver")
	})

	t.Run("invalid-connection-string", func(t *testing.T) {
		err := RunMigrations(logger, "postgres", "invalid-connection-string")
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to create migrate instance")
	})
}
