package postgres

import (
	"io"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/require"
)

func TestMigrations_AreEmbeddedInOrder(t *testing.T) {
	t.Parallel()

	source, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	defer source.Close()

	first, err := source.First()
	require.NoError(t, err)
	require.Equal(t, uint(1), first)

	next, err := source.Next(first)
	require.NoError(t, err)
	require.Equal(t, uint(2), next)

	_, err = source.Next(next)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestMigrations_CreateUniquePair(t *testing.T) {
	t.Parallel()

	source, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	defer source.Close()

	r, _, err := source.ReadUp(1)
	require.NoError(t, err)
	defer r.Close()

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Contains(t, string(body), "UNIQUE (source_currency_id, target_currency_id)")

	down, _, err := source.ReadDown(1)
	require.NoError(t, err)
	require.NoError(t, down.Close())
}
