package database

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectWithoutURL(t *testing.T) {
	db, err := Connect("")
	require.NoError(t, err)
	assert.Nil(t, db)
	assert.NoError(t, Migrate(nil))
}

func TestConnectAndMigrate(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if testing.Short() || url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := Connect(url)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
}
