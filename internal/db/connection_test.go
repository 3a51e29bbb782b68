package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidConnectionString(t *testing.T) {
	_, err := New(context.Background(), "://not-a-dsn", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse connection string")
}
