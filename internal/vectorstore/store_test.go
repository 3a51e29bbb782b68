package vectorstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsDuplicateRelation(t *testing.T) {
	t.Run("duplicate table", func(t *testing.T) {
		assert.True(t, isDuplicateRelation(&pgconn.PgError{Code: "42P07"}))
	})

	t.Run("catalog unique violation", func(t *testing.T) {
		// Racing CREATE TABLE IF NOT EXISTS can lose with a unique
		// violation on the catalog instead of duplicate_table
		assert.True(t, isDuplicateRelation(&pgconn.PgError{Code: "23505"}))
	})

	t.Run("wrapped errors unwrap", func(t *testing.T) {
		err := fmt.Errorf("exec failed: %w", &pgconn.PgError{Code: "42P07"})
		assert.True(t, isDuplicateRelation(err))
	})

	t.Run("other pg errors are real failures", func(t *testing.T) {
		assert.False(t, isDuplicateRelation(&pgconn.PgError{Code: "23503"}))
	})

	t.Run("non-pg errors are real failures", func(t *testing.T) {
		assert.False(t, isDuplicateRelation(errors.New("connection reset")))
		assert.False(t, isDuplicateRelation(nil))
	})
}
