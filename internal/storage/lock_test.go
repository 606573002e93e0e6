package storage

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowLock(t *testing.T) {
	tx := &sql.Tx{}

	tests := []struct {
		name  string
		store *SQLStore
		want  string
	}{
		{"postgres in transaction", &SQLStore{tx: tx, dialect: DialectPostgres}, " FOR UPDATE"},
		{"postgres outside transaction", &SQLStore{dialect: DialectPostgres}, ""},
		{"sqlite in transaction", &SQLStore{tx: tx, dialect: DialectSQLite}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.store.rowLock())
		})
	}
}
