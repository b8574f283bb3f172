package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructDatabaseURL(t *testing.T) {
	tests := []struct {
		name     string
		baseURL  string
		dbName   string
		expected string
	}{
		{"no database name", "postgres://u:p@host:5432", "", "postgres://u:p@host:5432"},
		{"appends name and sslmode", "postgres://u:p@host:5432", "spinnergy", "postgres://u:p@host:5432/spinnergy?sslmode=disable"},
		{"trailing slash", "postgres://u:p@host:5432/", "spinnergy", "postgres://u:p@host:5432/spinnergy?sslmode=disable"},
		{"keeps query", "postgres://u:p@host:5432?connect_timeout=5", "spinnergy", "postgres://u:p@host:5432/spinnergy?connect_timeout=5&sslmode=disable"},
		{"keeps sslmode", "postgres://u:p@host:5432?sslmode=require", "spinnergy", "postgres://u:p@host:5432/spinnergy?sslmode=require"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ConstructDatabaseURL(tt.baseURL, tt.dbName))
		})
	}
}
