package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-adp-console/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host: "db", Port: 5433, User: "console", Password: "secret", Name: "audit", SSLMode: "require",
	})
	assert.Equal(t, "host=db port=5433 user=console password=secret dbname=audit sslmode=require", dsn)
}
