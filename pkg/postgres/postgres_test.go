package postgres

import (
	"errors"
	"testing"

	"github.com/hedgefund-labs/fund-settler/internal/config"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func Test_getPostgresConnectionString(t *testing.T) {
	t.Run("Should build a minimal connection string", func(t *testing.T) {
		connStr, err := getPostgresConnectionString(&PostgresConfig{
			Host:   "localhost",
			Port:   5432,
			DbName: "settler",
		})
		assert.Nil(t, err)
		assert.Equal(t, "host=localhost  dbname=settler port=5432 sslmode=disable TimeZone=UTC", connStr)
	})
	t.Run("Should include credentials, schema and certificates", func(t *testing.T) {
		connStr, err := getPostgresConnectionString(&PostgresConfig{
			Host:        "db",
			Port:        6543,
			Username:    "settler",
			Password:    "secret",
			DbName:      "settler",
			SchemaName:  "funds",
			SSLMode:     "verify-full",
			SSLRootCert: "/certs/root.pem",
		})
		assert.Nil(t, err)
		assert.Contains(t, connStr, " user=settler password=secret ")
		assert.Contains(t, connStr, "search_path=funds")
		assert.Contains(t, connStr, "sslmode=verify-full")
		assert.Contains(t, connStr, "sslrootcert=/certs/root.pem")
	})
	t.Run("Should reject an unknown ssl mode", func(t *testing.T) {
		_, err := getPostgresConnectionString(&PostgresConfig{SSLMode: "prefer"})
		assert.NotNil(t, err)
	})
	t.Run("Should ignore certificates when ssl is disabled", func(t *testing.T) {
		connStr, err := getPostgresConnectionString(&PostgresConfig{SSLCert: "/certs/client.pem"})
		assert.Nil(t, err)
		assert.NotContains(t, connStr, "sslcert")
	})
}

func Test_PostgresConfigFromDbConfig(t *testing.T) {
	pgCfg := PostgresConfigFromDbConfig(&config.DatabaseConfig{
		Host:   "localhost",
		Port:   5432,
		User:   "settler",
		DbName: "settler",
	})
	assert.Equal(t, "settler", pgCfg.Username)
	assert.False(t, pgCfg.CreateDbIfNotExists)
	assert.Equal(t, 10, pgCfg.MaxOpenConns)
}

func Test_IsDuplicateKeyError(t *testing.T) {
	assert.False(t, IsDuplicateKeyError(nil))
	assert.True(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsDuplicateKeyError(&pgconn.PgError{Code: "23503"}))
	assert.True(t, IsDuplicateKeyError(errors.New("UNIQUE constraint failed: snapshots.date")))
	assert.False(t, IsDuplicateKeyError(errors.New("something else")))
}
