package database

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "booktrack",
		Password:        "booktrack_dev_password",
		Database:        "booktrack_dev",
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		Timeout:         10 * time.Second,
	}
}

func TestDSNs(t *testing.T) {
	cfg := Config{Host: "db", Port: 5433, User: "u", Password: "p", Database: "d"}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=d sslmode=disable connect_timeout=5", cfg.KeywordDSN())
	assert.Equal(t, "postgres://u:p@db:5433/d?sslmode=disable&connect_timeout=5", cfg.URL())
}

func TestMigrationsAreOrdered(t *testing.T) {
	migrations, err := Migrations()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 2)

	assert.Equal(t, "0001_init", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "UNIQUE (user_id, badge_id)")
	assert.Contains(t, migrations[0].SQL, "WHERE end_time IS NULL")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
		assert.True(t, strings.TrimSpace(migrations[i].SQL) != "")
	}
}

func TestNewDBAndMigrate(t *testing.T) {
	// Requires a running PostgreSQL instance
	db, err := NewDB(testConfig())
	if err != nil {
		t.Skipf("Skipping test: PostgreSQL not available: %v", err)
		return
	}
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.HealthCheck(ctx))

	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	again, err := db.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, again)

	stats := db.Stats()
	assert.GreaterOrEqual(t, stats.MaxOpenConnections, 5)
}

func TestHealthCheckCancelled(t *testing.T) {
	db, err := NewDB(testConfig())
	if err != nil {
		t.Skipf("Skipping test: PostgreSQL not available: %v", err)
		return
	}
	defer db.Close()

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, db.HealthCheck(cancelCtx))
}
