package database

import (
	"testing"

	"companion-backend/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNParsesWithReservedCharacters(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "companion",
		Password: "s3cr@t/pa:ss#",
		Name:     "companion",
		SSLMode:  "disable",
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	require.NoError(t, err)
	assert.Equal(t, "db.internal", poolCfg.ConnConfig.Host)
	assert.Equal(t, uint16(5433), poolCfg.ConnConfig.Port)
	assert.Equal(t, "companion", poolCfg.ConnConfig.User)
	assert.Equal(t, "s3cr@t/pa:ss#", poolCfg.ConnConfig.Password)
	assert.Equal(t, "companion", poolCfg.ConnConfig.Database)
}
