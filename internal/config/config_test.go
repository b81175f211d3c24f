package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, "ledger", cfg.Settlement.RefundPolicy)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "scan.jobs", cfg.RabbitMQ.JobsQueue)
	assert.Empty(t, cfg.RabbitMQ.URL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "Unknown driver", env: map[string]string{"JWT_SECRET": "x", "DB_DRIVER": "sqlite"}},
		{name: "No workers", env: map[string]string{"JWT_SECRET": "x", "RABBITMQ_WORKERS": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConnectionString(t *testing.T) {
	var cfg Config
	cfg.DB.User = "app"
	cfg.DB.Password = "p@ss"
	cfg.DB.Host = "db"
	cfg.DB.Port = 5433
	cfg.DB.Name = "labelhub"
	cfg.DB.SSLMode = "require"

	assert.Equal(t, "postgres://app:p%40ss@db:5433/labelhub?sslmode=require", cfg.ConnectionString())
}
