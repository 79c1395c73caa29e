package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, "3333", cfg.Port)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, AuthFirebase, cfg.AuthProvider)
	assert.Equal(t, 30*time.Second, cfg.WaterSessionWindow)
	assert.Equal(t, time.Minute, cfg.WaterFlushInterval)
	assert.Equal(t, 5.0, cfg.RateLimitRPS)
	assert.Equal(t, 30, cfg.RateLimitBurst)
	assert.Equal(t, "kyool", cfg.NATSSubjectPrefix)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envOf(map[string]string{
		"STORE_BACKEND":        "Postgres",
		"DATABASE_URL":         "postgres://localhost/kyool",
		"AUTH_PROVIDER":        "clerk",
		"CLERK_SECRET_KEY":     "sk_test",
		"WATER_SESSION_WINDOW": "45s",
		"REDIS_DB":             "2",
		"CORS_ALLOWED_ORIGINS": "https://a.example, https://b.example",
	}))
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.StoreBackend)
	assert.Equal(t, AuthClerk, cfg.AuthProvider)
	assert.Equal(t, 45*time.Second, cfg.WaterSessionWindow)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowOrigins)
	assert.False(t, cfg.UsesFirebase())
}

func TestFromEnvRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":   {"STORE_BACKEND": "mongo"},
		"postgres no url":   {"STORE_BACKEND": "postgres"},
		"clerk no key":      {"AUTH_PROVIDER": "clerk"},
		"unknown auth":      {"AUTH_PROVIDER": "basic"},
		"bad window":        {"WATER_SESSION_WINDOW": "soon"},
		"negative window":   {"WATER_SESSION_WINDOW": "-1s"},
		"bad redis db":      {"REDIS_DB": "x"},
		"zero rate":         {"RATE_LIMIT_RPS": "0"},
		"non numeric burst": {"RATE_LIMIT_BURST": "lots"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(envOf(vars))
			assert.Error(t, err)
		})
	}
}
