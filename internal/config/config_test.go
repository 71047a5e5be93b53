package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("STORE_AUTO_MIGRATE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverPostgres, cfg.Store.Driver)
	assert.Equal(t, LLMProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Retrieval.DisplayLimit)
	assert.Equal(t, 10, cfg.Retrieval.FallbackDisplayLimit)
	assert.Equal(t, 5, cfg.Retrieval.Oversample)
	assert.InDelta(t, 0.75, cfg.Retrieval.FuzzyThreshold, 1e-9)
	assert.False(t, cfg.OpenAI.Enabled)
	assert.True(t, cfg.Store.AutoMigrate)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("LLM_PROVIDER", "langchain")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OPENAI_API_BASE", "http://localhost:8000/v1/")
	t.Setenv("RETRIEVAL_OVERSAMPLE", "not-a-number")
	t.Setenv("RETRIEVAL_FUZZY_THRESHOLD", "0.8")
	t.Setenv("STORE_AUTO_MIGRATE", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, LLMProviderLangChain, cfg.LLM.Provider)
	assert.True(t, cfg.OpenAI.Enabled)
	assert.Equal(t, "http://localhost:8000/v1", cfg.OpenAI.APIBase)
	assert.Equal(t, 5, cfg.Retrieval.Oversample, "invalid integers fall back to the default")
	assert.InDelta(t, 0.8, cfg.Retrieval.FuzzyThreshold, 1e-9)
	assert.False(t, cfg.Store.AutoMigrate)
}

func TestGetEnvAsBool(t *testing.T) {
	t.Setenv("MIRA_FLAG", "yes")
	assert.True(t, getEnvAsBool("MIRA_FLAG", true), "unparseable values fall back to the default")
	t.Setenv("MIRA_FLAG", "0")
	assert.False(t, getEnvAsBool("MIRA_FLAG", true))
	t.Setenv("MIRA_FLAG", "")
	assert.False(t, getEnvAsBool("MIRA_FLAG", false))
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"unknown driver", "STORE_DRIVER", "mongo"},
		{"unknown provider", "LLM_PROVIDER", "gemini"},
		{"zero display limit", "RETRIEVAL_DISPLAY_LIMIT", "0"},
		{"threshold above one", "RETRIEVAL_FUZZY_THRESHOLD", "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestGetPostgreSQLDSN(t *testing.T) {
	cfg := &Config{PostgreSQL: PostgreSQLConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "mira", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=mira sslmode=disable", cfg.GetPostgreSQLDSN())

	cfg.PostgreSQL.DSN = "postgres://u:p@db/mira"
	assert.Equal(t, "postgres://u:p@db/mira", cfg.GetPostgreSQLDSN())
}
