package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setPlantDBEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key+"_DB_HOST", "db."+key)
	t.Setenv(key+"_DB_PORT", "5432")
	t.Setenv(key+"_DB_USER", "plant")
	t.Setenv(key+"_DB_PASSWORD", "secret")
	t.Setenv(key+"_DB_NAME", "plant_"+key)
}

func TestPlantDBResolvesFromEnvironment(t *testing.T) {
	setPlantDBEnv(t, "ACME")

	params, err := PlantDB("ACME")
	require.NoError(t, err)
	assert.Equal(t, "db.ACME", params.Host)
	assert.Equal(t, "plant_ACME", params.DBName)
	assert.Equal(t, "disable", params.SSLMode)
	assert.Contains(t, params.DSN(), "host=db.ACME")
	assert.Contains(t, params.DSN(), "dbname=plant_ACME")
}

func TestPlantDBFailsClosedOnMissingValues(t *testing.T) {
	t.Setenv("PARTIAL_DB_HOST", "db.partial")
	t.Setenv("PARTIAL_DB_PORT", "5432")

	_, err := PlantDB("PARTIAL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PARTIAL_DB_USER")
	assert.Contains(t, err.Error(), "PARTIAL_DB_PASSWORD")
	assert.Contains(t, err.Error(), "PARTIAL_DB_NAME")
}

func TestPlantGraphResolvesFromEnvironment(t *testing.T) {
	t.Setenv("ACME_NEO4J_URI", "neo4j://graph.acme:7687")
	t.Setenv("ACME_NEO4J_USER", "neo4j")
	t.Setenv("ACME_NEO4J_PASSWORD", "secret")

	params, err := PlantGraph("ACME")
	require.NoError(t, err)
	assert.Equal(t, "neo4j://graph.acme:7687", params.URI)
	assert.Equal(t, "neo4j", params.User)
}

func TestPlantGraphFailsClosed(t *testing.T) {
	t.Setenv("BARE_NEO4J_URI", "neo4j://graph.bare:7687")

	_, err := PlantGraph("BARE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BARE_NEO4J_USER")
	assert.Contains(t, err.Error(), "BARE_NEO4J_PASSWORD")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("AI_AGENT_TIMEOUT", "")

	conf, err := Load("plant-agent")
	require.NoError(t, err)
	assert.Equal(t, "plant-agent", conf.ServiceName)
	assert.Equal(t, 120*time.Second, conf.AI.Timeout)
	assert.Equal(t, time.Hour, conf.Registry.ConnMaxLifetime)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("AI_AGENT_URL", "http://ai.internal:8080/agent")
	t.Setenv("AI_AGENT_TIMEOUT", "30s")
	t.Setenv("DB_MAX_OPEN_CONNS", "50")

	conf, err := Load("plant-agent")
	require.NoError(t, err)
	assert.Equal(t, "9000", conf.Server.Port)
	assert.Equal(t, "http://ai.internal:8080/agent", conf.AI.URL)
	assert.Equal(t, 30*time.Second, conf.AI.Timeout)
	assert.Equal(t, 50, conf.Registry.MaxOpenConns)
}
