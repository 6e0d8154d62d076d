package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whyando/spacetraders/internal/domain/fleet"
)

func TestLoadUppercasesCallsign(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "lowercase-agent")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "LOWERCASE-AGENT", cfg.Agent.Callsign)
}

func TestLoadRequiresCallsign(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "AGENT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ".*", cfg.Agent.JobIDFilter)
	assert.True(t, cfg.Agent.JobIDPattern().MatchString("probe-3"))
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, int64(120), cfg.Trading.ImportVolumeCaps["IRON"])
	assert.Nil(t, cfg.Agent.Era())
	assert.False(t, cfg.Kafka.Enabled())
}

func TestBooleansAreLiteralOne(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "AGENT")
	t.Setenv("SCRAP_ALL_SHIPS", "true")
	t.Setenv("NO_GATE_MODE", "1")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.Agent.ScrapAllShips)
	assert.True(t, cfg.Agent.NoGateMode)
}

func TestEraOverride(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "AGENT")
	t.Setenv("ERA_OVERRIDE", "StartingSystem2")

	cfg, err := Load()
	require.NoError(t, err)

	require.NotNil(t, cfg.Agent.Era())
	assert.Equal(t, fleet.EraStartingSystem2, *cfg.Agent.Era())
}

func TestEraOverrideRejectsUnknownEra(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "AGENT")
	t.Setenv("ERA_OVERRIDE", "GalacticEmpire")

	_, err := Load()
	assert.Error(t, err)
}

func TestInvalidJobIDFilter(t *testing.T) {
	t.Setenv("AGENT_CALLSIGN", "AGENT")
	t.Setenv("JOB_ID_FILTER", "(unclosed")

	_, err := Load()
	assert.Error(t, err)
}

func TestResolveSchema(t *testing.T) {
	d := DatabaseConfig{Schema: "st_{RESET_DATE}"}
	assert.Equal(t, "st_20260810", d.ResolveSchema("2026-08-10"))
}
