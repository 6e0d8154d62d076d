package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/whyando/spacetraders/internal/domain/fleet"
)

// Config is the orchestrator's full configuration, sourced from environment
// variables (optionally via a .env file).
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Debug    DebugConfig    `mapstructure:"debug"`
	Trading  TradingConfig  `mapstructure:"trading"`
}

// AgentConfig identifies the agent and shapes fleet policy.
type AgentConfig struct {
	Callsign string `mapstructure:"callsign" validate:"required"`
	Faction  string `mapstructure:"faction"`

	// JobIDFilter limits which role ids get a running ship script.
	JobIDFilter string `mapstructure:"job_id_filter"`

	ScrapAllShips   bool `mapstructure:"scrap_all_ships"`
	ScrapUnassigned bool `mapstructure:"scrap_unassigned"`
	NoGateMode      bool `mapstructure:"no_gate_mode"`

	// EraOverride pins the era machine to a fixed era when non-empty.
	EraOverride string `mapstructure:"era_override"`

	jobIDFilter *regexp.Regexp
	eraOverride *fleet.AgentEra
}

// JobIDPattern is the compiled JobIDFilter.
func (a *AgentConfig) JobIDPattern() *regexp.Regexp { return a.jobIDFilter }

// Era returns the pinned era, or nil when the era machine runs normally.
func (a *AgentConfig) Era() *fleet.AgentEra { return a.eraOverride }

// APIConfig points at the game server.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"oneof=postgres sqlite"`
	URL  string `mapstructure:"url"`
	Path string `mapstructure:"path"`

	// Schema may contain a literal {RESET_DATE}, substituted at startup
	// once the server's reset date is known.
	Schema string `mapstructure:"schema"`

	// ScyllaURI points at the event-log read side. Parsed for
	// compatibility; nothing reads it yet.
	ScyllaURI string `mapstructure:"scylla_uri"`
}

// KafkaConfig configures the optional API event stream.
type KafkaConfig struct {
	URL string `mapstructure:"url"`
}

// Enabled reports whether exchanges should be published.
func (k *KafkaConfig) Enabled() bool { return k.URL != "" }

// DebugConfig holds switches that disable task families while debugging.
type DebugConfig struct {
	DisableTradingTasks  bool `mapstructure:"disable_trading_tasks"`
	DisableContractTasks bool `mapstructure:"disable_contract_tasks"`

	// Parsed for compatibility; nothing reads it yet.
	OverrideConstructionSupplyCheck bool `mapstructure:"override_construction_supply_check"`
}

// TradingConfig holds the tuning knobs of the task generator.
type TradingConfig struct {
	// Per-good trade volume caps at import markets, keyed "<good>".
	// A market whose volume reaches the cap only gets sell tasks while
	// its supply is Limited or lower.
	ImportVolumeCaps map[string]int64 `mapstructure:"import_volume_caps"`

	MinProfit int64 `mapstructure:"min_profit"`
}

// boolEnv parses the original convention: booleans are the literal "1".
func boolEnv(name string) bool {
	return os.Getenv(name) == "1"
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored but optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Agent: AgentConfig{
			Callsign:        strings.ToUpper(os.Getenv("AGENT_CALLSIGN")),
			Faction:         os.Getenv("AGENT_FACTION"),
			JobIDFilter:     os.Getenv("JOB_ID_FILTER"),
			ScrapAllShips:   boolEnv("SCRAP_ALL_SHIPS"),
			ScrapUnassigned: boolEnv("SCRAP_UNASSIGNED"),
			NoGateMode:      boolEnv("NO_GATE_MODE"),
			EraOverride:     os.Getenv("ERA_OVERRIDE"),
		},
		API: APIConfig{
			BaseURL: os.Getenv("SPACETRADERS_API_URL"),
		},
		Database: DatabaseConfig{
			Type:      v.GetString("database.type"),
			URL:       os.Getenv("DATABASE_URL"),
			Path:      v.GetString("database.path"),
			Schema:    os.Getenv("POSTGRES_SCHEMA"),
			ScyllaURI: os.Getenv("SCYLLA_URI"),
		},
		Kafka: KafkaConfig{
			URL: os.Getenv("KAFKA_URL"),
		},
		Debug: DebugConfig{
			DisableTradingTasks:             boolEnv("DEBUG_DISABLE_TRADING_TASKS"),
			DisableContractTasks:            boolEnv("DEBUG_DISABLE_CONTRACT_TASKS"),
			OverrideConstructionSupplyCheck: boolEnv("OVERRIDE_CONSTRUCTION_SUPPLY_CHECK"),
		},
		Trading: TradingConfig{},
	}

	SetDefaults(cfg)

	if err := ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	pattern, err := regexp.Compile(cfg.Agent.JobIDFilter)
	if err != nil {
		return nil, fmt.Errorf("invalid JOB_ID_FILTER %q: %w", cfg.Agent.JobIDFilter, err)
	}
	cfg.Agent.jobIDFilter = pattern

	if cfg.Agent.EraOverride != "" {
		era, err := fleet.ParseAgentEra(cfg.Agent.EraOverride)
		if err != nil {
			return nil, fmt.Errorf("invalid ERA_OVERRIDE: %w", err)
		}
		cfg.Agent.eraOverride = &era
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error (for use in main).
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// SetDefaults fills in defaults for any unset values.
func SetDefaults(cfg *Config) {
	if cfg.Agent.JobIDFilter == "" {
		cfg.Agent.JobIDFilter = ".*"
	}
	if cfg.Database.Type == "" {
		if cfg.Database.URL != "" {
			cfg.Database.Type = "postgres"
		} else {
			cfg.Database.Type = "sqlite"
		}
	}
	if cfg.Database.Type == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "spacetraders.db"
	}
	if cfg.Trading.MinProfit == 0 {
		cfg.Trading.MinProfit = 1
	}
	if cfg.Trading.ImportVolumeCaps == nil {
		// FAB_MATS fabricators choke when IRON floods in faster than
		// they consume it.
		cfg.Trading.ImportVolumeCaps = map[string]int64{"IRON": 120}
	}
}

// ResolveSchema substitutes {RESET_DATE} in the configured schema with the
// server's reset date, dashes stripped.
func (d *DatabaseConfig) ResolveSchema(resetDate string) string {
	date := strings.ReplaceAll(resetDate, "-", "")
	return strings.ReplaceAll(d.Schema, "{RESET_DATE}", date)
}
