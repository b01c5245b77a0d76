package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port       string `mapstructure:"PORT"`
	Env        string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns int32  `mapstructure:"DB_MIN_CONNS"`

	// Warehouse / translation-service settings. Account and user identify the
	// key-pair principal; the private key signs the per-call assertion.
	Account           string `mapstructure:"SNOWFLAKE_ACCOUNT"`
	User              string `mapstructure:"SNOWFLAKE_USER"`
	PrivateKeyPath    string `mapstructure:"SNOWFLAKE_PRIVATE_KEY_PATH"`
	Warehouse         string `mapstructure:"SNOWFLAKE_WAREHOUSE"`
	Database          string `mapstructure:"SNOWFLAKE_DATABASE"`
	Schema            string `mapstructure:"SNOWFLAKE_SCHEMA"`
	Role              string `mapstructure:"SNOWFLAKE_ROLE"`
	SemanticModelFile string `mapstructure:"SNOWFLAKE_SEMANTIC_MODEL_FILE"`
	AnalystTimeoutMS  int    `mapstructure:"ANALYST_TIMEOUT_MS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SNOWFLAKE_WAREHOUSE", "COMPUTE_WH")
	v.SetDefault("SNOWFLAKE_DATABASE", "HEALTH_INTELLIGENCE")
	v.SetDefault("SNOWFLAKE_SCHEMA", "HEALTH_RECORDS")
	v.SetDefault("SNOWFLAKE_ROLE", "ACCOUNTADMIN")
	v.SetDefault("SNOWFLAKE_SEMANTIC_MODEL_FILE", "health_intelligence_semantic_model.yaml")
	v.SetDefault("ANALYST_TIMEOUT_MS", 60000)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SNOWFLAKE_ACCOUNT")
	v.BindEnv("SNOWFLAKE_USER")
	v.BindEnv("SNOWFLAKE_PRIVATE_KEY_PATH")
	v.BindEnv("SNOWFLAKE_WAREHOUSE")
	v.BindEnv("SNOWFLAKE_DATABASE")
	v.BindEnv("SNOWFLAKE_SCHEMA")
	v.BindEnv("SNOWFLAKE_ROLE")
	v.BindEnv("SNOWFLAKE_SEMANTIC_MODEL_FILE")
	v.BindEnv("ANALYST_TIMEOUT_MS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SemanticModelPath returns the fully-qualified stage path of the semantic
// model file sent with every translation request.
func (c *Config) SemanticModelPath() string {
	return fmt.Sprintf("@%s.%s.RAW_DATA/%s", c.Database, c.Schema, c.SemanticModelFile)
}

// AnalystURL returns the translation-service endpoint derived from the
// account identifier.
func (c *Config) AnalystURL() string {
	return fmt.Sprintf("https://%s.snowflakecomputing.com/api/v2/cortex/analyst/message", strings.ToLower(c.Account))
}

// ValidateQuery checks the settings the query bridge cannot run without.
// The import pipeline needs only DATABASE_URL, so this is enforced at the
// query boundary rather than at load time.
func (c *Config) ValidateQuery() error {
	if c.Account == "" {
		return fmt.Errorf("SNOWFLAKE_ACCOUNT is required for natural-language queries")
	}
	if c.User == "" {
		return fmt.Errorf("SNOWFLAKE_USER is required for natural-language queries")
	}
	if c.PrivateKeyPath == "" {
		return fmt.Errorf("SNOWFLAKE_PRIVATE_KEY_PATH is required for natural-language queries")
	}
	return nil
}
