package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP      HTTPConfig
	Catalogue CatalogueConfig
	Storage   StorageConfig
	Executor  ExecutorConfig
	NATS      NATSConfig
	Airbus    AirbusConfig
	Creds     CredentialsConfig
	Planet    PlanetConfig
	Access    AccessConfig
	Ledger    LedgerConfig
	Temporal  TemporalConfig
}

type HTTPConfig struct {
	Addr       string
	RootPath   string
	StaticPath string
}

type CatalogueConfig struct {
	Domain             string
	SourceBaseURL      string
	OrderRecordBaseURL string
}

type StorageConfig struct {
	Bucket      string
	URLTemplate string
}

type ExecutorConfig struct {
	BaseURL       string
	EventBusURL   string
	ClusterPrefix string
}

type NATSConfig struct {
	URL     string
	Subject string
}

type AirbusConfig struct {
	Env    string
	APIKey string
}

// CredentialsConfig selects how per-workspace provider keys are stored.
type CredentialsConfig struct {
	// OneTimePad means API keys are XOR ciphertexts with a pad alongside.
	OneTimePad bool
}

type PlanetConfig struct {
	Collections []string
}

type AccessConfig struct {
	PolicyCheck     bool
	WorkspacesClaim string
	RateLimit       bool
}

type LedgerConfig struct {
	Driver string
	DSN    string
}

type TemporalConfig struct {
	Address   string
	Namespace string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	domain := getEnv("EODH_DOMAIN", "dev.eodatahub.org.uk")
	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:       getEnv("HTTP_ADDR", ":8080"),
			RootPath:   strings.TrimRight(getEnv("RC_FASTAPI_ROOT_PATH", "/api/catalogue"), "/"),
			StaticPath: getEnv("STATIC_FILE_PATH", "static"),
		},
		Catalogue: CatalogueConfig{
			Domain:             domain,
			SourceBaseURL:      strings.TrimRight(getEnv("SOURCE_BASE_URL", "https://"+domain+"/api/catalogue"), "/"),
			OrderRecordBaseURL: strings.TrimRight(getEnv("ORDER_RECORD_BASE_URL", "https://"+domain+"/api/catalogue/stac/catalogs/user/catalogs"), "/"),
		},
		Storage: StorageConfig{
			Bucket:      getEnv("S3_BUCKET", "test-bucket"),
			URLTemplate: getEnv("BLOB_URL_TEMPLATE", "s3://{bucket}"),
		},
		Executor: ExecutorConfig{
			BaseURL:       strings.TrimRight(getEnv("ADES_URL", ""), "/"),
			EventBusURL:   getEnv("PULSAR_URL", "pulsar://pulsar-broker.pulsar:6650"),
			ClusterPrefix: getEnv("CLUSTER_PREFIX", ""),
		},
		NATS: NATSConfig{
			URL:     getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "transformed"),
		},
		Airbus: AirbusConfig{
			Env:    getEnv("AIRBUS_ENV", "prod"),
			APIKey: getEnv("AIRBUS_API_KEY", ""),
		},
		Creds: CredentialsConfig{
			OneTimePad: getBool("ENABLE_OTP_CREDENTIALS", false),
		},
		Planet: PlanetConfig{
			Collections: splitList(getEnv("PLANET_COLLECTIONS", "PSScene,SkySatCollect,SkySatScene")),
		},
		Access: AccessConfig{
			PolicyCheck:     getBool("ENABLE_OPA_POLICY_CHECK", false),
			WorkspacesClaim: getEnv("WORKSPACES_CLAIM_PATH", "workspaces"),
			RateLimit:       getBool("ENABLE_RATE_LIMIT", false),
		},
		Ledger: LedgerConfig{
			Driver: strings.ToLower(getEnv("LEDGER_DRIVER", "sqlite")),
			DSN:    getEnv("LEDGER_DSN", "orders.db"),
		},
		Temporal: TemporalConfig{
			Address:   getEnv("TEMPORAL_ADDRESS", ""),
			Namespace: getEnv("TEMPORAL_NAMESPACE", "default"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.Executor.BaseURL == "" {
		return fmt.Errorf("ADES_URL is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("S3_BUCKET is required")
	}
	if !strings.Contains(c.Storage.URLTemplate, "{bucket}") {
		return fmt.Errorf("BLOB_URL_TEMPLATE must contain {bucket}")
	}
	switch c.Ledger.Driver {
	case "sqlite", "postgres", "mongo", "none":
	default:
		return fmt.Errorf("LEDGER_DRIVER %q is not supported", c.Ledger.Driver)
	}
	if len(c.Planet.Collections) == 0 {
		return fmt.Errorf("PLANET_COLLECTIONS must list at least one collection")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
