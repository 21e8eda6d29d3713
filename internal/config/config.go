package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Engine        EngineConfig
	Example       ExampleConfig
	ObjectStore   ObjectStoreConfig
	Search        SearchConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type EngineConfig struct {
	WorkDir       string
	MaxImageBytes int64
	LoadTimeout   time.Duration
	QueryTimeout  time.Duration
	PageLimit     int
}

// ExampleConfig locates the bundled example image. The first non-empty of
// ObjectKey, Path and URL wins.
type ExampleConfig struct {
	Name      string
	ObjectKey string
	Path      string
	URL       string
}

type ObjectStoreConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Prefix          string
}

type SearchConfig struct {
	Columns []string
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("LITELENS_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid LITELENS_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	appliers := []func() error{
		func() error { return applyString(lookup, "LITELENS_SERVICE_NAME", &cfg.Service.Name) },
		func() error { return applyString(lookup, "LITELENS_HTTP_ADDR", &cfg.HTTP.Address) },
		func() error { return applyDuration(lookup, "LITELENS_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout) },
		func() error { return applyDuration(lookup, "LITELENS_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout) },
		func() error { return applyDuration(lookup, "LITELENS_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout) },
		func() error { return applyString(lookup, "LITELENS_ENGINE_WORK_DIR", &cfg.Engine.WorkDir) },
		func() error { return applyInt64(lookup, "LITELENS_ENGINE_MAX_IMAGE_BYTES", &cfg.Engine.MaxImageBytes) },
		func() error { return applyDuration(lookup, "LITELENS_ENGINE_LOAD_TIMEOUT", &cfg.Engine.LoadTimeout) },
		func() error { return applyDuration(lookup, "LITELENS_ENGINE_QUERY_TIMEOUT", &cfg.Engine.QueryTimeout) },
		func() error { return applyInt(lookup, "LITELENS_ENGINE_PAGE_LIMIT", &cfg.Engine.PageLimit) },
		func() error { return applyString(lookup, "LITELENS_EXAMPLE_NAME", &cfg.Example.Name) },
		func() error { return applyString(lookup, "LITELENS_EXAMPLE_OBJECT_KEY", &cfg.Example.ObjectKey) },
		func() error { return applyString(lookup, "LITELENS_EXAMPLE_PATH", &cfg.Example.Path) },
		func() error { return applyString(lookup, "LITELENS_EXAMPLE_URL", &cfg.Example.URL) },
		func() error { return applyString(lookup, "LITELENS_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint) },
		func() error { return applyString(lookup, "LITELENS_OBJECTSTORE_REGION", &cfg.ObjectStore.Region) },
		func() error { return applyString(lookup, "LITELENS_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket) },
		func() error {
			return applyString(lookup, "LITELENS_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID)
		},
		func() error {
			return applyString(lookup, "LITELENS_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey)
		},
		func() error { return applyBool(lookup, "LITELENS_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL) },
		func() error { return applyString(lookup, "LITELENS_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix) },
		func() error { return applyList(lookup, "LITELENS_SEARCH_COLUMNS", &cfg.Search.Columns) },
		func() error { return applyBool(lookup, "LITELENS_LOG_JSON", &cfg.Observability.LogJSON) },
		func() error { return applyLogLevel(lookup, "LITELENS_LOG_LEVEL", &cfg.Observability.LogLevel) },
		func() error { return applyBool(lookup, "LITELENS_AUTH_REQUIRED", &cfg.Auth.Required) },
		func() error { return applyString(lookup, "LITELENS_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys) },
	}
	for _, apply := range appliers {
		if err := apply(); err != nil {
			return Config{}, err
		}
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if cfg.Engine.PageLimit <= 0 {
		return Config{}, fmt.Errorf("invalid LITELENS_ENGINE_PAGE_LIMIT: must be > 0")
	}
	if cfg.Engine.MaxImageBytes <= 0 {
		return Config{}, fmt.Errorf("invalid LITELENS_ENGINE_MAX_IMAGE_BYTES: must be > 0")
	}
	return cfg, nil
}

// ObjectStoreConfigured reports whether an object store endpoint and bucket
// are both set.
func (c Config) ObjectStoreConfigured() bool {
	return c.ObjectStore.Endpoint != "" && c.ObjectStore.Bucket != ""
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "litelens"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Engine: EngineConfig{
			WorkDir:       "",
			MaxImageBytes: 512 << 20,
			LoadTimeout:   2 * time.Minute,
			QueryTimeout:  30 * time.Second,
			PageLimit:     10,
		},
		Example: ExampleConfig{
			Name: "example",
			Path: "PS_LibreAcces.sqlite",
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
		Search: SearchConfig{
			Columns: []string{"Nom d'exercice", "Prénom d'exercice"},
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Engine.LoadTimeout = 10 * time.Second
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyList(lookup LookupFunc, key string, dst *[]string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	values := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, part)
	}
	*dst = values
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
