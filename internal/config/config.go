package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Push provider names accepted in push.provider.
const (
	ProviderFCM    = "fcm"
	ProviderBroker = "broker"
	ProviderMemory = "memory"
)

// Config holds the configuration settings for the dispatch service.
type Config struct {
	Env        string           `yaml:"env"`        // Env is the current environment: local, development, production.
	HTTP       HTTPConfig       `yaml:"http"`       // HTTP holds the API server settings
	Monitoring MonitoringConfig `yaml:"monitoring"` // Monitoring holds the health and metrics server settings
	Database   PostgresConfig   `yaml:"postgres"`   // Database holds the postgres database configuration
	Auth       AuthConfig       `yaml:"auth"`       // Auth holds the bearer token verification settings
	Push       PushConfig       `yaml:"push"`       // Push holds the push channel configuration
	Currency   string           `yaml:"currency"`   // Currency is appended to formatted order totals
}

// HTTPConfig holds the settings of the API server.
type HTTPConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// MonitoringConfig holds the settings of the monitoring server.
type MonitoringConfig struct {
	Port int `yaml:"port"`
}

// PostgresConfig struct holds the configuration details for connecting to a PostgreSQL database.
type PostgresConfig struct {
	Host     string `yaml:"host"`     // Host is the database server address.
	Port     string `yaml:"port"`     // Port is the database server port.
	User     string `yaml:"user"`     // User is the database user.
	Password string `yaml:"password"` // Password is the database user's password.
	Name     string `yaml:"db_name"`  // Name is the name of the database.
}

// AuthConfig holds the secret used to verify HS256 bearer tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// PushConfig selects and configures the push provider.
type PushConfig struct {
	Provider string        `yaml:"provider"` // Provider is one of fcm, broker, memory
	Timeout  time.Duration `yaml:"timeout"`  // Timeout bounds every provider call
	FCM      FCMConfig     `yaml:"fcm"`
	Broker   BrokerConfig  `yaml:"broker"`
}

// FCMConfig holds the Firebase service account settings.
type FCMConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// BrokerConfig holds the RabbitMQ settings.
type BrokerConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

// MustLoad reads the configuration from the optional YAML file named by
// CONFIG_PATH, overridden by DISPATCH_* environment variables (".env" included).
// It panics when the configuration cannot be read or is invalid.
func MustLoad() *Config {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DISPATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		// check if file exists
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			panic("config file does not exist: " + configPath)
		}

		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			panic("config error: " + err.Error())
		}
	}

	cfg := &Config{
		Env: v.GetString("env"),
		HTTP: HTTPConfig{
			Port:         v.GetInt("http.port"),
			ReadTimeout:  mustDuration(v, "http.read_timeout"),
			WriteTimeout: mustDuration(v, "http.write_timeout"),
		},
		Monitoring: MonitoringConfig{Port: v.GetInt("monitoring.port")},
		Database: PostgresConfig{
			Host:     v.GetString("postgres.host"),
			Port:     v.GetString("postgres.port"),
			User:     v.GetString("postgres.user"),
			Password: v.GetString("postgres.password"),
			Name:     v.GetString("postgres.db_name"),
		},
		Auth: AuthConfig{JWTSecret: v.GetString("auth.jwt_secret")},
		Push: PushConfig{
			Provider: strings.ToLower(v.GetString("push.provider")),
			Timeout:  mustDuration(v, "push.timeout"),
			FCM: FCMConfig{
				CredentialsFile: v.GetString("push.fcm.credentials_file"),
				ProjectID:       v.GetString("push.fcm.project_id"),
			},
			Broker: BrokerConfig{
				URL:      v.GetString("push.broker.url"),
				Exchange: v.GetString("push.broker.exchange"),
			},
		},
		Currency: v.GetString("orders.currency"),
	}

	switch cfg.Push.Provider {
	case ProviderFCM, ProviderBroker, ProviderMemory:
	default:
		panic("config error: unknown push provider " + cfg.Push.Provider)
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "production")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("monitoring.port", 9090)
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("push.provider", ProviderFCM)
	v.SetDefault("push.timeout", "5s")
	v.SetDefault("push.broker.exchange", "dispatch.notifications")
	v.SetDefault("orders.currency", "GNF")
}

func mustDuration(v *viper.Viper, key string) time.Duration {
	duration, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		panic("failed to parse interval from configuration")
	}

	return duration
}
