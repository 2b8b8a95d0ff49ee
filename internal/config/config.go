package config

import (
	"errors"
	"fmt"
	"os"

	"homeserve/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Booking    BookingConfig    `yaml:"booking"`
	Services   []models.Service `yaml:"services"`
	Exports    ExportConfig     `yaml:"exports"`
	Google     GoogleConfig     `yaml:"google"`
}

// BookingConfig tunes the booking lifecycle and the completion handshake.
type BookingConfig struct {
	OtpLength        int     `yaml:"otp_length"`
	OtpTTLMinutes    int     `yaml:"otp_ttl_minutes"`
	OtpMaxAttempts   int     `yaml:"otp_max_attempts"`
	OtpRequestLimit  int     `yaml:"otp_request_limit"`
	OtpRequestWindow int     `yaml:"otp_request_window"`
	TaxRate          float64 `yaml:"tax_rate"`
	MaxScheduleDays  int     `yaml:"max_schedule_days"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

// APIClientKey binds a credential pair to an acting identity. Role and
// Subject together form the models.Actor resolved for every request.
type APIClientKey struct {
	Key     string `yaml:"key"`
	Extra   string `yaml:"extra"`
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Subject int64  `yaml:"subject"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	Debug    bool   `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
	HealthCheckPort   int  `yaml:"health_check_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile string `yaml:"credentials_file"`
	BookingSpreadSheetID  string `yaml:"bookings_spreadsheet_id"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен: в проде переменные приходят из окружения
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.API.Auth.Enabled {
		for _, key := range c.API.Auth.APIKeys {
			if key.Key == "" {
				return fmt.Errorf("api key '%s' has empty credential", key.Name)
			}
			switch key.Role {
			case models.RoleCustomer, models.RoleProvider, models.RoleAdmin:
			default:
				return fmt.Errorf("api key '%s' has unknown role '%s'", key.Name, key.Role)
			}
			if key.Role != models.RoleAdmin && key.Subject == 0 {
				return fmt.Errorf("api key '%s' requires a subject id for role %s", key.Name, key.Role)
			}
		}
	}

	return ValidateServices(c.Services)
}

func ValidateServices(services []models.Service) error {
	// Check for duplicate service IDs
	serviceIDs := make(map[int64]bool)
	for _, svc := range services {
		if svc.ID == 0 {
			return fmt.Errorf("service '%s' has invalid ID 0", svc.Name)
		}
		if serviceIDs[svc.ID] {
			return fmt.Errorf("duplicate service ID found: %d", svc.ID)
		}
		serviceIDs[svc.ID] = true
		if svc.BaseCharge < 0 {
			return fmt.Errorf("service '%s' has negative base charge", svc.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	// Booking defaults
	if c.Booking.OtpLength == 0 {
		c.Booking.OtpLength = models.DefaultOtpLength
	}
	if c.Booking.OtpTTLMinutes == 0 {
		c.Booking.OtpTTLMinutes = models.DefaultOtpTTLMinutes
	}
	if c.Booking.OtpMaxAttempts == 0 {
		c.Booking.OtpMaxAttempts = models.DefaultOtpMaxAttempts
	}
	if c.Booking.OtpRequestLimit == 0 {
		c.Booking.OtpRequestLimit = models.DefaultOtpRequestLimit
	}
	if c.Booking.OtpRequestWindow == 0 {
		c.Booking.OtpRequestWindow = models.DefaultOtpRequestWindow
	}
	if c.Booking.MaxScheduleDays == 0 {
		c.Booking.MaxScheduleDays = models.DefaultMaxScheduleDays
	}
}
