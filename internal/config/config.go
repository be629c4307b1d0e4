package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server        ServerConfig     `mapstructure:"server"`
	API           APIConfig        `mapstructure:"api"`
	Cache         CacheConfig      `mapstructure:"cache"`
	Storage       StorageConfig    `mapstructure:"storage"`
	RateLimit     RateLimitConfig  `mapstructure:"rate_limit"`
	Logging       LoggingConfig    `mapstructure:"logging"`
	Monitoring    MonitoringConfig `mapstructure:"monitoring"`
	I18n          I18nConfig       `mapstructure:"i18n"`
	Pagination    PaginationConfig `mapstructure:"pagination"`
	Chart         ChartConfig      `mapstructure:"chart"`
	Streamers     []StreamerConfig `mapstructure:"streamers"`
	DefaultRoomID int64            `mapstructure:"default_room_id"`
}

type ServerConfig struct {
	Host       string        `mapstructure:"host"`
	Port       int           `mapstructure:"port"`
	RenderWait time.Duration `mapstructure:"render_wait"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	// Location is the IANA zone used to interpret dates typed into filter forms.
	Location string `mapstructure:"location"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
	MaxSize int           `mapstructure:"max_size"`
}

type StorageConfig struct {
	Type   string       `mapstructure:"type"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Memory MemoryConfig `mapstructure:"memory"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type MemoryConfig struct {
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
}

type RateLimitConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
}

type PaginationConfig struct {
	FeedLimit      int `mapstructure:"feed_limit"`
	BlockUserLimit int `mapstructure:"block_user_limit"`
}

type ChartConfig struct {
	Days int `mapstructure:"days"`
}

// StreamerConfig is one entry of the static streamer directory
type StreamerConfig struct {
	ID           int    `mapstructure:"id"`
	Nickname     string `mapstructure:"nickname"`
	Username     string `mapstructure:"username"`
	BilibiliLink string `mapstructure:"bilibili_link"`
	RoomID       int64  `mapstructure:"room_id"`
	Avatar       string `mapstructure:"avatar"`
	SmallAvatar  string `mapstructure:"small_avatar"`
	Description  string `mapstructure:"description"`
}

// Addr returns the listen address of the dashboard server
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TimeLocation resolves the configured zone, falling back to the local zone
func (c *ServerConfig) TimeLocation() *time.Location {
	if c.Location == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Location)
	if err != nil {
		return time.Local
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.render_wait", 3*time.Second)
	v.SetDefault("server.session_ttl", 24*time.Hour)
	v.SetDefault("api.timeout", 15*time.Second)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("storage.type", "memory")
	v.SetDefault("storage.memory.default_expiration", 24*time.Hour)
	v.SetDefault("storage.memory.cleanup_interval", 10*time.Minute)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("monitoring.metrics.port", 9090)
	v.SetDefault("monitoring.metrics.path", "/metrics")
	v.SetDefault("i18n.default_language", "zh")
	v.SetDefault("i18n.languages", []string{"zh", "en"})
	v.SetDefault("pagination.feed_limit", 50)
	v.SetDefault("pagination.block_user_limit", 15)
	v.SetDefault("chart.days", 30)
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// Enable environment variable substitution
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set environment variable overrides
	v.BindEnv("api.base_url", "API_URL")
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.redis.db", "REDIS_DB")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Handle Redis address special case
	if redisHost := v.GetString("REDIS_HOST"); redisHost != "" {
		redisPort := v.GetString("REDIS_PORT")
		if redisPort == "" {
			redisPort = "6379"
		}
		config.Storage.Redis.Addr = fmt.Sprintf("%s:%s", redisHost, redisPort)
	}

	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")
	if config.DefaultRoomID == 0 && len(config.Streamers) > 0 {
		config.DefaultRoomID = config.Streamers[0].RoomID
	}

	// Validate required fields
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}
	if len(cfg.Streamers) == 0 {
		return fmt.Errorf("at least one streamer is required")
	}
	found := false
	for _, s := range cfg.Streamers {
		if s.RoomID == cfg.DefaultRoomID {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("default room %d is not in the streamer list", cfg.DefaultRoomID)
	}
	if cfg.Pagination.FeedLimit <= 0 || cfg.Pagination.BlockUserLimit <= 0 {
		return fmt.Errorf("pagination limits must be positive")
	}
	switch cfg.Storage.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
	return nil
}
