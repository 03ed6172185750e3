package config

type Config struct {
	// Server settings (stats/health API)
	Server ServerConfig `json:"server"`

	// Database settings
	Database DatabaseConfig `json:"database"`

	// Security settings
	Security SecurityConfig `json:"security"`

	// Logging settings
	Logging LoggingConfig `json:"logging"`

	// Delivery queue settings
	Queue QueueConfig `json:"queue"`

	// Telegram transport settings
	Telegram TelegramConfig `json:"telegram"`

	// TCP monitoring settings
	Monitor MonitorConfig `json:"monitor"`

	// CPU benchmark polling settings
	Benchmark BenchmarkConfig `json:"benchmark"`
}

type ServerConfig struct {
	Host         string `json:"host" default:"localhost"`
	Port         int    `json:"port" default:"8080"`
	ReadTimeout  int    `json:"read_timeout" default:"30"`  // seconds
	WriteTimeout int    `json:"write_timeout" default:"30"` // seconds
	IdleTimeout  int    `json:"idle_timeout" default:"120"` // seconds
	GracefulStop int    `json:"graceful_stop" default:"30"` // seconds

	// Rate limiting for the stats API
	RateLimitPerMinute int `json:"rate_limit_per_minute" default:"60"`
	RateLimitBurstSize int `json:"rate_limit_burst_size" default:"10"`
}

type DatabaseConfig struct {
	Driver   string `json:"driver" default:"sqlite"` // sqlite, postgres
	Host     string `json:"host" default:"localhost"`
	Port     int    `json:"port" default:"5432"`
	Database string `json:"database" default:"sysalert.db"`
	Username string `json:"username"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode" default:"disable"`

	// Connection pool settings
	MaxOpenConns    int `json:"max_open_conns" default:"25"`
	MaxIdleConns    int `json:"max_idle_conns" default:"5"`
	ConnMaxLifetime int `json:"conn_max_lifetime" default:"300"` // seconds
}

type SecurityConfig struct {
	// Base64-encoded master secret, >=32 random bytes recommended.
	// Both the AES key and the HMAC fingerprint key derive from it.
	MasterKey string `json:"-"`

	AdminUserIDs []int64 `json:"admin_user_ids"`
}

type LoggingConfig struct {
	Level      string `json:"level" default:"info"`    // debug, info, warn, error
	Format     string `json:"format" default:"json"`   // json, text
	Output     string `json:"output" default:"stdout"` // stdout, file
	FilePath   string `json:"file_path" default:"logs/sysalert.log"`
	MaxSize    int    `json:"max_size" default:"100"` // MB
	MaxBackups int    `json:"max_backups" default:"3"`
	MaxAge     int    `json:"max_age" default:"28"` // days
	Compress   bool   `json:"compress" default:"true"`
}

type QueueConfig struct {
	WorkerCount        int     `json:"worker_count" default:"3"`
	Capacity           int     `json:"capacity" default:"1024"`
	MaxAttempts        int     `json:"max_attempts" default:"5"`
	PerChatRateSeconds float64 `json:"per_chat_rate_seconds" default:"1.0"`
}

type TelegramConfig struct {
	Token          string `json:"-"` // opaque bot token, never logged
	RequestTimeout int    `json:"request_timeout" default:"15"` // seconds
	BotName        string `json:"bot_name" default:"SysAlert"`
}

type MonitorConfig struct {
	MaxConcurrentChecks    int     `json:"max_concurrent_checks" default:"50"`
	MinIntervalSeconds     int     `json:"min_interval_seconds" default:"20"`
	DefaultIntervalSeconds int     `json:"default_interval_seconds" default:"60"`
	ConnectionTimeout      float64 `json:"connection_timeout" default:"10"` // seconds
	FailureThreshold       int     `json:"failure_threshold" default:"3"`
	MaxTargetsPerUser      int     `json:"max_targets_per_user" default:"10"`
}

type BenchmarkConfig struct {
	Enabled             bool    `json:"enabled" default:"true"`
	MainnetURL          string  `json:"mainnet_url"`
	TestnetURL          string  `json:"testnet_url"`
	ThresholdSeconds    float64 `json:"threshold_seconds" default:"0.35"`
	PollIntervalSeconds int     `json:"poll_interval_seconds" default:"300"`
	RequestTimeout      float64 `json:"request_timeout" default:"10"` // seconds
	MaxTargetsPerUser   int     `json:"max_targets_per_user" default:"5"`
}
