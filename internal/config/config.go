package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Publisher PublisherConfig `mapstructure:"publisher"`
	Coalescer CoalescerConfig `mapstructure:"coalescer"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver     string `mapstructure:"driver"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	User       string `mapstructure:"user"`
	Password   string `mapstructure:"password"`
	DBName     string `mapstructure:"dbname"`
	SSLMode    string `mapstructure:"sslmode"`
	MaxConns   int32  `mapstructure:"max_conns"`
	ViaBouncer bool   `mapstructure:"via_bouncer"`
}

// TelegramConfig holds bot credentials and the chats the relay listens to
type TelegramConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	BotToken     string  `mapstructure:"bot_token"`
	BotUsername  string  `mapstructure:"bot_username"`
	TargetChatID int64   `mapstructure:"target_chat_id"`
	TargetChat   string  `mapstructure:"target_chat_username"`
	WatchChats   []int64 `mapstructure:"watch_chats"`
	AdminContact string  `mapstructure:"admin_contact"`
	PollTimeout  int     `mapstructure:"poll_timeout"`
	Workers      int     `mapstructure:"workers"`
}

// RoutingConfig points at the keyword dictionaries used for tags and topics
type RoutingConfig struct {
	CategoriesPath string `mapstructure:"categories_path"`
	TopicsPath     string `mapstructure:"topics_path"`
	GeneralTopicID int64  `mapstructure:"general_topic_id"`
	MaxHits        int    `mapstructure:"max_hits"`
}

// PublisherConfig controls fan-out pacing and retries
type PublisherConfig struct {
	MaxTextLength int           `mapstructure:"max_text_length"`
	SendInterval  time.Duration `mapstructure:"send_interval"`
	MaxRetries    int           `mapstructure:"max_retries"`
	BackoffBase   time.Duration `mapstructure:"backoff_base"`
	MaxStars      int           `mapstructure:"max_stars"`
}

// CoalescerConfig holds the edit coalescing window
type CoalescerConfig struct {
	Delay time.Duration `mapstructure:"delay"`
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ReconcileSchedule string `mapstructure:"reconcile_schedule"`
	ReloadSchedule    string `mapstructure:"reload_schedule"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// LoadConfig loads configuration from environment variables and config file
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Environment variables override config file
	v.AutomaticEnv()
	bindEnvVars(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.via_bouncer", false)

	v.SetDefault("telegram.enabled", true)
	v.SetDefault("telegram.poll_timeout", 60)
	v.SetDefault("telegram.workers", 8)

	v.SetDefault("routing.general_topic_id", 1)
	v.SetDefault("routing.max_hits", 10)

	v.SetDefault("publisher.max_text_length", 300)
	v.SetDefault("publisher.send_interval", "300ms")
	v.SetDefault("publisher.max_retries", 3)
	v.SetDefault("publisher.backoff_base", "1s")
	v.SetDefault("publisher.max_stars", 5)

	v.SetDefault("coalescer.delay", "1s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.reconcile_schedule", "0 */15 * * * *")
	v.SetDefault("scheduler.reload_schedule", "0 */5 * * * *")

	v.SetDefault("log.level", "info")
}

// bindEnvVars binds environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	v.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")

	// Database
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.max_conns", "DB_MAX_CONNS")
	v.BindEnv("database.via_bouncer", "DB_VIA_BOUNCER")

	// Telegram
	v.BindEnv("telegram.enabled", "TELEGRAM_ENABLED")
	v.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN")
	v.BindEnv("telegram.bot_username", "TELEGRAM_BOT_USERNAME")
	v.BindEnv("telegram.target_chat_id", "TELEGRAM_TARGET_CHAT_ID")
	v.BindEnv("telegram.target_chat_username", "TELEGRAM_TARGET_CHAT_USERNAME")
	v.BindEnv("telegram.watch_chats", "TELEGRAM_WATCH_CHATS")
	v.BindEnv("telegram.admin_contact", "TELEGRAM_ADMIN_CONTACT")
	v.BindEnv("telegram.poll_timeout", "TELEGRAM_POLL_TIMEOUT")
	v.BindEnv("telegram.workers", "TELEGRAM_WORKERS")

	// Routing
	v.BindEnv("routing.categories_path", "ROUTING_CATEGORIES_PATH")
	v.BindEnv("routing.topics_path", "ROUTING_TOPICS_PATH")
	v.BindEnv("routing.general_topic_id", "ROUTING_GENERAL_TOPIC_ID")
	v.BindEnv("routing.max_hits", "ROUTING_MAX_HITS")

	// Publisher
	v.BindEnv("publisher.max_text_length", "PUBLISHER_MAX_TEXT_LENGTH")
	v.BindEnv("publisher.send_interval", "PUBLISHER_SEND_INTERVAL")
	v.BindEnv("publisher.max_retries", "PUBLISHER_MAX_RETRIES")
	v.BindEnv("publisher.backoff_base", "PUBLISHER_BACKOFF_BASE")
	v.BindEnv("publisher.max_stars", "PUBLISHER_MAX_STARS")

	v.BindEnv("coalescer.delay", "COALESCER_DELAY")

	// Scheduler
	v.BindEnv("scheduler.enabled", "SCHEDULER_ENABLED")
	v.BindEnv("scheduler.reconcile_schedule", "SCHEDULER_RECONCILE_SCHEDULE")
	v.BindEnv("scheduler.reload_schedule", "SCHEDULER_RELOAD_SCHEDULE")

	v.BindEnv("log.level", "LOG_LEVEL")
}

// GetDSN returns the database connection string for the configured driver
func (c *DatabaseConfig) GetDSN() string {
	if c.Driver == "mysql" {
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			c.User, c.Password, c.Host, c.Port, c.DBName)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// IsWatched reports whether messages from chatID should be ingested.
// An empty watch list accepts every chat except the target chat.
func (c *TelegramConfig) IsWatched(chatID int64) bool {
	if chatID == c.TargetChatID {
		return false
	}
	if len(c.WatchChats) == 0 {
		return true
	}
	for _, id := range c.WatchChats {
		if id == chatID {
			return true
		}
	}
	return false
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Database.Driver != "postgres" && c.Database.Driver != "mysql" {
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return fmt.Errorf("database host, user, and dbname are required")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" || c.Telegram.BotUsername == "" {
			return fmt.Errorf("telegram bot token and username are required")
		}
		if c.Telegram.TargetChatID == 0 {
			return fmt.Errorf("telegram target chat id is required")
		}
		if c.Telegram.Workers <= 0 {
			return fmt.Errorf("telegram workers must be greater than 0")
		}
	}

	if c.Routing.MaxHits < 0 {
		return fmt.Errorf("routing max_hits must not be negative")
	}

	if c.Publisher.MaxTextLength <= 0 {
		return fmt.Errorf("publisher max_text_length must be greater than 0")
	}
	if c.Publisher.MaxRetries <= 0 {
		return fmt.Errorf("publisher max_retries must be greater than 0")
	}
	if c.Publisher.SendInterval < 0 || c.Publisher.BackoffBase < 0 {
		return fmt.Errorf("publisher intervals must not be negative")
	}
	if c.Publisher.MaxStars <= 0 {
		return fmt.Errorf("publisher max_stars must be greater than 0")
	}

	if c.Coalescer.Delay <= 0 {
		return fmt.Errorf("coalescer delay must be greater than 0")
	}

	if c.Scheduler.Enabled && (c.Scheduler.ReconcileSchedule == "" || c.Scheduler.ReloadSchedule == "") {
		return fmt.Errorf("scheduler schedules are required when the scheduler is enabled")
	}

	return nil
}
