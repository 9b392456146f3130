package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Serial   SerialConfig   `mapstructure:"serial"`
	Motion   MotionConfig   `mapstructure:"motion"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Store    StoreConfig    `mapstructure:"store"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type SerialConfig struct {
	Port         string        `mapstructure:"port"`
	BaudRate     int           `mapstructure:"baud_rate"`
	AckTimeout   time.Duration `mapstructure:"ack_timeout"`
	ConnectDelay time.Duration `mapstructure:"connect_delay"`
	Simulate     bool          `mapstructure:"simulate"`
}

type MotionConfig struct {
	SafeZ          float64 `mapstructure:"safe_z"`
	Feedrate       int     `mapstructure:"feedrate"`
	VacuumDelayMs  int     `mapstructure:"vacuum_delay_ms"`
	ReleaseDelayMs int     `mapstructure:"release_delay_ms"`
	AbortOnFailure bool    `mapstructure:"abort_on_failure"`
}

type WorkflowConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend  string         `mapstructure:"backend"`
	FilePath string         `mapstructure:"file_path"`
	Database DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	viper.SetDefault("serial.port", "")
	viper.SetDefault("serial.baud_rate", 115200)
	viper.SetDefault("serial.ack_timeout", "10s")
	viper.SetDefault("serial.connect_delay", "2s")
	viper.SetDefault("serial.simulate", false)

	viper.SetDefault("motion.safe_z", 50.0)
	viper.SetDefault("motion.feedrate", 3000)
	viper.SetDefault("motion.vacuum_delay_ms", 200)
	viper.SetDefault("motion.release_delay_ms", 100)
	viper.SetDefault("motion.abort_on_failure", false)

	viper.SetDefault("workflow.max_attempts", 3)
	viper.SetDefault("workflow.retry_backoff", "100ms")

	viper.SetDefault("store.backend", "file")
	viper.SetDefault("store.file_path", "data/positions.json")
	viper.SetDefault("store.database.max_connections", 4)

	viper.AutomaticEnv()
	viper.SetEnvPrefix("BLC") // Environment variables with prefix BLC_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}
