package config

import (
	"fmt"
	"time"
)

// Messaging definition messaging_service YAML structure
type Messaging struct {
	Port string `mapstructure:"port"`

	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	Redis      RedisConfig    `mapstructure:"redis"`
	RabbitMQ   QueueConfig    `mapstructure:"rabbitmq"`
	Kafka      KafkaConfig    `mapstructure:"kafka"`

	Realtime     RealtimeConfig     `mapstructure:"realtime"`
	Inbox        InboxConfig        `mapstructure:"inbox"`
	Pagination   PaginationConfig   `mapstructure:"pagination"`
	Notification NotificationConfig `mapstructure:"notification"`
}

// NotificationWorker definition notification_worker YAML structure
type NotificationWorker struct {
	MongoSQL   DatabaseConfig `mapstructure:"mongo"`
	PostgreSQL DatabaseConfig `mapstructure:"pg"`
	RabbitMQ   QueueConfig    `mapstructure:"rabbitmq"`

	Mail MailConfig `mapstructure:"mail"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	Enabled bool `mapstructure:"enabled"`
	RedisDB int  `mapstructure:"redis_db"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// MongoURI build the mongodb connection string
func (d DatabaseConfig) MongoURI() string {
	if d.User == "" {
		return fmt.Sprintf("mongodb://%s:%d", d.Host, d.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%d", d.User, d.Password, d.Host, d.Port)
}

// PostgresDSN build the postgres dsn
func (d DatabaseConfig) PostgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		d.Host, d.User, d.Password, d.Database, d.Port)
}

// QueueConfig definition rabbitmq setting
type QueueConfig struct {
	IP            string `mapstructure:"ip"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Queue         string `mapstructure:"queue"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// URL build the amqp url
func (q QueueConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%s/", q.User, q.Password, q.IP, q.Port)
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// RealtimeConfig definition websocket hub setting
type RealtimeConfig struct {
	WriteWait  time.Duration `mapstructure:"write_wait"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
}

// InboxConfig definition conversation display setting
type InboxConfig struct {
	BroadcastName  string `mapstructure:"broadcast_name"`
	StaffInboxName string `mapstructure:"staff_inbox_name"`
	PreviewLength  int    `mapstructure:"preview_length"`
}

// PaginationConfig definition thread pagination
type PaginationConfig struct {
	DefaultPerPage int `mapstructure:"default_per_page"`
	MaxPerPage     int `mapstructure:"max_per_page"`
}

// NotificationConfig definition e-mail notification setting
type NotificationConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Cooldown time.Duration `mapstructure:"cooldown"`
}

// MailConfig definition outgoing mail identity
type MailConfig struct {
	From    string `mapstructure:"from"`
	BaseURL string `mapstructure:"base_url"`
}
