package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue"    validate:"required"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"  validate:"required"`
	Mail     MailConfig     `mapstructure:"mail"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database related settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the API surface.
// AdminPasswordHash is a bcrypt hash of the single admin credential.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	AdminUsername        string `mapstructure:"admin_username"         validate:"required"`
	AdminPasswordHash    string `mapstructure:"admin_password_hash"    validate:"required"`
}

// QueueConfig selects and tunes the work queue backing the task jobs.
// Broker "redis" runs hibiken/asynq against RedisAddr; "memory" runs
// the in-process worker pool (no external broker, single node only).
type QueueConfig struct {
	Broker      string `mapstructure:"broker"      validate:"required,oneof=redis memory"`
	RedisAddr   string `mapstructure:"redis_addr"  validate:"required_if=Broker redis"`
	Name        string `mapstructure:"name"        validate:"required"`
	Concurrency int    `mapstructure:"concurrency" validate:"required,gt=0"`
	BufferSize  int    `mapstructure:"buffer_size" validate:"required,gt=0"`
}

// CleanupConfig controls the periodic prune of old completed tasks.
type CleanupConfig struct {
	RetentionDays int    `mapstructure:"retention_days" validate:"required,gt=0"`
	Schedule      string `mapstructure:"schedule"       validate:"required"`
}

// MailConfig contains SMTP settings for completion notifications.
// Notifications are disabled when the group is left unconfigured,
// mirroring the optional mail transport of the system.
type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"     validate:"omitempty,email"`
	To       string `mapstructure:"to"       validate:"omitempty,email"`
}

// Enabled reports whether enough mail settings are present to send
// notifications.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != "" && m.To != ""
}
