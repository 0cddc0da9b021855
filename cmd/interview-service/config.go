package main

import (
	"fmt"
	"os"
	"time"

	"assesy/internal/common/cache"
	"assesy/internal/common/db"
	commonmw "assesy/internal/common/http/middleware"
	"assesy/internal/common/mq"
	"assesy/internal/common/storage"
	"assesy/internal/interview/lock"
	"assesy/internal/interview/runtime"
	"assesy/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:3001"
	defaultReadTimeout     = 30 * time.Second
	defaultWriteTimeout    = 60 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultAssessmentRoot = "assessment_files"
	defaultSubmissionDir  = "submissions"
	defaultStagingRoot    = "/tmp/interview-sessions"
	defaultWorkspaceOwner = 1000
	defaultReviewTimeout  = 30 * time.Minute
	defaultTeardownDelay  = time.Second
	defaultEventsTopic    = "interview.session.status"

	lockBackendMemory  = "memory"
	lockBackendRedis   = "redis"
	storeBackendLocal  = "local"
	storeBackendObject = "minio"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// PublicBaseURL prefixes the links handed to candidates.
	PublicBaseURL  string `yaml:"publicBaseURL"`
	MaxUploadBytes int64  `yaml:"maxUploadBytes"`
}

// WorkspaceConfig holds host paths and ownership of staged workspaces.
type WorkspaceConfig struct {
	AssessmentRoot string        `yaml:"assessmentRoot"`
	StagingRoot    string        `yaml:"stagingRoot"`
	UID            int           `yaml:"uid"`
	GID            int           `yaml:"gid"`
	TeardownDelay  time.Duration `yaml:"teardownDelay"`
	ReviewTimeout  time.Duration `yaml:"reviewTimeout"`

	// Submission archive bounds; 0 keeps the defaults.
	MaxEntryBytes   int64 `yaml:"maxEntryBytes"`
	MaxExtractBytes int64 `yaml:"maxExtractBytes"`
}

// LockConfig selects the provisioning lock backend.
type LockConfig struct {
	Backend string            `yaml:"backend"`
	Lease   lock.LeaseConfig  `yaml:"lease"`
	Redis   cache.RedisConfig `yaml:"redis"`
}

// ArtifactConfig selects where submissions are stored.
type ArtifactConfig struct {
	Backend string              `yaml:"backend"`
	Dir     string              `yaml:"dir"`
	MinIO   storage.MinIOConfig `yaml:"minio"`
}

// EventsConfig enables lifecycle event publishing.
type EventsConfig struct {
	Enabled bool           `yaml:"enabled"`
	Topic   string         `yaml:"topic"`
	Kafka   mq.KafkaConfig `yaml:"kafka"`
}

// AuthConfig holds operator credentials and token settings.
type AuthConfig struct {
	JWTSecret    string        `yaml:"jwtSecret"`
	JWTIssuer    string        `yaml:"jwtIssuer"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"passwordHash"`
	// Password is accepted for local setups and hashed at startup.
	Password string `yaml:"password"`
}

// AppConfig holds the interview-service configuration.
type AppConfig struct {
	Server    ServerConfig         `yaml:"server"`
	Logger    logger.Config        `yaml:"logger"`
	Database  db.Config            `yaml:"database"`
	Docker    runtime.DockerConfig `yaml:"docker"`
	Container runtime.Config       `yaml:"container"`
	Workspace WorkspaceConfig      `yaml:"workspace"`
	Lock      LockConfig           `yaml:"lock"`
	Artifacts ArtifactConfig       `yaml:"artifacts"`
	Events    EventsConfig         `yaml:"events"`
	Auth      AuthConfig           `yaml:"auth"`
	CORS      commonmw.CORSConfig  `yaml:"cors"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.Workspace.AssessmentRoot == "" {
		cfg.Workspace.AssessmentRoot = defaultAssessmentRoot
	}
	if cfg.Workspace.StagingRoot == "" {
		cfg.Workspace.StagingRoot = defaultStagingRoot
	}
	if cfg.Workspace.UID == 0 {
		cfg.Workspace.UID = defaultWorkspaceOwner
	}
	if cfg.Workspace.GID == 0 {
		cfg.Workspace.GID = defaultWorkspaceOwner
	}
	if cfg.Workspace.TeardownDelay == 0 {
		cfg.Workspace.TeardownDelay = defaultTeardownDelay
	}
	if cfg.Workspace.ReviewTimeout == 0 {
		cfg.Workspace.ReviewTimeout = defaultReviewTimeout
	}

	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = lockBackendMemory
	}
	if cfg.Lock.Backend == lockBackendRedis {
		cfg.Lock.Redis.ApplyDefaults()
	}
	if cfg.Artifacts.Backend == "" {
		cfg.Artifacts.Backend = storeBackendLocal
	}
	if cfg.Artifacts.Dir == "" {
		cfg.Artifacts.Dir = defaultSubmissionDir
	}
	if cfg.Events.Topic == "" {
		cfg.Events.Topic = defaultEventsTopic
	}
}

func validate(cfg *AppConfig) error {
	if cfg.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwtSecret is required")
	}
	if cfg.Auth.Username == "" {
		return fmt.Errorf("auth username is required")
	}
	if cfg.Auth.Password == "" && cfg.Auth.PasswordHash == "" {
		return fmt.Errorf("auth password or passwordHash is required")
	}
	switch cfg.Lock.Backend {
	case lockBackendMemory:
	case lockBackendRedis:
		if cfg.Lock.Redis.Addr == "" {
			return fmt.Errorf("lock redis addr is required")
		}
	default:
		return fmt.Errorf("unsupported lock backend %q", cfg.Lock.Backend)
	}
	switch cfg.Artifacts.Backend {
	case storeBackendLocal:
	case storeBackendObject:
		if cfg.Artifacts.MinIO.Bucket == "" {
			return fmt.Errorf("artifacts minio bucket is required")
		}
	default:
		return fmt.Errorf("unsupported artifacts backend %q", cfg.Artifacts.Backend)
	}
	if cfg.Events.Enabled && len(cfg.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events kafka brokers are required when events are enabled")
	}
	return nil
}
