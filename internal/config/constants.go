package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout    = 60 * time.Second
	ServerShutdownTimeout = 30 * time.Second
	ReadHeaderTimeout     = 10 * time.Second

	// AI timeouts
	AIRequestTimeout  = 30 * time.Second
	AIShutdownTimeout = 30 * time.Second
	AITestTimeout     = 1 * time.Second

	// Database timeouts
	ServerSelectionTimeout = 5 * time.Second
	DatabaseCloseTimeout   = 5 * time.Second
)

// Defaults applied before the config file and environment are read
const (
	DefaultPort             = "5000"
	DefaultDatabaseName     = "feedback_db"
	DefaultCollectionName   = "feedback"
	DefaultFallbackFile     = "feedback_data.json"
	DefaultStaticDir        = "static"
	DefaultAIModel          = "gemini-2.5-flash"
	DefaultAIMaxConcurrent  = 10
	DefaultServiceName      = "feedback-service"
	DefaultConfigFile       = "config.yaml"
	ConfigFileEnvVar        = "FEEDBACK_CONFIG_FILE"
	DefaultOTelSamplingRate = 1.0
	DefaultOTelProtocol     = "grpc"
	RecentRecordsCheckLimit = 10
)

// Security configuration constants
const (
	// Content Security Policy; the dashboards use inline scripts and styles.
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline' https://cdn.jsdelivr.net; img-src 'self' data:;"
)

// AI service constants
const (
	// Polling intervals
	AIShutdownPollInterval = 100 * time.Millisecond
)
