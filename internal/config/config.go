// Package config loads the worker's process-wide configuration from
// environment variables, per the job contract: this worker has no REST
// surface and no YAML-scaffolded config file, so there is nothing for
// go-zero's conf.MustLoad to load — Load below plays that role.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the complete set of environment-driven settings for one worker
// process.
type Config struct {
	BrokerHost string
	BrokerPort int
	BrokerUser string
	BrokerPass string

	SubmissionQueue string
	ResultQueue     string
	ConsumerGroup   string

	DataDir string
	WorkDir string

	CgroupRoot   string
	SandboxInit  string
	EnableCgroup bool

	LogLevel  string
	LogFormat string

	// DataPackSyncEnabled turns on the optional MinIO-backed sync that
	// populates DataDir from an object store before a problem is judged
	// for the first time on this worker.
	DataPackSyncEnabled bool
	MinIOEndpoint       string
	MinIOAccessKey      string
	MinIOSecretKey      string
	MinIOBucket         string
	MinIOUseSSL         bool
}

// Load reads configuration from the environment, applying the defaults
// named in the external interface contract.
func Load() (Config, error) {
	cfg := Config{
		BrokerHost:          getEnv("BROKER_HOST", "localhost"),
		BrokerPort:          getEnvInt("BROKER_PORT", 5672),
		BrokerUser:          getEnv("BROKER_USER", "guest"),
		BrokerPass:          getEnv("BROKER_PASS", "guest"),
		SubmissionQueue:     getEnv("SUBMISSION_QUEUE", "submission_queue"),
		ResultQueue:         getEnv("RESULT_QUEUE", "result_queue"),
		ConsumerGroup:       getEnv("CONSUMER_GROUP", "judge-worker"),
		DataDir:             getEnv("JUDGE_DATA_DIR", "./judge_data"),
		WorkDir:             getEnv("JUDGE_WORK_DIR", "./judge_work"),
		CgroupRoot:          getEnv("JUDGE_CGROUP_ROOT", "/sys/fs/cgroup"),
		SandboxInit:         getEnv("JUDGE_SANDBOX_INIT", "sandbox-init"),
		EnableCgroup:        getEnvBool("JUDGE_ENABLE_CGROUP", true),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "json"),
		DataPackSyncEnabled: getEnvBool("JUDGE_DATAPACK_SYNC", false),
		MinIOEndpoint:       getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:      getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:      getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:         getEnv("MINIO_BUCKET", "judge-data-packs"),
		MinIOUseSSL:         getEnvBool("MINIO_USE_SSL", true),
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.DataPackSyncEnabled && c.MinIOEndpoint == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required when JUDGE_DATAPACK_SYNC is set")
	}
	if c.DataDir == "" {
		return fmt.Errorf("JUDGE_DATA_DIR must not be empty")
	}
	return nil
}

// BrokerAddr returns the host:port pair used to dial the broker transport.
func (c Config) BrokerAddr() string {
	return fmt.Sprintf("%s:%d", c.BrokerHost, c.BrokerPort)
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
