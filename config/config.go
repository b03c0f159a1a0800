package config

import (
	"log"
	"os"
	"strings"

	"freelancehub/pkg/config"
)

type Config struct {
	Server  config.ServerConfig  `yaml:"server"`
	DB      config.DBConfig      `yaml:"db"`
	MQ      config.MQConfig      `yaml:"mq"`
	Redis   config.RedisConfig   `yaml:"redis"`
	JWT     config.JWTConfig     `yaml:"jwt"`
	Storage config.StorageConfig `yaml:"storage"`
	Agent   config.AgentConfig   `yaml:"agent"`
	App     config.AppConfig     `yaml:"app"`
	Log     config.LogConfig     `yaml:"log"`
	Otel    config.OtelConfig    `yaml:"otel"`
	CORS    config.CORSConfig    `yaml:"cors"`
}

// Load reads config/<CONFIG_ENV>.yaml over config/base.yaml. CONFIG_DIR
// points somewhere else when the binary does not run from the repo root.
func Load() *Config {
	cfg, err := LoadFrom(config.GetConfigEnv(), config.GetEnv("CONFIG_DIR", "config"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func LoadFrom(env, dir string) (*Config, error) {
	var cfg Config
	if err := config.Decode(env, dir, &cfg); err != nil {
		return nil, err
	}

	// 环境变量覆盖（生产环境使用）
	config.OverrideServerFromEnv(&cfg.Server)
	config.OverrideDBFromEnv(&cfg.DB)
	config.OverrideMQFromEnv(&cfg.MQ)
	config.OverrideRedisFromEnv(&cfg.Redis)
	config.OverrideJWTFromEnv(&cfg.JWT)
	config.OverrideStorageFromEnv(&cfg.Storage)
	config.OverrideAgentFromEnv(&cfg.Agent)
	config.OverrideAppFromEnv(&cfg.App)
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORS.AllowedOrigins = strings.Split(origins, ",")
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if !strings.Contains(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "postgres"
	}
	if cfg.Otel.ServiceName == "" {
		cfg.Otel.ServiceName = "freelancehub"
	}
}
