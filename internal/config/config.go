package config

import (
	"os"
	"time"

	"github.com/go-yaml/yaml"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Auth     Auth     `yaml:"auth"`
	Presence Presence `yaml:"presence"`
}

type Server struct {
	Addr          string `yaml:"addr"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
}

type Auth struct {
	JWTSecret string        `yaml:"jwtSecret"`
	TokenTTL  time.Duration `yaml:"tokenTTL"`
}

type Presence struct {
	Expiry        time.Duration `yaml:"expiry"`
	SweepInterval time.Duration `yaml:"sweepInterval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

func Load(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, err
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8000"
	}
	if config.Auth.TokenTTL == 0 {
		config.Auth.TokenTTL = 8 * time.Hour
	}
	if config.Presence.Expiry == 0 {
		config.Presence.Expiry = 2 * time.Minute
	}
	if config.Presence.SweepInterval == 0 {
		config.Presence.SweepInterval = 30 * time.Second
	}
	if config.Presence.Heartbeat == 0 {
		config.Presence.Heartbeat = 25 * time.Second
	}

	return config, nil
}
