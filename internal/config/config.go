package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rocketscienceinc/tictactoe-program/internal/entity"
)

type Config struct {
	LogLevel   string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort   string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort string  `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Redis      Redis   `yaml:"redis"`
	Program    Program `yaml:"program"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

type Program struct {
	// ID is the hex key owning every record the program manages.
	ID                string `yaml:"id" env:"PROGRAM_ID" env-required:"true"`
	FundingWatermark  uint64 `yaml:"funding-watermark" env-default:"300"`
	DashboardCapacity int    `yaml:"dashboard-capacity" env-default:"5"`
	// InitialBalance is credited to a dashboard record when it is allocated.
	InitialBalance uint64 `yaml:"initial-balance" env-default:"1000000"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if _, err := config.Program.Key(); err != nil {
		panic(fmt.Errorf("invalid program id: %w", err))
	}

	if config.Program.DashboardCapacity <= 0 {
		panic(fmt.Errorf("dashboard capacity must be positive, got %d", config.Program.DashboardCapacity))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Program) Key() (entity.Key, error) {
	return entity.ParseKey(that.ID)
}
