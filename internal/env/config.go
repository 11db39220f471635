package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// DotEnvFile is loaded, when present, before the environment is read.
const DotEnvFile = ".env.local"

type Config struct {
	LogLevel    string        `env:"KEYDIR_LOG_LEVEL,default=info"`
	DebugHTTP   bool          `env:"KEYDIR_DEBUG_HTTP"`
	Listeners   int           `env:"KEYDIR_LISTENERS"`
	Reuseport   bool          `env:"KEYDIR_REUSEPORT,default=true"`
	ClientPause time.Duration `env:"KEYDIR_CLIENT_PAUSE,default=50ms"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(DotEnvFile); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
