package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/luma/respd/protocol"
)

type Config struct {
	DebugHTTP bool `env:"RESPD_DEBUG_HTTP"`

	LogLevel    string `env:"RESPD_LOG_LEVEL,default=info"`
	LogEncoding string `env:"RESPD_LOG_ENCODING,default=json"`

	// StoreShards above 1 selects the sharded store.
	StoreShards int `env:"RESPD_STORE_SHARDS,default=1"`

	MaxBulkLen  int64 `env:"RESPD_MAX_BULK_LEN"`
	MaxArrayLen int64 `env:"RESPD_MAX_ARRAY_LEN"`
	MaxLineLen  int   `env:"RESPD_MAX_LINE_LEN"`
}

// Limits returns the decoder limits, zero values fall back to the protocol
// defaults.
func (c *Config) Limits() protocol.Limits {
	return protocol.Limits{
		MaxBulkLen:  c.MaxBulkLen,
		MaxArrayLen: c.MaxArrayLen,
		MaxLineLen:  c.MaxLineLen,
	}
}

func LoadConfig(ctx context.Context) (*Config, error) {
	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
