package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_COLOURS enables colorized step headers for log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
	// E2E_DEBUG enables verbose sandbox logging during scenarios
	Debug bool `envconfig:"E2E_DEBUG" default:"false"`
	// E2E_DATA_DIR points the sandbox store at a directory; empty runs in memory
	DataDir string `envconfig:"E2E_DATA_DIR"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
