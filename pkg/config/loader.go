package config

import (
	"errors"

	"github.com/kkyr/fig"
)

const (
	EnvPrefix = "TOUCHCOOP"
	FileName  = "config.yaml"
)

// LoadConfig loads a configuration file into the given struct.
// The path param specifies a custom directory with the configuration file.
// Reads and puts environment variables with the prefix TOUCHCOOP_.
// Params from the config should be in uppercase separated with _.
// When no file is found, only defaults and environment are used.
func LoadConfig(config any, path string) error {
	dirs := []string{path}
	if path == "" {
		dirs = []string{".", "configs", "../configs", "../../configs"}
	}
	err := fig.Load(config, fig.File(FileName), fig.Dirs(dirs...), fig.UseEnv(EnvPrefix))
	if errors.Is(err, fig.ErrFileNotFound) {
		return LoadConfigEnv(config)
	}
	return err
}

func LoadConfigEnv(config any) error {
	return fig.Load(config, fig.IgnoreFile(), fig.UseEnv(EnvPrefix))
}
