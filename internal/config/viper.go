package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. FORKRUN_SLEEP.
const EnvPrefix = "FORKRUN"

// NewViper returns a viper instance configured for FORKRUN_* environment
// variables and an optional config file.
//
// Search order when configFile is empty:
//   - $HOME/.forkrun/config.(yaml|yml|json|toml|...)
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if strings.TrimSpace(configFile) != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
		return v, nil
	}

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return v, nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(home, ".forkrun"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, err
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeySleep, DefaultSleep.String())
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyMaxThreads, 0)
	v.SetDefault(KeyGenerateTests, DefaultGenerateTestsHelper)
	v.SetDefault(KeyGenerateTestsArgs, []string{})
	v.SetDefault(KeyGenerateDeploy, DefaultGenerateDeployHelper)
	v.SetDefault(KeyGenerateDeployArgs, []string{})
}
