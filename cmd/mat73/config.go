package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/scigolib/mat73"
)

const (
	configFileName = "mat73"
	configFileType = "yaml"
	envPrefix      = "MAT73"

	cfgKeyLogLevel    = "log.level"
	cfgKeyLogFormat   = "log.format"
	cfgKeyStrategy    = "allocation.strategy"
	cfgKeyMinElements = "allocation.min_elements"
	cfgKeyMaxDepth    = "max_depth"
)

// loadConfig reads mat73.yaml from the working directory or
// $XDG_CONFIG_HOME/mat73, then MAT73_* environment variables. An explicit
// path must exist; a missing default file is not an error.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyLogFormat, "text")
	v.SetDefault(cfgKeyStrategy, "auto")
	v.SetDefault(cfgKeyMinElements, mat73.DefaultMinElements)
	v.SetDefault(cfgKeyMaxDepth, mat73.DefaultMaxDepth)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, "mat73"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// readerOptions turns the configuration into library options.
func readerOptions(v *viper.Viper) ([]mat73.Option, error) {
	strategy, err := mat73.ParseStrategy(v.GetString(cfgKeyStrategy))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfgKeyStrategy, err)
	}
	minElements := v.GetInt(cfgKeyMinElements)
	if minElements < 0 {
		return nil, fmt.Errorf("%s: must not be negative, got %d", cfgKeyMinElements, minElements)
	}
	return []mat73.Option{
		mat73.WithMaxDepth(v.GetInt(cfgKeyMaxDepth)),
		mat73.WithAllocationPolicy(
			mat73.AllocationStrategy(strategy),
			mat73.AllocationMinElements(minElements),
		),
	}, nil
}
