package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/markov/pkg/markov/internalerr"
)

// Loader reads the YAML configuration file
type Loader struct {
	Path   string
	Logger *zap.Logger
}

// fileConfig mirrors the YAML layout. merge is decoded separately so a bad
// directive cannot fail the whole file.
type fileConfig struct {
	Source StoreConfig `yaml:"source"`
	Model  StoreConfig `yaml:"model"`
	Log    LogConfig   `yaml:"log"`
	Merge  yaml.Node   `yaml:"merge"`
}

// Load reads the configuration. A missing or unparseable file yields
// Default(), and a missing or malformed merge directive only disables
// merging. Only a file that exists but cannot be read is an ErrInvalidConfig.
func (l *Loader) Load() (*Config, error) {
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := Default()

	if l.Path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Info("config file not found, using defaults", zap.String("path", l.Path))
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", internalerr.ErrInvalidConfig, l.Path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		logger.Warn("ignoring unparseable config file, using defaults", zap.String("path", l.Path), zap.Error(err))
		return cfg, nil
	}

	if fc.Source.Path != "" {
		cfg.Source.Path = fc.Source.Path
	}
	if fc.Model.Path != "" {
		cfg.Model.Path = fc.Model.Path
	}
	if fc.Log.Level != "" {
		cfg.Log.Level = fc.Log.Level
	}
	if fc.Log.Format != "" {
		cfg.Log.Format = fc.Log.Format
	}
	cfg.Merge = decodeMerge(&fc.Merge, logger)

	return cfg, nil
}

func decodeMerge(node *yaml.Node, logger *zap.Logger) *MergeDirective {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind == yaml.ScalarNode && (node.Tag == "!!null" || node.Value == "") {
		return nil
	}
	var d MergeDirective
	if err := node.Decode(&d); err != nil {
		logger.Warn("ignoring malformed merge directive", zap.Error(err))
		return nil
	}
	return &d
}
