package config

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSourcePath = "sourceData.db"
	DefaultModelPath  = "markovData.db"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "json"
)

// Config is the run configuration
type Config struct {
	Source StoreConfig
	Model  StoreConfig
	Log    LogConfig

	// Merge is nil unless a well-formed merge directive was configured.
	Merge *MergeDirective
}

// StoreConfig locates a SQLite database
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig selects the logger level and encoding
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MergeDirective pools the messages of Source into Target when Target is compiled.
//
// Accepted YAML forms:
//
//	merge: {target: 111, source: 222}
//	merge: "111=222"
type MergeDirective struct {
	Target int64 `yaml:"target"`
	Source int64 `yaml:"source"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Source: StoreConfig{Path: DefaultSourcePath},
		Model:  StoreConfig{Path: DefaultModelPath},
		Log:    LogConfig{Level: DefaultLogLevel, Format: DefaultLogFormat},
	}
}

// SourceFor returns the user whose messages are pooled into userID, if any.
// It is safe to call on a nil directive.
func (m *MergeDirective) SourceFor(userID int64) (int64, bool) {
	if m == nil || m.Target != userID {
		return 0, false
	}
	return m.Source, true
}

// UnmarshalYAML accepts either a mapping or a "target=source" scalar.
func (m *MergeDirective) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		d, err := ParseMergePair(value.Value)
		if err != nil {
			return err
		}
		*m = d
		return nil
	case yaml.MappingNode:
		var raw struct {
			Target *int64 `yaml:"target"`
			Source *int64 `yaml:"source"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		if raw.Target == nil || raw.Source == nil {
			return fmt.Errorf("merge: both target and source are required")
		}
		d := MergeDirective{Target: *raw.Target, Source: *raw.Source}
		if err := d.validate(); err != nil {
			return err
		}
		*m = d
		return nil
	default:
		return fmt.Errorf("merge: expected mapping or \"target=source\", got %s", kindName(value.Kind))
	}
}

// ParseMergePair parses "target=source".
func ParseMergePair(s string) (MergeDirective, error) {
	parts := strings.Split(strings.TrimSpace(s), "=")
	if len(parts) != 2 {
		return MergeDirective{}, fmt.Errorf("merge: %q is not of the form target=source", s)
	}
	target, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil {
		return MergeDirective{}, fmt.Errorf("merge: target: %w", err)
	}
	source, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return MergeDirective{}, fmt.Errorf("merge: source: %w", err)
	}
	d := MergeDirective{Target: target, Source: source}
	if err := d.validate(); err != nil {
		return MergeDirective{}, err
	}
	return d, nil
}

func (m MergeDirective) validate() error {
	if m.Target == m.Source {
		return fmt.Errorf("merge: target and source are both %d", m.Target)
	}
	return nil
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	case yaml.DocumentNode:
		return "document"
	default:
		return "unknown node"
	}
}
