// Package config loads lexdb workspace configuration from YAML or HCL.
package config

import (
	"bytes"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatTree = "tree"
)

// Config describes which files make up a workspace and how results are
// reported.
type Config struct {
	Sources  []string `yaml:"sources" hcl:"sources,optional"`
	Exclude  []string `yaml:"exclude,omitempty" hcl:"exclude,optional"`
	LogLevel string   `yaml:"log_level,omitempty" hcl:"log_level,optional"`
	Format   string   `yaml:"format,omitempty" hcl:"format,optional"`
}

func Default() *Config {
	return &Config{
		Sources:  []string{"**/*.dada"},
		LogLevel: zerolog.InfoLevel.String(),
		Format:   FormatJSON,
	}
}

// Load reads the config at path on fs. Files ending in .yaml or .yml are
// YAML, anything else is HCL. Fields the file leaves out keep their Default
// values.
func Load(fs afero.Fs, path string) (*Config, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	cfg := Default()

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
	default:
		file, diags := hclparse.NewParser().ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, errors.Errorf("parsing HCL: %s", diags.Error())
		}

		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{
				"format": cty.ObjectVal(map[string]cty.Value{
					"json": cty.StringVal(FormatJSON),
					"tree": cty.StringVal(FormatTree),
				}),
			},
		}
		if diags := gohcl.DecodeBody(file.Body, ctx, cfg); diags.HasErrors() {
			return nil, errors.Errorf("decoding HCL: %s", diags.Error())
		}
	}

	return cfg, nil
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var err error

	if len(c.Sources) == 0 {
		err = multierr.Append(err, errors.New("no source patterns"))
	}
	for _, pattern := range slices.Concat(c.Sources, c.Exclude) {
		if !doublestar.ValidatePattern(pattern) {
			err = multierr.Append(err, errors.Errorf("invalid pattern %q", pattern))
		}
	}

	if _, lerr := zerolog.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, errors.Errorf("invalid log level %q: %w", c.LogLevel, lerr))
	}

	if c.Format != FormatJSON && c.Format != FormatTree {
		err = multierr.Append(err, errors.Errorf("invalid format %q, want %q or %q", c.Format, FormatJSON, FormatTree))
	}

	return err
}

// Level is the parsed LogLevel. Call Validate first.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
