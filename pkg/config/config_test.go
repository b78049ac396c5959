package config_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/lexdb/pkg/config"
	"go.uber.org/multierr"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		config      string
		expectError bool
		want        *config.Config
	}{
		{
			name: "yaml",
			path: "lexdb.yaml",
			config: `
sources:
  - "src/**/*.dada"
exclude:
  - "src/vendor/**"
log_level: debug
format: tree
`,
			want: &config.Config{
				Sources:  []string{"src/**/*.dada"},
				Exclude:  []string{"src/vendor/**"},
				LogLevel: "debug",
				Format:   "tree",
			},
		},
		{
			name:   "yaml keeps defaults",
			path:   "lexdb.yml",
			config: "exclude: [\"tmp/**\"]\n",
			want: &config.Config{
				Sources:  []string{"**/*.dada"},
				Exclude:  []string{"tmp/**"},
				LogLevel: "info",
				Format:   "json",
			},
		},
		{
			name:        "yaml unknown field",
			path:        "lexdb.yaml",
			config:      "sourcez: [\"a\"]\n",
			expectError: true,
		},
		{
			name: "hcl",
			path: "lexdb.hcl",
			config: `
sources   = ["lib/**/*.dada", "bin/*.dada"]
log_level = "warn"
format    = format.tree
`,
			want: &config.Config{
				Sources:  []string{"lib/**/*.dada", "bin/*.dada"},
				LogLevel: "warn",
				Format:   "tree",
			},
		},
		{
			name:        "hcl syntax error",
			path:        "lexdb.hcl",
			config:      `sources = [`,
			expectError: true,
		},
		{
			name:        "hcl unknown attribute",
			path:        "lexdb.hcl",
			config:      `colour = "red"`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, afero.WriteFile(fs, tt.path, []byte(tt.config), 0o644))

			cfg, err := config.Load(fs, tt.path)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(afero.NewMemMapFs(), "nope.yaml")
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	require.NoError(t, config.Default().Validate())

	cfg := &config.Config{
		Sources:  []string{"src/[", "ok/**"},
		Exclude:  []string{"{a,b"},
		LogLevel: "loud",
		Format:   "xml",
	}
	err := cfg.Validate()
	require.Error(t, err)

	errs := multierr.Errors(err)
	assert.Len(t, errs, 4, "every problem is reported")
	assert.Contains(t, err.Error(), `"src/["`)
	assert.Contains(t, err.Error(), `"{a,b"`)
	assert.Contains(t, err.Error(), `"loud"`)
	assert.Contains(t, err.Error(), `"xml"`)

	empty := config.Default()
	empty.Sources = nil
	assert.Len(t, multierr.Errors(empty.Validate()), 1)
}

func TestLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "trace"
	assert.Equal(t, "trace", cfg.Level().String())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, "info", cfg.Level().String())
}
