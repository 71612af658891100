package grouplasso

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "solver.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestNewDefaultConfigIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.8, cfg.Gamma)
	assert.Equal(t, 10, cfg.Reset)
	assert.False(t, cfg.IntegerMomentum)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
inner_iter: 250
thresh: 1.0e-8
gamma: 0.5
momentum: 2
reset: 25
integer_momentum: true
standardize: true
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 250, cfg.InnerIter)
	assert.Equal(t, 1e-8, cfg.Thresh)
	assert.Equal(t, 0.5, cfg.Gamma)
	assert.Equal(t, 2.0, cfg.Momentum)
	assert.Equal(t, 25, cfg.Reset)
	assert.True(t, cfg.IntegerMomentum)
	assert.True(t, cfg.Standardize)

	// Unset fields keep their defaults.
	def := NewDefaultConfig()
	assert.Equal(t, def.OuterIter, cfg.OuterIter)
	assert.Equal(t, def.OuterThresh, cfg.OuterThresh)
	assert.Equal(t, def.MaxBacktrack, cfg.MaxBacktrack)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "gamma: [1, 2"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "gamma: 1.5"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(c *Config)
		field string
	}{
		{"inner iterations", func(c *Config) { c.InnerIter = 0 }, "InnerIter"},
		{"outer iterations", func(c *Config) { c.OuterIter = -1 }, "OuterIter"},
		{"negative thresh", func(c *Config) { c.Thresh = -1e-3 }, "Thresh"},
		{"negative outer thresh", func(c *Config) { c.OuterThresh = -1 }, "OuterThresh"},
		{"gamma zero", func(c *Config) { c.Gamma = 0 }, "Gamma"},
		{"gamma one", func(c *Config) { c.Gamma = 1 }, "Gamma"},
		{"momentum zero", func(c *Config) { c.Momentum = 0 }, "Momentum"},
		{"reset zero", func(c *Config) { c.Reset = 0 }, "Reset"},
		{"backtrack cap", func(c *Config) { c.MaxBacktrack = 0 }, "MaxBacktrack"},
		{"log step", func(c *Config) { c.LogStep = 0 }, "LogStep"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.edit(cfg)
			err := cfg.Validate()
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.field, ie.Field)
		})
	}
}
