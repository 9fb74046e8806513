package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/specialistvlad/cellgridgo/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, exit, err := Parse(nil, &bytes.Buffer{})
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Empty(t, cfg.ModelPaths)
		assert.Equal(t, app.DefaultSpace, cfg.Space)
		assert.Equal(t, 0, cfg.From)
		assert.Equal(t, 121, cfg.To)
		assert.Equal(t, 4, cfg.Workers)
		assert.Equal(t, "json", cfg.LogFormat)
	})

	t.Run("all flags", func(t *testing.T) {
		cfg, exit, err := Parse([]string{
			"-model", "a.hcl",
			"-space", "Line",
			"-cells", "value, shifted",
			"-cells", "other",
			"-total", "value",
			"-from", "2", "-to", "10",
			"-workers", "8", "-capacity", "50",
			"-metrics-port", "9090",
			"-log-format", "TEXT", "-log-level", "Debug",
			"models/",
		}, &bytes.Buffer{})
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, &app.Config{
			ModelPaths:  []string{"a.hcl", "models/"},
			Space:       "Line",
			Cells:       []string{"value", "shifted", "other"},
			Totals:      []string{"value"},
			From:        2,
			To:          10,
			Workers:     8,
			Capacity:    50,
			LogFormat:   "text",
			LogLevel:    "debug",
			MetricsPort: 9090,
		}, cfg)
	})

	t.Run("help", func(t *testing.T) {
		out := &bytes.Buffer{}
		cfg, exit, err := Parse([]string{"-h"}, out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
		assert.Contains(t, out.String(), "-metrics-port")
	})

	testCases := []struct {
		name string
		args []string
		want string
	}{
		{name: "unknown flag", args: []string{"-nope"}, want: "flag provided but not defined: -nope"},
		{name: "bad number", args: []string{"-from", "x"}, want: "invalid value"},
		{name: "bad log format", args: []string{"-log-format", "xml"}, want: "invalid log format"},
		{name: "bad log level", args: []string{"-log-level", "loud"}, want: "invalid log level"},
		{name: "reversed range", args: []string{"-from", "9", "-to", "3"}, want: "range end 3 is before its start 9"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, exit, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.False(t, exit)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}
