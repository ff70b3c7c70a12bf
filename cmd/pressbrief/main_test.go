package main

import (
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_setupLog(t *testing.T) {
	// exercise both branches, no output assertions
	setupLog(false, false)
	setupLog(true, true, "secret-key", "")
}

func TestOpts_Defaults(t *testing.T) {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	_, err := parser.ParseArgs([]string{})
	require.NoError(t, err)

	assert.Equal(t, "config.yml", opts.Config)
	assert.False(t, opts.Debug)
	assert.False(t, opts.Version)
}

func TestOpts_Parse(t *testing.T) {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	_, err := parser.ParseArgs([]string{"--config", "custom.yml", "--dbg", "--no-color"})
	require.NoError(t, err)

	assert.Equal(t, "custom.yml", opts.Config)
	assert.True(t, opts.Debug)
	assert.True(t, opts.NoColor)
}
