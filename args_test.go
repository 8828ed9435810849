package main

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetArgs(t *testing.T) {
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"chatd"}
	args, err := getArgs()
	require.NoError(t, err)
	assert.Equal(t, "", args.ConfigFile)

	os.Args = []string{"chatd", "-configpath", "chatd.conf"}
	args, err = getArgs()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(args.ConfigFile, "chatd.conf"))

	// The shorthand flag works too.
	os.Args = []string{"chatd", "-cp", "chatd.conf"}
	args, err = getArgs()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(args.ConfigFile, "chatd.conf"))

	os.Args = []string{"chatd", "stray"}
	_, err = getArgs()
	assert.Error(t, err)
}
