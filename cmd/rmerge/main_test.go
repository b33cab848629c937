package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rmerge/internal/cli"
)

func TestRun_ExitCodes(t *testing.T) {
	db := filepath.Join(t.TempDir(), "rmerge.db")

	assert.Equal(t, cli.ExitSuccess, run([]string{"recipient", "list", "--db", db}))
	assert.Equal(t, cli.ExitFailure, run([]string{"local", "show", "--db", db}))
	assert.Equal(t, cli.ExitCommandError, run([]string{"merge", "directory", "--db", db, "--service-id", "aaaaaaaa-0000-4000-8000-000000000001"}))
}
