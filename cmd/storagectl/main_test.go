package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresuchdata/tutorstore/internal/config"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	require.NoError(t, app.Run(append([]string{"storagectl"}, args...)))
	return out.String()
}

func TestFolderCommandsAgainstFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "namespace.json")
	base := []string{"--backend", "file", "--namespace-file", path}

	id := strings.TrimSpace(run(t, append(base, "mkdir", "Week 1")...))
	require.NotEmpty(t, id)

	run(t, append(base, "rename", id, "Week 2")...)

	listing := run(t, append(base, "ls")...)
	assert.Contains(t, listing, "Week 2")
	assert.Contains(t, listing, id)

	assert.Contains(t, run(t, append(base, "quota")...), "0 KB of 300 MB used (300 MiB free)")

	run(t, append(base, "rm", id)...)
	assert.NotContains(t, run(t, append(base, "ls")...), "Week 2")
}

func TestOpenRepository(t *testing.T) {
	cfg := &config.Config{Namespace: config.NamespaceConfig{Backend: "file", FilePath: filepath.Join(t.TempDir(), "ns.json")}}
	repo, closeFn, err := openRepository(context.Background(), cfg)
	require.NoError(t, err)
	assert.IsType(t, &repository.FileRepository{}, repo)
	assert.NoError(t, closeFn())

	cfg.Namespace.Backend = "ldap"
	_, _, err = openRepository(context.Background(), cfg)
	assert.ErrorContains(t, err, "unknown namespace backend")
}
