package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "database:\n  driver: sqlite\n  sqlite:\n    path: " + filepath.Join(dir, "publishers.db") + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	var out bytes.Buffer

	cmd := newRootCmd(log)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.Contains(t, out, "publishers dev")
	assert.Contains(t, out, "Git commit: unknown")
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestMigrateCommand(t *testing.T) {
	path := writeConfig(t)

	_, err := execute(t, "migrate", "-c", path)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(filepath.Dir(path), "publishers.db"))

	// Migrations are repeatable.
	_, err = execute(t, "migrate", "-c", path)
	require.NoError(t, err)
}

func TestMigrateMissingConfig(t *testing.T) {
	_, err := execute(t, "migrate", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPublishersCommands(t *testing.T) {
	path := writeConfig(t)

	log := logrus.New()
	log.SetOutput(io.Discard)

	var registered string

	err := withPublisherService(context.Background(), log, path, func(svc publisher.Service) error {
		p, err := svc.Register(context.Background(), publisher.RegisterRequest{
			CompanyName:         "Acme Media",
			WebsiteURL:          "https://acme.example",
			ContactEmail:        "jane@acme.example",
			ContactName:         "Jane Doe",
			IntegrationPlatform: "custom",
		})
		if err != nil {
			return err
		}

		registered = p.ID

		return nil
	})
	require.NoError(t, err)

	out, err := execute(t, "publishers", "list", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, registered)
	assert.Contains(t, out, "jane@acme.example")
	assert.Contains(t, out, "1 of 1 publishers")

	out, err = execute(t, "publishers", "rotate-key", registered, "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pk_live_")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "pk_live_"))

	_, err = execute(t, "publishers", "rotate-key", "no-such-publisher", "-c", path)
	assert.Error(t, err)

	_, err = execute(t, "publishers", "rotate-key", "-c", path)
	assert.Error(t, err)
}
