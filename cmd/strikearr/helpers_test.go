package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type cliEnv struct {
	baseDir    string
	configPath string
	ledgerPath string
}

// setupCLIEnv writes a config rooted in a temp dir. No daemon runs, so every
// ledger command goes through the direct store.
func setupCLIEnv(t *testing.T, extra string) *cliEnv {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))

	env := &cliEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		ledgerPath: filepath.Join(base, "state", "ledger.db"),
	}
	content := fmt.Sprintf(`[paths]
state_dir = %q
log_dir = %q

[ledger]
path = %q

[block_rules]
mode = "blacklist"
patterns = ["*.exe", "regex:^sample"]

[[instances]]
name = "sonarr"
service_type = "sonarr"
base_url = "http://127.0.0.1:8989"
api_key = "test"
`, filepath.Join(base, "state"), filepath.Join(base, "logs"), env.ledgerPath)
	content += extra
	require.NoError(t, os.WriteFile(env.configPath, []byte(content), 0o644))
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n--- output ---\n%s", needle, haystack)
	}
}
