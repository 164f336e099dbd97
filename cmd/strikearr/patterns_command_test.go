package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsTestExplainsDecisions(t *testing.T) {
	env := setupCLIEnv(t, "")

	out, _, err := runCLI(t, []string{"patterns", "test", "setup.exe", "Sample-Show.mkv", "Show.S01E01.mkv"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Rules: global (blacklist, 2 patterns)")
	requireContains(t, out, `blacklisted by "*.exe"`)
	requireContains(t, out, `blacklisted by "regex:^sample"`)
	requireContains(t, out, "matches no blacklist pattern")
}

func TestPatternsTestUsesInstanceRules(t *testing.T) {
	env := setupCLIEnv(t, `
[[instances]]
name = "radarr"
service_type = "radarr"
base_url = "http://127.0.0.1:7878"
api_key = "test"

[instances.block_rules]
mode = "whitelist"
patterns = ["*.mkv"]
`)

	out, _, err := runCLI(t, []string{"patterns", "test", "--instance", "radarr", "movie.mkv", "movie.exe"}, env.configPath)
	require.NoError(t, err)
	requireContains(t, out, "Rules: radarr (whitelist, 1 patterns)")

	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "movie.") {
			lines = append(lines, line)
		}
	}
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `whitelisted by "*.mkv"`)
	assert.Contains(t, lines[1], "yes")
	assert.Contains(t, lines[1], "matches no whitelist pattern")

	_, _, err = runCLI(t, []string{"patterns", "test", "--instance", "lidarr", "x"}, env.configPath)
	require.Error(t, err)
}

func TestTestNotifyWithoutChannelsFails(t *testing.T) {
	env := setupCLIEnv(t, "")
	_, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	require.Error(t, err)
}
