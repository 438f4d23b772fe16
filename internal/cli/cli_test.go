package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/ynput/ayonfixt/internal/ayonfake"
	"github.com/ynput/ayonfixt/internal/config"
	"github.com/ynput/ayonfixt/internal/credentials"
)

const testAPIKey = "cli-key"

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	configPath, verbose = "", false
	useCache = false
	loginServer, loginAPIKey, loginSkipVerify, logoutCache = "", "", false, false

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, serverURL string) string {
	t.Helper()
	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvAPIKey, "")
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	content := fmt.Sprintf("server_url: %s\napi_key: %s\nproject:\n  representations: 2\n", serverURL, testAPIKey)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "ayonfixt version dev\n", out)
}

func TestVersion_BuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.25.1",
		Main:      debug.Module{Path: "github.com/ynput/ayonfixt", Version: "v0.3.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		},
	}

	tests := []struct {
		name    string
		build   buildDetails
		verbose bool
		want    string
	}{
		{
			name:  "from build info",
			build: buildDetails{Version: "dev"},
			want:  "ayonfixt version v0.3.0 (commit: 0123456789ab, built: 2026-10-01T12:00:00Z)\n",
		},
		{
			name:    "ldflags win",
			build:   buildDetails{Version: "1.0.0", Commit: "abc", Date: "today"},
			verbose: true,
			want:    "ayonfixt version v1.0.0 (commit: abc, built: today)\ngo: go1.25.1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			tt.build.fill(info).write(&out, tt.verbose)
			assert.Equal(t, tt.want, out.String())
		})
	}

	var out bytes.Buffer
	buildDetails{Version: "dev"}.fill(&debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}).write(&out, true)
	assert.Equal(t, "ayonfixt version dev\n", out.String())
}

func TestFixturesAndHelpers(t *testing.T) {
	path := writeConfig(t, "http://localhost:5000")

	out, _, err := execute(t, "", "fixtures", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ayon_server_session")
	assert.Contains(t, out, "project ")
	assert.NotContains(t, out, "ayon_server_container")

	out, _, err = execute(t, "", "helpers", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, "create_representation\nreplace_string_in_file\nwait_for_event\nwait_for_server_restart\n", out)
}

func TestFixtures_BadConfig(t *testing.T) {
	_, _, err := execute(t, "", "fixtures", "-c", filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestCheck(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	out, _, err := execute(t, "", "check", "-c", writeConfig(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Connected to %s (AYON %s)\n", srv.URL, ayonfake.Version), out)
}

func TestCheck_WrongKey(t *testing.T) {
	srv := ayonfake.New("other")
	defer srv.Close()

	_, _, err := execute(t, "", "check", "-c", writeConfig(t, srv.URL))
	assert.ErrorContains(t, err, "401")
}

func TestProjectCreateAndDelete(t *testing.T) {
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	path := writeConfig(t, srv.URL)

	out, _, err := execute(t, "", "project", "create", "-c", path)
	require.NoError(t, err)
	names := srv.ProjectNames()
	require.Len(t, names, 1)
	assert.Contains(t, out, "project  "+names[0])
	assert.Equal(t, 2, strings.Count(out, "repr     "))
	assert.Equal(t, 1, strings.Count(out, "link     "))

	out, _, err = execute(t, "", "project", "delete", names[0], "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "Deleted project "+names[0]+"\n", out)
	assert.Empty(t, srv.ProjectNames())

	_, _, err = execute(t, "", "project", "delete", names[0], "-c", path)
	assert.ErrorContains(t, err, "failed to delete project")
}

func TestLoginLogout(t *testing.T) {
	keyring.MockInit()
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()
	path := writeConfig(t, srv.URL)

	out, _, err := execute(t, testAPIKey+"\n", "login", "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "Stored API key for "+srv.URL+"\n", out)

	stored, err := keyring.Get(credentials.KeyringService, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, stored)

	_, _, err = execute(t, "", "logout", "-c", path)
	require.NoError(t, err)
	_, err = keyring.Get(credentials.KeyringService, srv.URL)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}

func TestLogin_VerifiesKey(t *testing.T) {
	keyring.MockInit()
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	_, _, err := execute(t, "", "login", "--server", srv.URL, "--api-key", "wrong")
	require.Error(t, err)
	_, err = keyring.Get(credentials.KeyringService, srv.URL)
	assert.ErrorIs(t, err, keyring.ErrNotFound)

	_, _, err = execute(t, "", "login", "--server", srv.URL+"/", "--api-key", "wrong", "--skip-verify")
	require.NoError(t, err)
	stored, err := keyring.Get(credentials.KeyringService, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "wrong", stored)
}

func TestLogin_NoKey(t *testing.T) {
	keyring.MockInit()
	_, _, err := execute(t, "", "login", "--server", "http://localhost:5000", "--skip-verify")
	assert.ErrorContains(t, err, "failed to read API key")
}

func TestLogin_TrailingSlashServerURL(t *testing.T) {
	keyring.MockInit()
	srv := ayonfake.New(testAPIKey)
	defer srv.Close()

	t.Setenv(config.EnvServerURL, "")
	t.Setenv(config.EnvAPIKey, "")
	path := filepath.Join(t.TempDir(), config.DefaultFile)
	content := fmt.Sprintf("server_url: %s/\napi_key_source:\n  kind: keyring\n", srv.URL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, _, err := execute(t, "", "check", "-c", path)
	assert.ErrorContains(t, err, "ayonfixt login")

	_, _, err = execute(t, "", "login", "--server", srv.URL, "--api-key", testAPIKey)
	require.NoError(t, err)

	out, _, err := execute(t, "", "check", "-c", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Connected to")

	_, _, err = execute(t, "", "logout", "-c", path)
	require.NoError(t, err)
	_, err = keyring.Get(credentials.KeyringService, srv.URL)
	assert.ErrorIs(t, err, keyring.ErrNotFound)
}
