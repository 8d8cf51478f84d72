package billingctl

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	rootCmd := newRootCmd()
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestRootHelpListsCommands(t *testing.T) {
	stdout, err := executeCLI(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, stdout, "accounts")
	assert.Contains(t, stdout, "refunds")
	assert.Contains(t, stdout, "apikeys")
	assert.Contains(t, stdout, "config")
}

func TestAccountsShowRequiresArg(t *testing.T) {
	_, err := executeCLI(t, "accounts", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestConfigInitWritesDefaultFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	stdout, err := executeCLI(t, "config", "init")
	require.NoError(t, err)

	path := filepath.Join(home, ".config", configDirName, configName+"."+configType)
	assert.Contains(t, stdout, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[database]")
	assert.Contains(t, string(data), defaultDSN)
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, err := executeCLI(t, "config", "init")
	require.NoError(t, err)

	_, err = executeCLI(t, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = executeCLI(t, "config", "init", "--force")
	require.NoError(t, err)
}

func TestResolveDSN(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	t.Run("flag wins", func(t *testing.T) {
		a := &app{dsnFlag: "postgres://flag"}
		dsn, err := a.resolveDSN()
		require.NoError(t, err)
		assert.Equal(t, "postgres://flag", dsn)
	})

	t.Run("default without config file", func(t *testing.T) {
		a := &app{}
		dsn, err := a.resolveDSN()
		require.NoError(t, err)
		assert.Equal(t, defaultDSN, dsn)
	})

	t.Run("reads config file", func(t *testing.T) {
		dir := filepath.Join(home, ".config", configDirName)
		require.NoError(t, os.MkdirAll(dir, 0o700))
		require.NoError(t, os.WriteFile(
			filepath.Join(dir, configName+"."+configType),
			[]byte("[database]\ndsn = \"postgres://fromfile\"\n"),
			0o600,
		))

		a := &app{}
		dsn, err := a.resolveDSN()
		require.NoError(t, err)
		assert.Equal(t, "postgres://fromfile", dsn)
	})
}
