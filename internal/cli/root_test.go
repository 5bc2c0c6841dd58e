package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/relstore/internal/store"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "relstore", cmd.Use)
	assert.Contains(t, cmd.Long, "relations")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"schema", "validate", "normalize", "query", "insert", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "relstore.db", dbFlag.DefValue)

	connFlag := cmd.PersistentFlags().Lookup("connection")
	require.NotNil(t, connFlag)
	assert.Equal(t, store.DefaultConnection, connFlag.DefValue)
}

func TestSchemaCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	schemaCmd, _, err := cmd.Find([]string{"schema"})
	require.NoError(t, err)

	outputFlag := schemaCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	queryCmd, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	for _, name := range []string{"where", "with", "order-by", "limit", "offset", "first", "key"} {
		assert.NotNil(t, queryCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestInsertCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	insertCmd, _, err := cmd.Find([]string{"insert"})
	require.NoError(t, err)

	opFlag := insertCmd.Flags().Lookup("op")
	require.NotNil(t, opFlag)
	assert.Equal(t, "insert", opFlag.DefValue)

	for _, name := range []string{"data", "key", "where"} {
		assert.NotNil(t, insertCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestNormalizeCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	normalizeCmd, _, err := cmd.Find([]string{"normalize"})
	require.NoError(t, err)

	for _, name := range []string{"data", "key-prefix", "hydrate"} {
		assert.NotNil(t, normalizeCmd.Flags().Lookup(name), "flag %s", name)
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootOptions_Logger(t *testing.T) {
	t.Run("verbose logs debug", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := (&RootOptions{Verbose: true}).Logger(buf)
		assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

		logger.Debug("loading models")
		assert.Contains(t, buf.String(), "loading models")
	})

	t.Run("quiet logs warnings as JSON", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger := (&RootOptions{}).Logger(buf)
		assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})
}
