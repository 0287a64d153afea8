package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against a fresh working directory and
// returns what it wrote to stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetIn(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// resetFlags restores every flag in the tree to its default, since cobra
// keeps parsed values between Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// withTempStore points the store at a temp sqlite file and isolates the
// test from any config.yaml or .env in the package directory.
func withTempStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "leadscan.db")
	t.Setenv("LEADSCAN_STORE_PATH", path)
	t.Setenv("LEADSCAN_LOG_LEVEL", "error")
	return path
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"identity", "submit", "scan", "queue", "history", "status", "watch", "serve", "config", "appscript"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "leadscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	flag := rootCmd.PersistentFlags().Lookup("offline")
	require.NotNil(t, flag)
	assert.Equal(t, "false", flag.DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestScanCommand_Flags(t *testing.T) {
	for _, name := range []string{"image", "yes", "name", "company", "notes", "email", "phone", "rating", "product"} {
		assert.NotNil(t, scanCmd.Flags().Lookup(name), "scan should have --%s flag", name)
	}
	assert.Equal(t, "y", scanCmd.Flags().Lookup("yes").Shorthand)
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyExportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "leads.xlsx", flag.DefValue)
}
