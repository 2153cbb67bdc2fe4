//go:build blackbox

package main_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bin string

func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "candlestream-blackbox-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmp)

	bin = filepath.Join(tmp, "candlestream")

	// Build the binary once for all tests.
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

func run(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "args: %v\noutput:\n%s", args, out)
	return string(out)
}

func TestConfigInitValidate(t *testing.T) {
	dir := t.TempDir()

	out := run(t, dir, "config", "init", "-o", "candlestream.yaml")
	assert.Contains(t, out, "Created default configuration")

	out = run(t, dir, "config", "validate", "-f", "candlestream.yaml")
	assert.Contains(t, out, "Configuration valid")
	assert.Contains(t, out, "Source:      kafka")
}

func TestReplayCSV(t *testing.T) {
	dir := t.TempDir()
	rows := []string{
		"exchange,symbol,price,quantity,timestamp,sequence_id",
		"binance,BTCUSDT,100.00,1.0,1700000000000,1",
		"binance,BTCUSDT,101.50,0.5,1700000001000,2",
		"binance,BTCUSDT,-1,0.5,1700000001500,3",
		"binance,BTCUSDT,102.00,2.0,1700000002000,4",
	}
	path := filepath.Join(dir, "trades.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(rows, "\n")+"\n"), 0o644))

	out := run(t, dir, "replay", "-f", path, "--report")
	assert.Contains(t, out, "Batches:       1")
	assert.Contains(t, out, "Records:       4")
	assert.Contains(t, out, "Invalid:       1")
}

func TestVersion(t *testing.T) {
	out := run(t, t.TempDir(), "version")
	assert.Contains(t, out, "candlestream")
}
