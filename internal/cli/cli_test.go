package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHandText = `HAND 1001 time=2024-05-01T20:15:00Z table=Rio max=6 btn=2 sb=50 bb=100
SEAT 1 alice 10000 hero
SEAT 2 bob 9500
BLIND alice small 50
BLIND bob big 100
ACTION preflop alice call 50
ACTION preflop bob check
BOARD 1 2h 7d 9c 4s Kc
WIN bob 200
END
`

func writeTestHandFile(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "hands.txt")
	require.NoError(t, os.WriteFile(path, []byte(testHandText), 0o644))
	return path
}

// execute runs the command tree against args and returns its combined output.
// The cli package keeps state in package variables, so these tests stay
// serial.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	SetVersion("1.2.3", "abc1234", "2024-05-01")

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "handvault 1.2.3")
	assert.Contains(t, out, "Commit: abc1234")
	assert.Contains(t, out, "Built:  2024-05-01")
}

func TestImportCommand(t *testing.T) {
	t.Setenv("HANDVAULT_DB", filepath.Join(t.TempDir(), "hands.db"))
	dir := t.TempDir()
	writeTestHandFile(t, dir)

	out, err := execute(t, "import", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "1 hands: 1 stored, 0 duplicates")
}

func TestImportCommandNoImportableFiles(t *testing.T) {
	t.Setenv("HANDVAULT_DB", filepath.Join(t.TempDir(), "hands.db"))

	_, err := execute(t, "import", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no importable files")
}

func TestImportCommandRequiresArgs(t *testing.T) {
	_, err := execute(t, "import")
	assert.Error(t, err)
}
