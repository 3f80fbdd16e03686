package strale

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionSet(t *testing.T) {
	set := NewExtensionSet(
		[]string{"want_a", "want_b", "req_a"},
		[]string{"req_a", "req_b"},
		[]string{"req_a", "want_b", "other"},
	)

	ok, missing := set.HasRequired()
	assert.False(t, ok)
	assert.Equal(t, []string{"req_b"}, missing)

	ok, missing = set.HasWanted()
	assert.False(t, ok)
	assert.Equal(t, []string{"want_a"}, missing)

	assert.Equal(t, []string{"req_a", "req_b", "want_b"}, set.GetExtensions())
	assert.True(t, set.Has("other"))
	assert.True(t, set.HasAll([]string{"req_a", "want_b"}))
	assert.False(t, set.HasAll([]string{"req_a", "want_a"}))
}

func TestNewLoggerWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	log, err := NewLogger(dir)
	require.NoError(t, err)

	log.Infof("hello %d", 1)
	log.Warnf("careful")
	log.Errorf("broken")
	require.NoError(t, log.Close())

	for file, want := range map[string]string{
		"info_log.txt":  "INFO: ",
		"warn_log.txt":  "WARNING: ",
		"error_log.txt": "ERROR: ",
	} {
		b, err := os.ReadFile(filepath.Join(dir, file))
		require.NoError(t, err)
		assert.Contains(t, string(b), want)
		assert.Contains(t, string(b), "extensions_test.go")
	}
}

func TestOwnershipViolationMessage(t *testing.T) {
	v := OwnershipViolation{Op: "finish frame twice", Slot: 1}
	assert.Equal(t, "frame ownership violation: finish frame twice on slot 1", v.Error())
}

// trapExit replaces the process exit for the duration of the test and
// returns the recorded exit codes.
func trapExit(t *testing.T) *[]int {
	t.Helper()
	var codes []int
	exit = func(code int) { codes = append(codes, code) }
	t.Cleanup(func() { exit = os.Exit })
	return &codes
}

func TestFatalRunsFinalizersThenExits(t *testing.T) {
	codes := trapExit(t)
	var buf bytes.Buffer
	fatalLog.SetOutput(&buf)
	defer fatalLog.SetOutput(os.Stderr)

	var order []string
	Fatal(errors.New("queue lost"), func() { order = append(order, "a") }, func() { order = append(order, "b") })
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []int{1}, *codes)
	assert.Contains(t, buf.String(), "FATAL: ")
	assert.Contains(t, buf.String(), "queue lost")
	assert.Contains(t, buf.String(), "extensions_test.go")

	Fatal(nil)
	assert.Len(t, *codes, 1, "nil is not fatal")
}

func TestDefaultFatalHandlerUsesLogger(t *testing.T) {
	codes := trapExit(t)
	logs := &logBuffer{}
	cfg := DefaultConfig()

	cfg.fatalHandler(logs.logger())(errors.New("present failed"))
	assert.Equal(t, []int{1}, *codes)
	assert.Contains(t, logs.err.String(), "FATAL: ")
	assert.Contains(t, logs.err.String(), "present failed")
}
