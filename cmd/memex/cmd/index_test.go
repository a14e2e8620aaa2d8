package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmdRunsOneOfflinePassAgainstEmptyRoot(t *testing.T) {
	root := t.TempDir()

	cmd := newIndexCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	rootFlag = root
	modelFlag = ""
	t.Cleanup(func() { rootFlag = ""; modelFlag = "" })
	cmd.SetArgs([]string{"--offline"})

	require.NoError(t, cmd.Execute())

	_, err := filepath.Glob(filepath.Join(root, "index", "*"))
	assert.NoError(t, err)
}

func TestAddRecursiveSkipsMissingRoot(t *testing.T) {
	root := t.TempDir()
	missing := filepath.Join(root, "does-not-exist")

	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, addRecursive(w, missing))
}
