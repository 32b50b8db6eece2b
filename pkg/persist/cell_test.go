package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testState struct {
	Counter int               `json:"counter"`
	Labels  map[string]string `json:"labels,omitempty"`
}

func TestFileCellInitialValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	c, err := OpenFile(path, testState{Counter: 7}, JSONCodec[testState]{})
	require.NoError(t, err)

	assert.Equal(t, testState{Counter: 7}, c.Get())
}

func TestFileCellSetGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	c, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)

	want := testState{Counter: 42, Labels: map[string]string{"env": "test"}}
	require.NoError(t, c.Set(want))
	assert.Equal(t, want, c.Get())
}

func TestFileCellSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	c, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	require.NoError(t, c.Set(testState{Counter: 99}))

	reopened, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	assert.Equal(t, testState{Counter: 99}, reopened.Get())
}

func TestFileCellDiscardsStaleTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	c, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	require.NoError(t, c.Set(testState{Counter: 1}))

	// Simulate a crash mid-write: a temp artifact next to the target.
	stale := path + ".tmp123456"
	require.NoError(t, os.WriteFile(stale, []byte("garbage"), 0o644))

	reopened, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	assert.Equal(t, testState{Counter: 1}, reopened.Get())

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale temp file must be discarded")
}

func TestFileCellVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	env, err := json.Marshal(map[string]any{"version": 999, "data": testState{}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, env, 0o644))

	_, err = OpenFile(path, testState{}, JSONCodec[testState]{})
	assert.ErrorIs(t, err, ErrStateIncompatible)
}

func TestFileCellCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	assert.ErrorIs(t, err, ErrStateIncompatible)
}

func TestFileCellSetFailureKeepsValue(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	path := filepath.Join(dir, "state.json")

	c, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	require.NoError(t, c.Set(testState{Counter: 5}))

	// Pull the state directory out from under the cell so the temp file
	// cannot be created.
	require.NoError(t, os.RemoveAll(dir))

	err = c.Set(testState{Counter: 6})
	require.Error(t, err)

	var perr *PersistError
	assert.ErrorAs(t, err, &perr)
	assert.Equal(t, testState{Counter: 5}, c.Get(), "failed Set must not change the value")
}

func TestFileCellCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")

	c, err := OpenFile(path, testState{}, JSONCodec[testState]{})
	require.NoError(t, err)
	require.NoError(t, c.Set(testState{Counter: 3}))
}
