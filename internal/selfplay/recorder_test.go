package selfplay

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")

	rec, err := NewRecorder(path)
	require.NoError(t, err)

	require.NoError(t, rec.Record("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 15))
	require.NoError(t, rec.Record("8/8/8/4k3/8/4K3/4P3/8 w - - 0 1", -240))
	require.NoError(t, rec.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var samples []Sample
	for scanner.Scan() {
		var s Sample
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &s))
		samples = append(samples, s)
	}

	require.Len(t, samples, 2)
	require.Equal(t, 15, samples[0].Score)
	require.Equal(t, -240, samples[1].Score)
}

func TestRecorderAppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.jsonl")

	rec1, err := NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec1.Record("fen-one", 1))
	require.NoError(t, rec1.Close())

	rec2, err := NewRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec2.Record("fen-two", 2))
	require.NoError(t, rec2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines int
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	require.Equal(t, 2, lines)
}
