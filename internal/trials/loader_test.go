package trials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `Correct,ReactionTime,ObjShowTime,Distance
True,1000,800,5
False,1100,800,5
True,2200,800,10
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParticipantID(t *testing.T) {
	cases := []struct {
		name string
		sep  string
		want string
	}{
		{"P01-vr-scale.csv", "-", "P01"},
		{"P01.csv", "-", "P01"},
		{"-lead.csv", "-", ""},
		{"S3_session.csv", "_", "S3"},
		{"S3_session.csv", "", "S3_session"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParticipantID(tc.name, tc.sep), tc.name)
	}
}

func TestLoadDirOrdersAndFilters(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "P02-run.csv", sampleLog)
	writeFile(t, dir, "P01-run.csv", sampleLog)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755))

	participants, err := LoadDir(dir, DefaultInput())
	require.NoError(t, err)
	require.Len(t, participants, 2)
	assert.Equal(t, "P01", participants[0].ID)
	assert.Equal(t, "P01-run.csv", participants[0].File)
	assert.Equal(t, "P02", participants[1].ID)

	trials := participants[0].Trials
	require.Len(t, trials, 3)
	assert.True(t, trials[0].Correct)
	assert.False(t, trials[1].Correct)
	assert.Equal(t, "False", trials[1].CorrectRaw)
	assert.Equal(t, 1000.0, trials[0].ReactionTime)
	assert.Equal(t, 800.0, trials[0].OnsetTime)
	assert.Equal(t, 200.0, trials[0].Elapsed())
	assert.Equal(t, 10.0, trials[2].Level)
	assert.Equal(t, "10", trials[2].LevelLabel)
	assert.Equal(t, 3, trials[2].Row)
}

func TestCorrectSentinelIsExact(t *testing.T) {
	in := DefaultInput()
	body := "Correct,ReactionTime,ObjShowTime,Distance\ntrue,1,0,1\nTRUE,1,0,1\n True ,1,0,1\n"
	trials, err := ReadTrials(strings.NewReader(body), "x.csv", in)
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.False(t, trials[0].Correct)
	assert.False(t, trials[1].Correct)
	assert.True(t, trials[2].Correct, "surrounding whitespace is trimmed")

	in.CorrectValue = "true"
	trials, err = ReadTrials(strings.NewReader(body), "x.csv", in)
	require.NoError(t, err)
	assert.True(t, trials[0].Correct)
}

func TestLoadDirErrors(t *testing.T) {
	t.Run("missing dir", func(t *testing.T) {
		_, err := LoadDir(filepath.Join(t.TempDir(), "absent"), DefaultInput())
		require.ErrorIs(t, err, ErrInputDir)
	})
	t.Run("no files", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "readme.md", "x")
		_, err := LoadDir(dir, DefaultInput())
		require.ErrorIs(t, err, ErrNoInputFiles)
	})
	t.Run("missing column", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "P1-a.csv", "Correct,ReactionTime,Distance\nTrue,1,2\n")
		_, err := LoadDir(dir, DefaultInput())
		require.ErrorIs(t, err, ErrMissingColumn)
		var le *LoadError
		require.True(t, errors.As(err, &le))
		assert.Equal(t, "ObjShowTime", le.Column)
		assert.Equal(t, "P1-a.csv", le.File)
	})
	t.Run("non numeric", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "P1-a.csv", "Correct,ReactionTime,ObjShowTime,Distance\nTrue,1,2,3\nTrue,abc,2,3\n")
		_, err := LoadDir(dir, DefaultInput())
		require.ErrorIs(t, err, ErrNonNumeric)
		assert.Contains(t, err.Error(), "row 2")
		assert.Contains(t, err.Error(), `"ReactionTime"`)
	})
	t.Run("nan rejected", func(t *testing.T) {
		_, err := ReadTrials(strings.NewReader("Correct,ReactionTime,ObjShowTime,Distance\nTrue,NaN,2,3\n"), "x.csv", DefaultInput())
		require.ErrorIs(t, err, ErrNonNumeric)
	})
	t.Run("empty file", func(t *testing.T) {
		_, err := ReadTrials(strings.NewReader(""), "x.csv", DefaultInput())
		require.ErrorIs(t, err, ErrMalformedCSV)
	})
	t.Run("bad quoting", func(t *testing.T) {
		_, err := ReadTrials(strings.NewReader("Correct,ReactionTime,ObjShowTime,Distance\n\"True,1,2,3\n"), "x.csv", DefaultInput())
		require.ErrorIs(t, err, ErrMalformedCSV)
	})
}

func TestReadTrialsHeaderWithBOMAndExtraColumns(t *testing.T) {
	body := "\ufeffTrial,Correct, ReactionTime ,ObjShowTime,Distance,Notes\n1,True,900,500,2.5,ok\n"
	trials, err := ReadTrials(strings.NewReader(body), "x.csv", DefaultInput())
	require.NoError(t, err)
	require.Len(t, trials, 1)
	assert.Equal(t, 900.0, trials[0].ReactionTime)
	assert.Equal(t, 2.5, trials[0].Level)
}
