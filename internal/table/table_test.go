package table

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePadsAndTruncatesRows(t *testing.T) {
	input := "\ufeffquestion,question_context\n" +
		"What is Pumas?,\"multi\nline, context\"\n" +
		"short\n" +
		"a,b,extra\n"

	tbl, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	want := [][]string{
		{"What is Pumas?", "multi\nline, context"},
		{"short", ""},
		{"a", "b"},
	}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"question", "question_context"}, tbl.Header)
	assert.Equal(t, 1, tbl.ColumnIndex("question_context"))
	assert.Equal(t, -1, tbl.ColumnIndex("missing"))
}

func TestColumn(t *testing.T) {
	tbl := New([]string{"Question", "gpt-4o"})
	tbl.Append([]string{"q1", "a1"})
	tbl.Append([]string{"q2"})

	col, err := tbl.Column("gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", ""}, col)

	_, err = tbl.Column("claude")
	assert.ErrorContains(t, err, `column "claude" not found`)
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	assert.ErrorContains(t, err, "missing header row")
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "multillm.csv")

	w, err := Create(path, []string{"Question", "m1", "m2"})
	require.NoError(t, err)
	require.NoError(t, w.Write([]string{"q1", "answer, with comma", ""}))

	// Rows are flushed as they are written.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"answer, with comma"`)

	require.NoError(t, w.Write([]string{"q2"}))
	require.NoError(t, w.Close())

	tbl, err := Read(path)
	require.NoError(t, err)
	want := [][]string{{"q1", "answer, with comma", ""}, {"q2", "", ""}}
	if diff := cmp.Diff(want, tbl.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTableWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.csv")
	tbl := New([]string{"a", "b"})
	tbl.Append([]string{"1", "2"})
	require.NoError(t, tbl.Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
