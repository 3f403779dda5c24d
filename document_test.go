package fieldmask

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fmerrors "github.com/tamirms/fieldmask/errors"
)

func TestParseDocument(t *testing.T) {
	tests := []struct {
		name  string
		data  string
		lines []string
		crlf  bool
		final bool
	}{
		{"lf with final newline", "a\nb\n", []string{"a", "b"}, false, true},
		{"lf without final newline", "a\nb", []string{"a", "b"}, false, false},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}, true, true},
		{"crlf without final newline", "a\r\nb", []string{"a", "b"}, true, false},
		{"crlf keeps trailing cr of last unterminated line", "a\r\nb\r", []string{"a", "b\r"}, true, false},
		{"lf file keeps embedded cr", "a\rx\nb\n", []string{"a\rx", "b"}, false, true},
		{"single unterminated line", "abc", []string{"abc"}, false, false},
		{"blank lines", "\n\n", []string{"", ""}, false, true},
		{"empty", "", nil, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.data), EncodingUTF8)
			require.NoError(t, err)
			assert.Equal(t, tt.lines, doc.Lines)
			assert.Equal(t, tt.crlf, doc.CRLF)
			assert.Equal(t, tt.final, doc.FinalNewline)
		})
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputs := []string{
		"01JohnDoe\n99Other\n",
		"01JohnDoe\r\n99Other\r\n",
		"01JohnDoe\n99Other",
		"no newline at all",
		"\n",
		"ÄÖÜ\nßé\n",
	}
	for i, in := range inputs {
		path := filepath.Join(dir, "in.txt")
		require.NoError(t, os.WriteFile(path, []byte(in), 0o644))

		doc, err := ReadDocument(path, EncodingUTF8)
		require.NoError(t, err, "input %d", i)

		outPath := filepath.Join(dir, "out.txt")
		res, err := WriteDocument(outPath, doc, EncodingUTF8)
		require.NoError(t, err, "input %d", i)

		got, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Equal(t, in, string(got), "input %d", i)
		assert.Equal(t, int64(len(in)), res.Bytes)
		assert.Equal(t, xxhash.Sum64(got), res.Checksum)
	}
}

// TestMixedLineEndings pins down that the first line decides the terminator
// for the whole document.
func TestMixedLineEndings(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		in    string
		lines []string
		crlf  bool
		want  string
	}{
		{"crlf first rewrites lf lines", "a\r\nb\nc\r\n", []string{"a", "b", "c"}, true, "a\r\nb\r\nc\r\n"},
		{"lf first keeps cr as data", "a\nb\r\nc\n", []string{"a", "b\r", "c"}, false, "a\nb\r\nc\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := ParseDocument([]byte(tt.in), EncodingUTF8)
			require.NoError(t, err)
			assert.Equal(t, tt.lines, doc.Lines)
			assert.Equal(t, tt.crlf, doc.CRLF)

			outPath := filepath.Join(dir, "out.txt")
			_, err = WriteDocument(outPath, doc, EncodingUTF8)
			require.NoError(t, err)
			got, err := os.ReadFile(outPath)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestReadDocumentErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadDocument(filepath.Join(dir, "missing.dat"), EncodingUTF8)
	assert.True(t, errors.Is(err, fmerrors.ErrInputNotFound))

	_, err = ReadDocument(dir, EncodingUTF8)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.dat")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	doc, err := ReadDocument(empty, EncodingUTF8)
	require.NoError(t, err)
	assert.Empty(t, doc.Lines)
}

func TestLatin1Document(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.dat")
	require.NoError(t, os.WriteFile(path, []byte("01\xc4\xd6\xdc|\n99M\xfcller\n"), 0o644))

	doc, err := ReadDocument(path, EncodingLatin1)
	require.NoError(t, err)
	assert.Equal(t, []string{"01ÄÖÜ|", "99Müller"}, doc.Lines)

	outPath := filepath.Join(dir, "out.dat")
	res, err := WriteDocument(outPath, doc, EncodingLatin1)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "01\xc4\xd6\xdc|\n99M\xfcller\n", string(got))
	assert.Equal(t, int64(len(got)), res.Bytes)
}

func TestWriteDocumentUnencodable(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "out.dat")

	_, err := WriteDocument(outPath, NewDocument([]string{"01abc", "02 costs 5€"}), EncodingLatin1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fmerrors.ErrUnencodable))

	_, statErr := os.Stat(outPath)
	assert.True(t, os.IsNotExist(statErr), "partial output must be removed")

	_, err = WriteDocument(outPath, NewDocument([]string{"01\xff"}), EncodingLatin1)
	assert.True(t, errors.Is(err, fmerrors.ErrUnencodable))
}

func TestWriteDocumentEmpty(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.dat")
	res, err := WriteDocument(outPath, &Document{}, EncodingUTF8)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Bytes)
	assert.Equal(t, xxhash.Sum64(nil), res.Checksum)

	info, err := os.Stat(outPath)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestWriteDocumentReplacesExisting(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.dat")
	require.NoError(t, os.WriteFile(outPath, []byte("a much longer previous content\n"), 0o644))

	_, err := WriteDocument(outPath, NewDocument([]string{"new"}), EncodingUTF8)
	require.NoError(t, err)

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "new\n", string(got))
}

func TestParseEncoding(t *testing.T) {
	for name, want := range map[string]Encoding{
		"":           EncodingUTF8,
		"utf-8":      EncodingUTF8,
		"UTF8":       EncodingUTF8,
		"latin-1":    EncodingLatin1,
		"ISO-8859-1": EncodingLatin1,
		"iso_8859_1": EncodingLatin1,
	} {
		got, err := ParseEncoding(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseEncoding("ebcdic")
	assert.True(t, errors.Is(err, fmerrors.ErrUnknownEncoding))
}
