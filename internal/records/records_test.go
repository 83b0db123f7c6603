package records

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func TestFormatFor(t *testing.T) {
	f, err := FormatFor("students.CSV")
	require.NoError(t, err)
	assert.Equal(t, CSV, f)

	f, err = FormatFor("/tmp/roster.json")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)

	_, err = FormatFor("roster.xlsx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = FormatFor("noext")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestReadFile_CSV(t *testing.T) {
	path := writeTemp(t, "s.csv", []byte("email, name\na@x.com,Ann\nb@x.com\n"))

	recs, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"email": "a@x.com", "name": "Ann"},
		{"email": "b@x.com"},
	}, recs)
}

func TestReadFile_CSVHeaderOnly(t *testing.T) {
	path := writeTemp(t, "s.csv", []byte("email\n"))

	recs, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestReadFile_CSVWithUTF8BOM(t *testing.T) {
	path := writeTemp(t, "s.csv", append([]byte("\xef\xbb\xbf"), []byte("email\na@x.com\n")...))

	recs, err := ReadFile(path, "")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a@x.com", recs[0]["email"])
}

func TestReadFile_UTF16WithBOM(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	data, err := enc.Bytes([]byte("email,name\nz@x.com,Зоя\n"))
	require.NoError(t, err)

	path := writeTemp(t, "s.csv", data)

	// The BOM wins over the declared label.
	recs, err := ReadFile(path, "utf-8")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Зоя", recs[0]["name"])
}

func TestReadFile_Windows1251(t *testing.T) {
	data, err := charmap.Windows1251.NewEncoder().Bytes([]byte("email,name\ni@x.com,Иван\n"))
	require.NoError(t, err)

	path := writeTemp(t, "s.csv", data)

	recs, err := ReadFile(path, "windows-1251")
	require.NoError(t, err)
	assert.Equal(t, "Иван", recs[0]["name"])
}

func TestReadFile_UnknownEncoding(t *testing.T) {
	path := writeTemp(t, "s.csv", []byte("email\n"))

	_, err := ReadFile(path, "klingon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown encoding")
}

func TestReadFile_JSON(t *testing.T) {
	path := writeTemp(t, "s.json", []byte(`[
		{"email":"a@x.com","age":17,"active":true,"nick":null},
		{"Email":"b@x.com","tags":["x","y"]},
		{"name":"no-email"}
	]`))

	recs, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, []Record{
		{"email": "a@x.com", "age": "17", "active": "true"},
		{"Email": "b@x.com", "tags": `["x","y"]`},
		{"name": "no-email"},
	}, recs)
}

func TestReadFile_JSONNotAnArray(t *testing.T) {
	path := writeTemp(t, "s.json", []byte(`{"email":"a@x.com"}`))

	_, err := ReadFile(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "array of objects")
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.csv"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadFile_Unsupported(t *testing.T) {
	path := writeTemp(t, "s.txt", []byte("a@x.com"))

	_, err := ReadFile(path, "")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWriteFile_CSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	recs := []Record{
		{"email": "a@x.com", "full_name": "Ann, Jr."},
		{"email": "b@x.com", "full_name": "Bo"},
	}

	require.NoError(t, WriteFile(path, []string{"email", "full_name"}, recs))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "email,full_name\na@x.com,\"Ann, Jr.\"\nb@x.com,Bo\n", string(raw))

	back, err := ReadFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, recs, back)
}

func TestWriteFile_JSONKeepsColumnOrderAndUnicode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	require.NoError(t, WriteFile(path, []string{"user_id", "email"}, []Record{
		{"email": "ж@x.com", "user_id": "1"},
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"user_id\": \"1\",\n        \"email\": \"ж@x.com\"\n    }\n]\n", string(raw))
}

func TestWriteFile_NoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	require.ErrorIs(t, WriteFile(path, nil, nil), ErrNoData)

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteFile_DefaultColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, WriteFile(path, nil, []Record{{"b": "2"}, {"a": "1"}}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "a,b\n"))
}

func TestRead_FromReader(t *testing.T) {
	recs, err := Read(bytes.NewBufferString("email\nq@x.com\n"), CSV, "")
	require.NoError(t, err)
	assert.Equal(t, []Record{{"email": "q@x.com"}}, recs)
}
