package export

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "today", want: "today.csv"},
		{in: "today.csv", want: "today.csv"},
		{in: "Today.CSV", want: "Today.CSV"},
		{in: "../../etc/passwd", want: "passwd.csv"},
		{in: "  spaced  ", want: "spaced.csv"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Filename(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFilename)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteCSV_UTF8(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, EncodingUTF8, []string{"A", "B"}, [][]string{{"1", "x,y"}})
	require.NoError(t, err)
	assert.Equal(t, "A,B\n1,\"x,y\"\n", buf.String())
}

func TestWriteCSV_BOM(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, EncodingUTF8BOM, []string{"A"}, nil))
	assert.Equal(t, "\ufeffA\n", buf.String())
}

func TestWriteCSV_ShiftJIS(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, EncodingSJIS, []string{"名前"}, [][]string{{"山田 太郎"}}))

	decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "名前\n山田 太郎\n", string(decoded))
	assert.NotEqual(t, "名前\n山田 太郎\n", buf.String())
}

func TestWriteCSV_UnknownEncoding(t *testing.T) {
	err := WriteCSV(&bytes.Buffer{}, "ebcdic", []string{"A"}, nil)
	assert.ErrorIs(t, err, ErrUnknownEncoding)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteFile(dir, "out", EncodingUTF8, []string{"A"}, [][]string{{"1"}})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.csv"), path)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A\n1\n", string(b))
}

func TestWriteFile_Unwritable(t *testing.T) {
	// ディレクトリの代わりに通常ファイルを置いて作成を失敗させる
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	_, err := WriteFile(blocker, "out", EncodingUTF8, []string{"A"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrWrite))
}
