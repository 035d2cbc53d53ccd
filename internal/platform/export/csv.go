// Package export は CSV 出力の共通処理（文字コード変換・出力先ファイル名の正規化）をまとめる。
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	EncodingUTF8    = "utf-8"
	EncodingUTF8BOM = "utf-8-bom" // Excel でそのまま開ける
	EncodingSJIS    = "shift_jis" // Windows の「ANSI（CP932）」相当
)

var (
	ErrWrite           = errors.New("export destination not writable")
	ErrInvalidFilename = errors.New("invalid export filename")
	ErrUnknownEncoding = errors.New("unknown export encoding")
)

func encoderFor(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8:
		return nil, nil
	case EncodingUTF8BOM:
		return unicode.UTF8BOM, nil
	case EncodingSJIS, "sjis", "cp932":
		return japanese.ShiftJIS, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEncoding, name)
	}
}

// WriteCSV: header と rows を指定文字コードで w に書き出す
func WriteCSV(w io.Writer, enc string, header []string, rows [][]string) error {
	e, err := encoderFor(enc)
	if err != nil {
		return err
	}
	var tw io.WriteCloser
	if e != nil {
		tw = transform.NewWriter(w, e.NewEncoder())
		w = tw
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	if tw != nil {
		return tw.Close()
	}
	return nil
}

// Filename: 操作者が指定した名前をディレクトリ外に出ない .csv ファイル名にする
func Filename(name string) (string, error) {
	name = strings.TrimSpace(name)
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "" || name == "." || name == "/" || name == string(filepath.Separator) {
		return "", ErrInvalidFilename
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		name += ".csv"
	}
	return name, nil
}

// WriteFile: dir/name に CSV を作成する。作成・書き込みの失敗は ErrWrite で包む
func WriteFile(dir, name, enc string, header []string, rows [][]string) (string, error) {
	fn, err := Filename(name)
	if err != nil {
		return "", err
	}
	if _, err := encoderFor(enc); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	path := filepath.Join(dir, fn)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := WriteCSV(f, enc, header, rows); err != nil {
		f.Close()
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return path, nil
}
