package members

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Encoder: 識別子から PNG を作る（codec.Codec）
type Encoder interface {
	EncodePNG(identifier string) ([]byte, error)
}

// Artifacts: 会員ごとの QR コード画像 <識別子>.png を管理する
type Artifacts struct {
	dir string
	enc Encoder
}

func NewArtifacts(dir string, enc Encoder) *Artifacts {
	return &Artifacts{dir: dir, enc: enc}
}

// % 自体もエスケープするので、異なる識別子が同じファイル名になることはない
var fileNameReplacer = strings.NewReplacer("%", "%25", "/", "%2F", `\`, "%5C", "\x00", "%00")

// FileName: 識別子から決まるファイル名。区切り文字だけパーセントエスケープする
func FileName(identifier string) string {
	return fileNameReplacer.Replace(identifier) + ".png"
}

func (a *Artifacts) Path(identifier string) string {
	return filepath.Join(a.dir, FileName(identifier))
}

// Write: 一時ファイルに書いてから rename する
func (a *Artifacts) Write(identifier string) (string, error) {
	png, err := a.enc.EncodePNG(identifier)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("artifact dir: %w", err)
	}

	path := a.Path(identifier)
	tmp, err := os.CreateTemp(a.dir, ".qr-*")
	if err != nil {
		return "", fmt.Errorf("artifact temp: %w", err)
	}
	if _, err := tmp.Write(png); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("artifact rename: %w", err)
	}
	return path, nil
}

// Remove: 無ければ何もしない
func (a *Artifacts) Remove(identifier string) error {
	err := os.Remove(a.Path(identifier))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (a *Artifacts) Read(identifier string) ([]byte, error) {
	return os.ReadFile(a.Path(identifier))
}
