// Package codec は会員識別子と QR コード画像の相互変換を行う。
package codec

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/makiuchi-d/gozxing"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrcode "github.com/skip2/go-qrcode"
)

var ErrEmptyIdentifier = errors.New("identifier is empty")

type Codec struct {
	level    qrcode.RecoveryLevel
	modulePx int
}

// New: level は L/M/Q/H、modulePx は 1 モジュールあたりのピクセル数
func New(level string, modulePx int) (*Codec, error) {
	lv, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	if modulePx <= 0 {
		modulePx = 10
	}
	return &Codec{level: lv, modulePx: modulePx}, nil
}

func parseLevel(s string) (qrcode.RecoveryLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "L":
		return qrcode.Low, nil
	case "M":
		return qrcode.Medium, nil
	case "Q":
		return qrcode.High, nil
	case "H":
		return qrcode.Highest, nil
	default:
		return 0, fmt.Errorf("unknown error correction level: %q", s)
	}
}

func (c *Codec) symbol(identifier string) (*qrcode.QRCode, error) {
	if identifier == "" {
		return nil, ErrEmptyIdentifier
	}
	q, err := qrcode.New(identifier, c.level)
	if err != nil {
		return nil, fmt.Errorf("encode %q: %w", identifier, err)
	}
	return q, nil
}

// Encode: 同じ識別子からは常に同じ画像を作る（クワイエットゾーン付き）
func (c *Codec) Encode(identifier string) (image.Image, error) {
	q, err := c.symbol(identifier)
	if err != nil {
		return nil, err
	}
	// 負のサイズはモジュール単位の拡大率
	return q.Image(-c.modulePx), nil
}

func (c *Codec) EncodePNG(identifier string) ([]byte, error) {
	q, err := c.symbol(identifier)
	if err != nil {
		return nil, err
	}
	return q.PNG(-c.modulePx)
}

// Decode: フレーム内の QR コードをすべて読み取り、検出順に返す。
// コードが無い（または読めない）フレームは空スライスを返す。
func (c *Codec) Decode(frame image.Image) ([]string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(frame)
	if err != nil {
		return nil, fmt.Errorf("binarize frame: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}

	results, err := multiqr.NewQRCodeMultiReader().DecodeMultiple(bmp, hints)
	if err != nil && !isNoCode(err) {
		return nil, err
	}
	if len(results) == 0 {
		// 複数検出器が拾えない単独コードは通常のリーダで再試行
		res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
		if err != nil {
			if isNoCode(err) {
				return []string{}, nil
			}
			return nil, err
		}
		results = []*gozxing.Result{res}
	}

	out := make([]string, 0, len(results))
	for _, r := range results {
		if txt := r.GetText(); txt != "" {
			out = append(out, txt)
		}
	}
	return out, nil
}

// 未検出・チェックサム不一致・フォーマット不正は「このフレームにはコードが無い」扱い
func isNoCode(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}
