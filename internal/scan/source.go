package scan

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Camera: キャプチャ元を開く。開けなければエラー（セッションは始まらない）
type Camera interface {
	Open(ctx context.Context) (FrameSource, error)
}

// FrameSource: 開いたキャプチャ元。セッションが専有し、終了時に Close する
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
	Close() error
}

// ===== MJPEG (multipart/x-mixed-replace) =====

// MJPEGCamera: IP カメラや mjpg-streamer などの MJPEG ストリーム
type MJPEGCamera struct {
	URL    string
	Client *http.Client
	// レスポンスヘッダが届くまでの上限。0 なら defaultOpenTimeout
	OpenTimeout time.Duration
}

const defaultOpenTimeout = 10 * time.Second

// Open: ヘッダ受信までは OpenTimeout で打ち切る。ストリーム本体は ctx か Close で切れる
func (c *MJPEGCamera) Open(ctx context.Context) (FrameSource, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("mjpeg: url is empty")
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := c.OpenTimeout
	if timeout <= 0 {
		timeout = defaultOpenTimeout
	}

	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.URL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	timer := time.AfterFunc(timeout, cancel)
	resp, err := client.Do(req)
	if !timer.Stop() {
		if err == nil {
			resp.Body.Close()
		}
		cancel()
		return nil, fmt.Errorf("mjpeg: no response within %s", timeout)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("mjpeg: unexpected status %s", resp.Status)
	}
	mt, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mt, "multipart/") || params["boundary"] == "" {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("mjpeg: not a multipart stream: %q", resp.Header.Get("Content-Type"))
	}
	return &mjpegStream{
		body:   resp.Body,
		mr:     multipart.NewReader(resp.Body, params["boundary"]),
		cancel: cancel,
	}, nil
}

type mjpegStream struct {
	body   io.ReadCloser
	mr     *multipart.Reader
	cancel context.CancelFunc
}

// Next: 次のパートを1フレームとして読む。壊れた JPEG は読み飛ばし、
// ストリーム自体の読み取り失敗だけをエラーにする
func (s *mjpegStream) Next(ctx context.Context) (image.Image, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		part, err := s.mr.NextPart()
		if err != nil {
			return nil, err
		}
		img, _, err := image.Decode(part)
		part.Close()
		if err != nil {
			log.Printf("[WARN] mjpeg: skip undecodable frame: %v", err)
			continue
		}
		return img, nil
	}
}

func (s *mjpegStream) Close() error {
	s.cancel()
	return s.body.Close()
}

// ===== ディレクトリ再生 =====

var frameExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true,
}

// DirCamera: ディレクトリ内の画像をファイル名順に一定間隔で流す。
// 最後まで流すとフレーム取得失敗（io.EOF）になる。
type DirCamera struct {
	Dir      string
	Interval time.Duration
}

func (c *DirCamera) Open(ctx context.Context) (FrameSource, error) {
	ents, err := os.ReadDir(c.Dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range ents {
		if e.IsDir() || !frameExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(c.Dir, e.Name()))
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("dir: no frames in %s", c.Dir)
	}
	sort.Strings(files)
	return &dirStream{files: files, interval: c.Interval}, nil
}

type dirStream struct {
	files    []string
	pos      int
	interval time.Duration
}

func (s *dirStream) Next(ctx context.Context) (image.Image, error) {
	if s.pos >= len(s.files) {
		return nil, io.EOF
	}
	if s.pos > 0 && s.interval > 0 {
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := s.files[s.pos]
	s.pos++
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dir: decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *dirStream) Close() error { return nil }
