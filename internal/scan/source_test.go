package scan

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w int) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, 4))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestDirCamera_OrderAndEOF(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 2)
	writePNG(t, filepath.Join(dir, "a.png"), 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	src, err := (&DirCamera{Dir: dir}).Open(context.Background())
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.Bounds().Dx())

	second, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Bounds().Dx())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestDirCamera_IntervalHonoursCancel(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 1)
	writePNG(t, filepath.Join(dir, "b.png"), 1)

	src, err := (&DirCamera{Dir: dir, Interval: time.Hour}).Open(context.Background())
	require.NoError(t, err)

	_, err = src.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirCamera_OpenErrors(t *testing.T) {
	_, err := (&DirCamera{Dir: filepath.Join(t.TempDir(), "missing")}).Open(context.Background())
	assert.Error(t, err)

	_, err = (&DirCamera{Dir: t.TempDir()}).Open(context.Background())
	assert.Error(t, err)
}

func jpegFrame(t *testing.T, w int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, 8))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.White)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestMJPEGCamera_Stream(t *testing.T) {
	frames := [][]byte{jpegFrame(t, 8), jpegFrame(t, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		for _, f := range frames {
			h := make(map[string][]string)
			h["Content-Type"] = []string{"image/jpeg"}
			h["Content-Length"] = []string{fmt.Sprint(len(f))}
			pw, err := mw.CreatePart(h)
			if err != nil {
				return
			}
			pw.Write(f)
		}
		mw.Close()
	}))
	defer srv.Close()

	src, err := (&MJPEGCamera{URL: srv.URL}).Open(context.Background())
	require.NoError(t, err)
	defer src.Close()

	a, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, a.Bounds().Dx())

	b, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 16, b.Bounds().Dx())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMJPEGCamera_SkipsUndecodableFrame(t *testing.T) {
	good := jpegFrame(t, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw := multipart.NewWriter(w)
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+mw.Boundary())
		for _, f := range [][]byte{[]byte("not a jpeg"), good} {
			pw, err := mw.CreatePart(map[string][]string{"Content-Type": {"image/jpeg"}})
			if err != nil {
				return
			}
			pw.Write(f)
		}
		mw.Close()
	}))
	defer srv.Close()

	src, err := (&MJPEGCamera{URL: srv.URL}).Open(context.Background())
	require.NoError(t, err)
	defer src.Close()

	img, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMJPEGCamera_OpenTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := (&MJPEGCamera{URL: srv.URL, OpenTimeout: 50 * time.Millisecond}).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMJPEGCamera_OpenErrors(t *testing.T) {
	notMultipart := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("x"))
	}))
	defer notMultipart.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	for name, cam := range map[string]*MJPEGCamera{
		"empty url":     {},
		"not multipart": {URL: notMultipart.URL},
		"bad status":    {URL: failing.URL},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := cam.Open(context.Background())
			assert.Error(t, err)
		})
	}
}
