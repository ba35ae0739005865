package imageprep

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
)

func solid(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentType("roof.JPG"))
	assert.Equal(t, "image/heic", ContentType("IMG_0001.heic"))
	assert.Equal(t, "image/webp", ContentType("a.webp"))
	assert.Empty(t, ContentType("claim.pdf"))
	assert.True(t, Supported("x.tif"))
	assert.False(t, Supported("noext"))
}

func TestPrepare_SmallJPEGUnchanged(t *testing.T) {
	data := encodeJPEG(t, solid(40, 30))

	got, err := Prepare(context.Background(), data, "photo.jpg", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, "image/jpeg", got.MIMEType)
	assert.Equal(t, 40, got.Width)
	assert.Equal(t, 30, got.Height)
	assert.False(t, got.Resized)
}

func TestPrepare_DownscalesLandscape(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(400, 100)))

	got, err := Prepare(context.Background(), buf.Bytes(), "wide.png", Options{MaxDimension: 200})
	require.NoError(t, err)
	assert.True(t, got.Resized)
	assert.Equal(t, 200, got.Width)
	assert.Equal(t, 50, got.Height)

	img, format, err := image.Decode(bytes.NewReader(got.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 200, 50), img.Bounds())
}

func TestPrepare_DownscalesPortrait(t *testing.T) {
	data := encodeJPEG(t, solid(60, 300))

	got, err := Prepare(context.Background(), data, "tall.jpeg", Options{MaxDimension: 150})
	require.NoError(t, err)
	assert.Equal(t, 30, got.Width)
	assert.Equal(t, 150, got.Height)
	assert.NotEqual(t, data, got.Data)
}

func TestPrepare_ReencodesBMP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, bmp.Encode(&buf, solid(20, 20)))

	got, err := Prepare(context.Background(), buf.Bytes(), "scan.bmp", DefaultOptions())
	require.NoError(t, err)
	assert.False(t, got.Resized)
	_, format, err := image.Decode(bytes.NewReader(got.Data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPrepare_Unsupported(t *testing.T) {
	_, err := Prepare(context.Background(), []byte("%PDF"), "claim.pdf", DefaultOptions())
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPrepare_CorruptData(t *testing.T) {
	_, err := Prepare(context.Background(), []byte("not an image"), "broken.png", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode broken.png")
}

func TestPrepare_HEIFConverter(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	script := filepath.Join(t.TempDir(), "fake-heif-convert")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncp \"$1\" \"$2\"\n"), 0o755))

	data := encodeJPEG(t, solid(10, 10))
	got, err := Prepare(context.Background(), data, "IMG_1.HEIC", Options{HeifConvertPath: script})
	require.NoError(t, err)
	assert.Equal(t, data, got.Data)
	assert.Equal(t, 10, got.Width)
}

func TestPrepare_HEIFConverterFails(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script converter")
	}
	script := filepath.Join(t.TempDir(), "broken-heif-convert")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0o755))

	_, err := Prepare(context.Background(), []byte("heif"), "IMG_2.heif", Options{HeifConvertPath: script})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestHeifConvertPath(t *testing.T) {
	assert.Equal(t, "/opt/bin/heif", heifConvertPath("/opt/bin/heif"))
	assert.Equal(t, "heif-convert", heifConvertPath(""))
}
