// Package imageprep turns uploaded damage photos into JPEGs sized for a
// vision model request.
package imageprep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnsupported is returned for files whose extension is not a known photo
// format.
var ErrUnsupported = errors.New("unsupported image format")

var contentTypes = map[string]string{
	".jpg": "image/jpeg", ".jpeg": "image/jpeg",
	".png": "image/png", ".gif": "image/gif",
	".bmp": "image/bmp", ".tiff": "image/tiff", ".tif": "image/tiff",
	".webp": "image/webp",
	".heic": "image/heic", ".heif": "image/heif",
}

// ContentType returns the MIME type for filename's extension, or "" when the
// format is not supported.
func ContentType(filename string) string {
	return contentTypes[strings.ToLower(filepath.Ext(filename))]
}

// Supported reports whether filename has a supported photo extension.
func Supported(filename string) bool {
	return ContentType(filename) != ""
}

// Options controls preparation.
type Options struct {
	MaxDimension    int // longest side after scaling; 0 keeps the original size
	Quality         int // JPEG quality (default: 85)
	HeifConvertPath string
}

// DefaultOptions returns the settings used by the Lambdas.
func DefaultOptions() Options {
	return Options{MaxDimension: 2048, Quality: 85}
}

// Prepared is a photo ready to be sent to a model.
type Prepared struct {
	Data          []byte
	MIMEType      string
	Width, Height int
	Resized       bool
}

// Prepare decodes data according to filename's extension, downscales it so
// that neither side exceeds opts.MaxDimension and re-encodes it as JPEG.
// JPEGs that need no scaling are returned unchanged.
func Prepare(ctx context.Context, data []byte, filename string, opts Options) (Prepared, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := contentTypes[ext]; !ok {
		return Prepared{}, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultOptions().Quality
	}

	if ext == ".heic" || ext == ".heif" {
		converted, err := convertHEIF(ctx, heifConvertPath(opts.HeifConvertPath), data)
		if err != nil {
			return Prepared{}, err
		}
		data = converted
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Prepared{}, fmt.Errorf("decode %s: %w", filename, err)
	}

	scaled, resized := downscale(img, opts.MaxDimension)
	b := scaled.Bounds()
	out := Prepared{MIMEType: "image/jpeg", Width: b.Dx(), Height: b.Dy(), Resized: resized}

	if !resized && format == "jpeg" {
		out.Data = data
		return out, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return Prepared{}, fmt.Errorf("encode jpeg: %w", err)
	}
	out.Data = buf.Bytes()

	if resized {
		ib := img.Bounds()
		log.WithFields(log.Fields{
			"file": filename,
			"from": fmt.Sprintf("%dx%d", ib.Dx(), ib.Dy()),
			"to":   fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		}).Debug("downscaled image")
	}
	return out, nil
}

// downscale fits img inside a maxDim square, keeping the aspect ratio.
func downscale(img image.Image, maxDim int) (image.Image, bool) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img, false
	}

	nw, nh := maxDim, maxDim
	if w >= h {
		nh = max(1, h*maxDim/w)
	} else {
		nw = max(1, w*maxDim/h)
	}

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst, true
}

// convertHEIF runs heif-convert on a temp copy of data and returns the JPEG.
func convertHEIF(ctx context.Context, bin string, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "imageprep-*")
	if err != nil {
		return nil, fmt.Errorf("create tmpdir: %w", err)
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "in.heic")
	out := filepath.Join(dir, "out.jpg")
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return nil, fmt.Errorf("write heif input: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, in, out)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("heif-convert: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	converted, err := os.ReadFile(out)
	if err != nil {
		return nil, fmt.Errorf("read converted image: %w", err)
	}
	return converted, nil
}

// heifConvertPath prefers an explicit path, then a binary bundled next to the
// executable, then PATH.
func heifConvertPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if exe, err := os.Executable(); err == nil {
		bundled := filepath.Join(filepath.Dir(exe), "bin", "heif-convert-arm64")
		if _, err := os.Stat(bundled); err == nil {
			return bundled
		}
	}
	return "heif-convert"
}
