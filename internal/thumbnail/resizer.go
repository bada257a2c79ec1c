package thumbnail

import (
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/image/draw"

	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/logger"
)

const defaultJPEGQuality = 85

// DefaultMaxPixels caps the declared width*height of a source image.
const DefaultMaxPixels int64 = 50_000_000

var _ Generator = (*Resizer)(nil)

// Resizer is the default Generator. It decodes jpeg, png and gif sources, scales them
// with Catmull-Rom interpolation and stages each variant in a scratch file that is
// removed once the sink returns. Images are never upscaled.
type Resizer struct {
	// TempDir holds scratch files. Empty means os.TempDir().
	TempDir string
	// Quality is the JPEG quality (1-100). Zero means 85.
	Quality int
	// MaxPixels rejects sources whose header declares more pixels. Zero means
	// DefaultMaxPixels.
	MaxPixels int64

	log *zap.Logger
}

// NewResizer returns a Resizer writing scratch files under tempDir.
func NewResizer(tempDir string, quality int) *Resizer {
	return &Resizer{
		TempDir: strings.TrimSpace(tempDir),
		Quality: quality,
		log:     logger.WithModule("thumbnail"),
	}
}

// Generate implements Generator.
func (r *Resizer) Generate(ctx context.Context, src Opener, sizes Sizes, basePath string, sink SinkFunc) error {
	if len(sizes) == 0 {
		return nil
	}
	if sink == nil {
		return apperrors.ErrThumbnail.WithMessage("thumbnail: sink is required")
	}

	img, format, err := decode(src, r.pixelLimit())
	if err != nil {
		return apperrors.ErrThumbnail.WithMessage("thumbnail: decode %s", basePath).WithInternal(err)
	}

	var errs error
	for _, key := range sizes.Keys() {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		target := Location(basePath, key)
		if err := r.produce(ctx, img, format, sizes[key], target, sink); err != nil {
			r.logger().Warn("thumbnail variant failed",
				zap.String("size", key),
				zap.String("path", target),
				zap.Error(err),
			)
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errs
}

func (r *Resizer) produce(ctx context.Context, img image.Image, format string, size Size, target string, sink SinkFunc) error {
	if err := size.Validate(); err != nil {
		return err
	}

	scratch, err := r.encodeToScratch(Scale(img, size), formatFor(target, format))
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(scratch); rmErr != nil && !os.IsNotExist(rmErr) {
			r.logger().Debug("remove thumbnail scratch file", zap.String("file", scratch), zap.Error(rmErr))
		}
	}()

	return sink(ctx, scratchFile(scratch), target)
}

func (r *Resizer) encodeToScratch(img image.Image, format string) (string, error) {
	dir := r.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	name := filepath.Join(dir, "ftpstore-thumb-"+uuid.NewString()+"."+format)

	fh, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("thumbnail: create scratch file: %w", err)
	}

	encErr := encode(fh, img, format, r.quality())
	closeErr := fh.Close()
	if err := multierr.Combine(encErr, closeErr); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("thumbnail: encode %s: %w", format, err)
	}
	return name, nil
}

func (r *Resizer) quality() int {
	if r.Quality <= 0 || r.Quality > 100 {
		return defaultJPEGQuality
	}
	return r.Quality
}

func (r *Resizer) logger() *zap.Logger {
	if r.log == nil {
		return logger.WithModule("thumbnail")
	}
	return r.log
}

// Scale resizes img to size. Fit mode keeps the aspect ratio inside the box; crop mode
// covers the box and trims the centre.
func Scale(img image.Image, size Size) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return img
	}

	if size.Crop {
		return fill(img, size.Width, size.Height)
	}

	w, h := fitDimensions(srcW, srcH, size.Width, size.Height)
	if w == srcW && h == srcH {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func fitDimensions(srcW, srcH, maxW, maxH int) (int, int) {
	scale := 1.0
	if maxW > 0 && srcW > maxW {
		scale = float64(maxW) / float64(srcW)
	}
	if maxH > 0 && srcH > maxH {
		if s := float64(maxH) / float64(srcH); s < scale {
			scale = s
		}
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	return max(w, 1), max(h, 1)
}

func fill(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()

	// Pick the largest centred source rectangle with the target aspect ratio.
	var crop image.Rectangle
	if srcW*h > srcH*w {
		cw := srcH * w / h
		x0 := bounds.Min.X + (srcW-cw)/2
		crop = image.Rect(x0, bounds.Min.Y, x0+cw, bounds.Max.Y)
	} else {
		ch := srcW * h / w
		y0 := bounds.Min.Y + (srcH-ch)/2
		crop = image.Rect(bounds.Min.X, y0, bounds.Max.X, y0+ch)
	}

	if crop.Dx() < w || crop.Dy() < h {
		w, h = crop.Dx(), crop.Dy()
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(w, 1), max(h, 1)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Over, nil)
	return dst
}

func (r *Resizer) pixelLimit() int64 {
	if r.MaxPixels > 0 {
		return r.MaxPixels
	}
	return DefaultMaxPixels
}

// decode reads the header first so an oversized image is refused before its pixel
// buffer is allocated.
func decode(src Opener, maxPixels int64) (image.Image, string, error) {
	if src == nil {
		return nil, "", fmt.Errorf("source is nil")
	}
	cfg, _, err := decodeConfig(src)
	if err != nil {
		return nil, "", err
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxPixels {
		return nil, "", fmt.Errorf("image is %dx%d, over the %d pixel limit", cfg.Width, cfg.Height, maxPixels)
	}

	rc, err := src.Open()
	if err != nil {
		return nil, "", err
	}
	defer rc.Close()
	return image.Decode(rc)
}

func decodeConfig(src Opener) (image.Config, string, error) {
	rc, err := src.Open()
	if err != nil {
		return image.Config{}, "", err
	}
	defer rc.Close()
	return image.DecodeConfig(rc)
}

func formatFor(target, decoded string) string {
	switch strings.ToLower(path.Ext(target)) {
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".png":
		return "png"
	case ".gif":
		return "gif"
	}
	switch decoded {
	case "jpeg", "png", "gif":
		return decoded
	}
	return "png"
}

func encode(w io.Writer, img image.Image, format string, quality int) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "gif":
		return gif.Encode(w, img, nil)
	default:
		return png.Encode(w, img)
	}
}

type scratchFile string

func (f scratchFile) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}
