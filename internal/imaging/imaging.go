// Package imaging validates uploaded product images and downscales the ones
// larger than the catalog display size.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/credihogar/catalog/internal/apperr"
)

const (
	// MaxFileSize is the largest accepted upload in bytes.
	MaxFileSize = 5 << 20
	// MaxDimension bounds both width and height of a stored image.
	MaxDimension = 1200
	// JPEGQuality is used when re-encoding resized JPEGs.
	JPEGQuality = 85
)

// AllowedExtensions lists the accepted file extensions, lowercase, without dot.
var AllowedExtensions = []string{"jpg", "jpeg", "png", "gif", "webp"}

// Ext returns the lowercase extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// CheckFile rejects files whose size or extension cannot be accepted. It
// does not look at the content.
func CheckFile(name string, size int64) error {
	if size > MaxFileSize {
		return apperr.Upload(fmt.Sprintf("El archivo es demasiado grande. Máximo %dMB", MaxFileSize>>20))
	}
	if !slices.Contains(AllowedExtensions, Ext(name)) {
		return apperr.Upload("Tipo de archivo no permitido. Solo: " + strings.Join(AllowedExtensions, ", "))
	}
	return nil
}

// Optimize validates data as an image and downscales it to fit within
// MaxDimension, keeping the aspect ratio. Images already small enough are
// returned unchanged. WebP images that need resizing are stored as PNG since
// there is no WebP encoder, so the returned name may differ from name.
func Optimize(name string, data []byte) ([]byte, string, error) {
	if err := CheckFile(name, int64(len(data))); err != nil {
		return nil, "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Upload("El archivo no es una imagen válida")
	}
	if cfg.Width <= MaxDimension && cfg.Height <= MaxDimension {
		return data, name, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperr.Upload("El archivo no es una imagen válida")
	}
	w, h := Fit(cfg.Width, cfg.Height, MaxDimension, MaxDimension)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	switch Ext(name) {
	case "jpg", "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: JPEGQuality})
	case "gif":
		err = encodeGIF(&buf, src, dst)
	case "webp":
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".png"
		err = encodePNG(&buf, dst)
	default:
		err = encodePNG(&buf, dst)
	}
	if err != nil {
		return nil, "", fmt.Errorf("encode resized image: %w", err)
	}
	return buf.Bytes(), name, nil
}

// Fit scales (w, h) down to fit within (maxW, maxH) keeping the aspect ratio.
func Fit(w, h, maxW, maxH int) (int, int) {
	if w <= maxW && h <= maxH {
		return w, h
	}
	ratio := min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := max(1, int(float64(w)*ratio+0.5))
	nh := max(1, int(float64(h)*ratio+0.5))
	return nw, nh
}

func encodePNG(buf *bytes.Buffer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(buf, img)
}

// encodeGIF quantizes img to the source palette, or Plan9 when the source is
// not paletted, keeping a transparent entry for pixels below half alpha.
func encodeGIF(buf *bytes.Buffer, src image.Image, img *image.RGBA) error {
	pal, hole := gifPalette(src)
	out := image.NewPaletted(img.Bounds(), pal)
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A < 0x80 {
				out.SetColorIndex(x, y, uint8(hole))
			}
		}
	}
	return gif.Encode(buf, out, nil)
}

func gifPalette(src image.Image) (color.Palette, int) {
	var pal color.Palette
	if p, ok := src.(*image.Paletted); ok {
		pal = append(pal, p.Palette...)
	} else {
		pal = append(pal, palette.Plan9...)
	}
	for i, c := range pal {
		if _, _, _, a := c.RGBA(); a == 0 {
			return pal, i
		}
	}
	if len(pal) < 256 {
		return append(pal, color.Transparent), len(pal)
	}
	pal[len(pal)-1] = color.Transparent
	return pal, len(pal) - 1
}
