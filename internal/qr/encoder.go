// Package qr turns the portal URL into a scannable PNG. The encoding itself
// is delegated to go-qrcode; this package owns the options, colors, caching
// and the write-once result slot the page reads from.
package qr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Options control how the code is drawn.
type Options struct {
	Width      int    `mapstructure:"width"`  // output edge in pixels
	Margin     int    `mapstructure:"margin"` // quiet zone in modules
	DarkColor  string `mapstructure:"dark_color"`
	LightColor string `mapstructure:"light_color"`
}

// DefaultOptions matches the portal's black-on-white 256px code.
func DefaultOptions() Options {
	return Options{Width: 256, Margin: 2, DarkColor: "#000000", LightColor: "#FFFFFF"}
}

func (o Options) Validate() error {
	var errs []error
	if o.Width <= 0 {
		errs = append(errs, fmt.Errorf("width must be positive, got %d", o.Width))
	}
	if o.Margin < 0 {
		errs = append(errs, fmt.Errorf("margin must not be negative, got %d", o.Margin))
	}
	if _, err := parseColor(o.DarkColor); err != nil {
		errs = append(errs, fmt.Errorf("dark color: %w", err))
	}
	if _, err := parseColor(o.LightColor); err != nil {
		errs = append(errs, fmt.Errorf("light color: %w", err))
	}
	return errors.Join(errs...)
}

func (o Options) key() string {
	return fmt.Sprintf("%d|%d|%s|%s", o.Width, o.Margin, strings.ToLower(o.DarkColor), strings.ToLower(o.LightColor))
}

// Encoder converts text into image bytes.
type Encoder interface {
	Encode(ctx context.Context, text string, opts Options) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(ctx context.Context, text string, opts Options) ([]byte, error)

func (f EncoderFunc) Encode(ctx context.Context, text string, opts Options) ([]byte, error) {
	return f(ctx, text, opts)
}

// PNGEncoder draws codes at medium error correction. Output is
// deterministic for identical inputs.
type PNGEncoder struct {
	Level qrcode.RecoveryLevel
}

func NewPNGEncoder() *PNGEncoder {
	return &PNGEncoder{Level: qrcode.Medium}
}

func (e *PNGEncoder) Encode(_ context.Context, text string, opts Options) ([]byte, error) {
	if text == "" {
		return nil, errors.New("qr: empty text")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}
	dark, _ := parseColor(opts.DarkColor)
	light, _ := parseColor(opts.LightColor)

	code, err := qrcode.New(text, e.Level)
	if err != nil {
		return nil, fmt.Errorf("qr: encoding %q: %w", text, err)
	}
	code.DisableBorder = true
	img := rasterize(code.Bitmap(), opts.Width, opts.Margin, dark, light)

	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("qr: writing png: %w", err)
	}
	return buf.Bytes(), nil
}

// rasterize scales the module bitmap into a width x width paletted image. When
// width is smaller than one pixel per module the image grows to fit.
func rasterize(bitmap [][]bool, width, margin int, dark, light color.Color) *image.Paletted {
	modules := len(bitmap) + 2*margin
	scale := max(width/modules, 1)
	size := max(width, modules*scale)
	offset := (size-modules*scale)/2 + margin*scale

	img := image.NewPaletted(image.Rect(0, 0, size, size), color.Palette{light, dark})
	// index 0 is light, which NewPaletted already fills
	for y, row := range bitmap {
		for x, set := range row {
			if !set {
				continue
			}
			x0, y0 := offset+x*scale, offset+y*scale
			for dy := range scale {
				for dx := range scale {
					img.SetColorIndex(x0+dx, y0+dy, 1)
				}
			}
		}
	}
	return img
}

// parseColor accepts #RGB, #RRGGBB and #RRGGBBAA.
func parseColor(s string) (color.NRGBA, error) {
	hex, ok := strings.CutPrefix(s, "#")
	if !ok {
		return color.NRGBA{}, fmt.Errorf("color %q must start with #", s)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.NRGBA{}, fmt.Errorf("color %q has invalid length", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("color %q: %w", s, err)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
