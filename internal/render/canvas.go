package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	qrcode "github.com/skip2/go-qrcode"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"certforge/internal/models"
)

// CanvasRenderer composites a raster certificate from a background image and
// an ordered element list. Elements draw in list order, so later elements
// overlay earlier ones; that stacking rule is deliberate.
type CanvasRenderer struct {
	spec    *models.CanvasSpec
	mapping map[string]string
	assets  AssetLoader
}

func NewCanvasRenderer(spec *models.CanvasSpec, mapping map[string]string, assets AssetLoader) *CanvasRenderer {
	return &CanvasRenderer{spec: spec, mapping: mapping, assets: assets}
}

func (r *CanvasRenderer) Render(ctx context.Context, values map[string]string) ([]byte, string, error) {
	background, err := r.loadImage(ctx, r.spec.BackgroundRef)
	if err != nil {
		return nil, "", err
	}

	width, height := r.spec.Width, r.spec.Height
	if width == 0 {
		width = background.Bounds().Dx()
	}
	if height == 0 {
		height = background.Bounds().Dy()
	}

	dc := gg.NewContext(width, height)
	dc.DrawImage(scaleImage(background, width, height), 0, 0)

	for i, el := range r.spec.Elements {
		switch el.Type {
		case models.ElementText:
			err = r.drawText(ctx, dc, el, values)
		case models.ElementImage:
			err = r.drawImage(ctx, dc, el)
		case models.ElementQRCode:
			err = r.drawQRCode(dc, el, values)
		default:
			err = fmt.Errorf("%w: unknown element type %q", ErrRenderFailure, el.Type)
		}
		if err != nil {
			return nil, "", fmt.Errorf("element %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	return buf.Bytes(), FormatPNG, nil
}

func (r *CanvasRenderer) drawText(ctx context.Context, dc *gg.Context, el models.CanvasElement, values map[string]string) error {
	content, err := substitute(el.Content, r.mapping, values)
	if err != nil {
		return err
	}

	face, err := r.fontFace(ctx, el)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)

	if el.Color != "" {
		dc.SetHexColor(el.Color)
	} else {
		dc.SetRGB(0, 0, 0)
	}
	dc.DrawString(content, el.X, el.Y)
	return nil
}

func (r *CanvasRenderer) drawImage(ctx context.Context, dc *gg.Context, el models.CanvasElement) error {
	img, err := r.loadImage(ctx, el.ImageRef)
	if err != nil {
		return err
	}
	w, h := int(el.W), int(el.H)
	if w <= 0 {
		w = img.Bounds().Dx()
	}
	if h <= 0 {
		h = img.Bounds().Dy()
	}
	dc.DrawImage(scaleImage(img, w, h), int(el.X), int(el.Y))
	return nil
}

func (r *CanvasRenderer) drawQRCode(dc *gg.Context, el models.CanvasElement, values map[string]string) error {
	content, err := substitute(el.Content, r.mapping, values)
	if err != nil {
		return err
	}

	size := int(el.W)
	if size <= 0 {
		size = 128
	}
	encoded, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRenderFailure, err)
	}
	dc.DrawImage(img, int(el.X), int(el.Y))
	return nil
}

func (r *CanvasRenderer) fontFace(ctx context.Context, el models.CanvasElement) (font.Face, error) {
	if el.FontRef == "" {
		return basicfont.Face7x13, nil
	}
	raw, err := r.assets.Load(ctx, el.FontRef)
	if err != nil {
		return nil, fmt.Errorf("%w: font %s: %v", ErrAssetUnavailable, el.FontRef, err)
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: font %s: %v", ErrRenderFailure, el.FontRef, err)
	}
	size := el.FontSize
	if size <= 0 {
		size = 24
	}
	return truetype.NewFace(parsed, &truetype.Options{Size: size}), nil
}

func (r *CanvasRenderer) loadImage(ctx context.Context, ref string) (image.Image, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty image reference", ErrAssetUnavailable)
	}
	raw, err := r.assets.Load(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAssetUnavailable, ref, err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrRenderFailure, ref, err)
	}
	return img, nil
}

func scaleImage(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == width && bounds.Dy() == height {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
