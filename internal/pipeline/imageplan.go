package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"image/png"

	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/nfnt/resize"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/docbox-nz/docbox/internal/model"
)

// thumbnail tiers: max dimension in px, aspect preserved.
const (
	smallThumbnailMaxPx = 128
	largeThumbnailMaxPx = 512
)

// ImagePlan implements the image/* derivation plan: strip EXIF
// orientation, produce small+large thumbnails, extract EXIF metadata.
// No FilePages are produced for images. image.Decode dispatches on the
// registered format magic bytes, so the blank bmp/tiff/webp imports
// above extend decoding past the stdlib jpeg/png/gif set without this
// file needing per-format branches.
type ImagePlan struct{}

var _ Plan = (*ImagePlan)(nil)

func (p *ImagePlan) Run(ctx context.Context, rc *RunContext) error {
	img, format, err := image.Decode(bytes.NewReader(rc.File))
	if err != nil {
		return docboxWrap("decode image", err)
	}

	orientation := readOrientation(rc.File)
	if orientation > 1 {
		img = applyOrientation(img, orientation)
	}

	small, err := encodeThumbnail(img, format, smallThumbnailMaxPx)
	if err != nil {
		return docboxWrap("small thumbnail", err)
	}
	if err := putGenerated(ctx, rc, model.GeneratedSmallThumbnail, thumbnailMime(format), small); err != nil {
		return err
	}

	large, err := encodeThumbnail(img, format, largeThumbnailMaxPx)
	if err != nil {
		return docboxWrap("large thumbnail", err)
	}
	if err := putGenerated(ctx, rc, model.GeneratedLargeThumbnail, thumbnailMime(format), large); err != nil {
		return err
	}

	metaJSON, err := extractEXIFJSON(rc.File)
	if err != nil {
		// Missing/invalid EXIF is common (PNGs, screenshots) and is not
		// a derivation failure; the image still has thumbnails.
		return nil
	}
	return putGenerated(ctx, rc, model.GeneratedJsonMetadata, "application/json", metaJSON)
}

func encodeThumbnail(img image.Image, format string, maxDim int) ([]byte, error) {
	b := img.Bounds()
	w, h := uint(b.Dx()), uint(b.Dy())
	var resized image.Image
	if w >= h {
		resized = resize.Resize(uint(maxDim), 0, img, resize.Lanczos3)
	} else {
		resized = resize.Resize(0, uint(maxDim), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, resized); err != nil {
			return nil, err
		}
	default:
		if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func thumbnailMime(format string) string {
	if format == "png" {
		return "image/png"
	}
	return "image/jpeg"
}

func extractEXIFJSON(data []byte) ([]byte, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return x.MarshalJSON()
}

func readOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation rotates img so the pixel data matches orientation 1
// (normal) for the rotated orientations 3, 6 and 8, stripping the need
// for a viewer to apply the EXIF tag itself. The mirrored orientations
// 2, 4, 5 and 7 are not handled: img is returned unchanged.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 3:
		return rotate180(img)
	case 6:
		return rotate90(img)
	case 8:
		return rotate270(img)
	default:
		return img
	}
}

func rotate90(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.Y-1-y, x, img.At(x, y))
		}
	}
	return dst
}

func rotate270(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(y, b.Max.X-1-x, img.At(x, y))
		}
	}
	return dst
}

func rotate180(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, img, b.Min, draw.Src)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(b.Max.X-1-x, b.Max.Y-1-y, img.At(x, y))
		}
	}
	return dst
}

func docboxWrap(stage string, err error) error {
	return fmt.Errorf("pipeline.ImagePlan: %s: %w", stage, err)
}
