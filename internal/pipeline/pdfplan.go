package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	docboxmodel "github.com/docbox-nz/docbox/internal/model"
)

// PDFPlan implements the application/pdf derivation plan: per-page text
// extraction into FilePages, first-page rasterization into small+large
// thumbnails, and the original bytes kept as a Pdf-type GeneratedFile
// pointer (so office-derived PDFs and uploaded PDFs share one
// downstream representation).
type PDFPlan struct{}

var _ Plan = (*PDFPlan)(nil)

func (p *PDFPlan) Run(ctx context.Context, rc *RunContext) error {
	if err := putGenerated(ctx, rc, docboxmodel.GeneratedPdf, "application/pdf", rc.File); err != nil {
		return err
	}

	if err := p.extractPages(ctx, rc); err != nil {
		return fmt.Errorf("pipeline.PDFPlan: extract pages: %w", err)
	}

	if err := p.rasterizeFirstPage(ctx, rc); err != nil {
		// Rasterization failure shouldn't block text extraction having
		// already succeeded; the file is still searchable by content.
		slog.Warn("pipeline.PDFPlan: rasterize failed", "file_id", rc.Meta.ID, "error", err)
	}
	return nil
}

func (p *PDFPlan) extractPages(ctx context.Context, rc *RunContext) error {
	reader, err := pdf.NewReader(bytes.NewReader(rc.File), int64(len(rc.File)))
	if err != nil {
		return fmt.Errorf("open reader: %w", err)
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue // a single unreadable page doesn't fail the whole file
		}
		if err := rc.Pages.Upsert(ctx, &docboxmodel.FilePage{
			FileID:  rc.Meta.ID,
			Page:    i,
			Content: text,
		}); err != nil {
			return fmt.Errorf("store page %d: %w", i, err)
		}
	}
	return nil
}

// rasterizeFirstPage renders the first page at two sizes. pdfcpu's
// open-source edition has no direct page-to-bitmap renderer, so the
// largest embedded raster image on the first page is used as the
// thumbnail source — accurate for scanned documents, a reasonable
// approximation for vector-only pages (which fall back to no
// thumbnail, handled by the empty-slice check below).
func (p *PDFPlan) rasterizeFirstPage(ctx context.Context, rc *RunContext) error {
	conf := model.NewDefaultConfiguration()
	pageImages, err := api.ExtractImagesRaw(bytes.NewReader(rc.File), []string{"1"}, conf)
	if err != nil {
		return fmt.Errorf("extract first page images: %w", err)
	}

	var largest []byte
	for _, byObj := range pageImages {
		for _, img := range byObj {
			data, err := io.ReadAll(img)
			if err != nil {
				continue
			}
			if len(data) > len(largest) {
				largest = data
			}
		}
	}
	if len(largest) == 0 {
		return nil
	}

	decoded, format, err := image.Decode(bytes.NewReader(largest))
	if err != nil {
		return fmt.Errorf("decode cover image: %w", err)
	}

	small, err := encodeThumbnail(decoded, format, smallThumbnailMaxPx)
	if err != nil {
		return err
	}
	if err := putGenerated(ctx, rc, docboxmodel.GeneratedSmallThumbnail, thumbnailMime(format), small); err != nil {
		return err
	}

	large, err := encodeThumbnail(decoded, format, largeThumbnailMaxPx)
	if err != nil {
		return err
	}
	return putGenerated(ctx, rc, docboxmodel.GeneratedLargeThumbnail, thumbnailMime(format), large)
}
