package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/model"
)

// OfficePlan implements the word/excel/powerpoint/opendocument
// derivation plan: call the external office converter, store its
// output as a Pdf GeneratedFile, then run the PDF plan over that
// output (so office files get the same pages/thumbnails as native
// PDFs). Spreadsheet sources additionally get a JsonMetadata sidecar
// of sheet names and dimensions — the converter only returns PDF
// bytes, which can't recover that structure.
type OfficePlan struct {
	Converter OfficeConverter
}

var _ Plan = (*OfficePlan)(nil)

func (p *OfficePlan) Run(ctx context.Context, rc *RunContext) error {
	if p.Converter == nil {
		return docboxerr.New(docboxerr.ProcessingFailure, "no office converter configured")
	}

	pdfBytes, err := p.Converter.ConvertToPDF(ctx, rc.File, rc.Meta.Mime)
	if err != nil {
		return docboxerr.Wrap(docboxerr.ProcessingFailure, "office conversion", err)
	}

	pdfRC := &RunContext{
		File:        pdfBytes,
		Meta:        rc.Meta,
		ObjectStore: rc.ObjectStore,
		Generated:   rc.Generated,
		Pages:       rc.Pages,
		Files:       rc.Files,
		EmitChild:   rc.EmitChild,
	}
	if err := (&PDFPlan{}).Run(ctx, pdfRC); err != nil {
		return fmt.Errorf("pipeline.OfficePlan: pdf plan over converted output: %w", err)
	}

	if isSpreadsheetMime(rc.Meta.Mime) {
		if err := p.spreadsheetMetadata(ctx, rc); err != nil {
			// Metadata sidecar is a nice-to-have, not fatal to the plan.
			return nil
		}
	}
	return nil
}

func (p *OfficePlan) spreadsheetMetadata(ctx context.Context, rc *RunContext) error {
	f, err := excelize.OpenReader(bytes.NewReader(rc.File))
	if err != nil {
		return err
	}
	defer f.Close()

	type sheetInfo struct {
		Name string `json:"name"`
		Rows int    `json:"rows"`
		Cols int    `json:"cols"`
	}
	var sheets []sheetInfo
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			continue
		}
		cols := 0
		if len(rows) > 0 {
			cols = len(rows[0])
		}
		sheets = append(sheets, sheetInfo{Name: name, Rows: len(rows), Cols: cols})
	}

	meta, err := json.Marshal(map[string]any{"sheets": sheets})
	if err != nil {
		return err
	}
	return putGenerated(ctx, rc, model.GeneratedJsonMetadata, "application/json", meta)
}

func isSpreadsheetMime(mime string) bool {
	switch mime {
	case "application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.oasis.opendocument.spreadsheet":
		return true
	default:
		return false
	}
}
