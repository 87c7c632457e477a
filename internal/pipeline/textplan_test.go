package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/docbox-nz/docbox/internal/model"
)

type fakePageRepo struct {
	pages []model.FilePage
}

func (f *fakePageRepo) Upsert(ctx context.Context, p *model.FilePage) error {
	f.pages = append(f.pages, *p)
	return nil
}
func (f *fakePageRepo) ListForFile(ctx context.Context, fileID string) ([]model.FilePage, error) {
	return f.pages, nil
}
func (f *fakePageRepo) DeleteForFile(ctx context.Context, fileID string) error {
	f.pages = nil
	return nil
}

func TestChunkParagraphs_SingleShortTextIsOneChunk(t *testing.T) {
	chunks := chunkParagraphs("hello world", textChunkSize)
	if len(chunks) != 1 || chunks[0] != "hello world" {
		t.Errorf("expected a single chunk, got %+v", chunks)
	}
}

func TestChunkParagraphs_PacksParagraphsGreedily(t *testing.T) {
	para := strings.Repeat("a", 100)
	text := strings.Join([]string{para, para, para}, "\n\n")

	chunks := chunkParagraphs(text, 250)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks for 3x100-byte paragraphs under a 250-byte budget, got %d: %v", len(chunks), chunks)
	}
}

func TestChunkParagraphs_SplitsOversizedParagraph(t *testing.T) {
	para := strings.Repeat("b", 10)
	chunks := chunkParagraphs(para, 4)
	if len(chunks) != 3 {
		t.Fatalf("expected a 10-byte paragraph split into 3 chunks of <=4 bytes, got %d: %v", len(chunks), chunks)
	}
	for _, c := range chunks {
		if len(c) > 4 {
			t.Errorf("chunk %q exceeds max size", c)
		}
	}
}

func TestTextPlan_EmitsOnePageWithFourKBChunks(t *testing.T) {
	pages := &fakePageRepo{}
	rc := &RunContext{
		File:  []byte("first paragraph\n\nsecond paragraph"),
		Meta:  &model.File{ID: "file-1"},
		Pages: pages,
	}

	plan := &TextPlan{}
	if err := plan.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(pages.pages) != 1 {
		t.Fatalf("expected 1 page for short text, got %d", len(pages.pages))
	}
	if pages.pages[0].Page != 1 {
		t.Errorf("expected page numbering to start at 1, got %d", pages.pages[0].Page)
	}
}
