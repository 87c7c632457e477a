package pipeline

import (
	"context"
	"strings"

	"github.com/docbox-nz/docbox/internal/model"
)

// textChunkSize is the target byte size of a FilePage chunk for plain
// text sources.
const textChunkSize = 4096

// TextPlan implements the text/plain derivation plan: chunk the body
// into ~4KB paragraph-aligned FilePages.
type TextPlan struct{}

var _ Plan = (*TextPlan)(nil)

func (p *TextPlan) Run(ctx context.Context, rc *RunContext) error {
	chunks := chunkParagraphs(string(rc.File), textChunkSize)
	for i, chunk := range chunks {
		if err := rc.Pages.Upsert(ctx, &model.FilePage{
			FileID:  rc.Meta.ID,
			Page:    i + 1,
			Content: chunk,
		}); err != nil {
			return err
		}
	}
	return nil
}

// chunkParagraphs splits text on paragraph breaks and greedily packs
// paragraphs into chunks no larger than maxSize, splitting a single
// paragraph that alone exceeds maxSize on its own.
func chunkParagraphs(text string, maxSize int) []string {
	paragraphs := strings.Split(text, "\n\n")

	var chunks []string
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if len(para) > maxSize {
			flush()
			for len(para) > maxSize {
				chunks = append(chunks, para[:maxSize])
				para = para[maxSize:]
			}
			if para != "" {
				current.WriteString(para)
			}
			continue
		}
		if current.Len()+len(para)+2 > maxSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}
