package pipeline

import (
	"context"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/docbox-nz/docbox/internal/model"
)

var headingBreak = regexp.MustCompile(`(?i)</h[1-6]>`)

// HTMLPlan implements the text/html derivation plan: strip scripts and
// styles, preserve heading breaks as paragraph breaks, and emit the
// result as a single FilePage. Uses bluemonday's strict policy, the
// same library the email plan uses for sanitizing cid-inlined HTML.
type HTMLPlan struct{}

var _ Plan = (*HTMLPlan)(nil)

func (p *HTMLPlan) Run(ctx context.Context, rc *RunContext) error {
	html := headingBreak.ReplaceAllString(string(rc.File), "</h1>\n\n")
	plain := bluemonday.StrictPolicy().Sanitize(html)
	plain = strings.TrimSpace(plain)

	return rc.Pages.Upsert(ctx, &model.FilePage{
		FileID:  rc.Meta.ID,
		Page:    1,
		Content: plain,
	})
}
