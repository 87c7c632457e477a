package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/docbox-nz/docbox/internal/model"
)

func TestHTMLPlan_StripsScriptsAndStyles(t *testing.T) {
	pages := &fakePageRepo{}
	html := `<html><head><style>body{color:red}</style></head>
<body><h1>Title</h1><p>Hello <script>alert(1)</script>world</p></body></html>`

	rc := &RunContext{
		File:  []byte(html),
		Meta:  &model.File{ID: "file-1"},
		Pages: pages,
	}

	plan := &HTMLPlan{}
	if err := plan.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(pages.pages) != 1 {
		t.Fatalf("expected exactly one FilePage, got %d", len(pages.pages))
	}

	content := pages.pages[0].Content
	if strings.Contains(content, "alert(1)") {
		t.Errorf("expected script content to be stripped, got %q", content)
	}
	if strings.Contains(content, "color:red") {
		t.Errorf("expected style content to be stripped, got %q", content)
	}
	if !strings.Contains(content, "Title") || !strings.Contains(content, "Hello") {
		t.Errorf("expected visible text to survive sanitization, got %q", content)
	}
}

func TestHTMLPlan_PreservesHeadingBreaks(t *testing.T) {
	pages := &fakePageRepo{}
	html := "<h1>Section One</h1>Body one<h1>Section Two</h1>Body two"

	rc := &RunContext{
		File:  []byte(html),
		Meta:  &model.File{ID: "file-1"},
		Pages: pages,
	}

	plan := &HTMLPlan{}
	if err := plan.Run(context.Background(), rc); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	content := pages.pages[0].Content
	if !strings.Contains(content, "Section One") || !strings.Contains(content, "Section Two") {
		t.Errorf("expected both section headings to survive, got %q", content)
	}
}
