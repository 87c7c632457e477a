// Package extsearch is the external search.Index backend, backed by
// Meilisearch, for deployments that prefer an external index over the
// database-resident backend.
package extsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	meilisearch "github.com/meilisearch/meilisearch-go"

	"github.com/docbox-nz/docbox/internal/docboxerr"
	"github.com/docbox-nz/docbox/internal/search"
)

// indexDocument is the Meilisearch-side JSON shape for search.IndexDoc.
type indexDocument struct {
	ID          string      `json:"id"`
	ItemID      string      `json:"item_id"`
	ItemType    string      `json:"item_type"`
	DocumentBox string      `json:"document_box"`
	FolderID    string      `json:"folder_id"`
	Name        string      `json:"name"`
	Value       string      `json:"value"`
	Pages       []pageField `json:"pages"`
	CreatedAt   int64       `json:"created_at"`
	CreatedBy   string      `json:"created_by"`
	Mime        string      `json:"mime"`
}

type pageField struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Backend implements search.Index against one Meilisearch index per
// tenant, named by model.Tenant.IndexName.
type Backend struct {
	client   meilisearch.ServiceManager
	indexUID string
}

// New creates a Backend bound to a single Meilisearch index.
func New(client meilisearch.ServiceManager, indexUID string) *Backend {
	return &Backend{client: client, indexUID: indexUID}
}

var _ search.Index = (*Backend)(nil)

// docID encodes the composite (itemID, documentBox) key Meilisearch
// needs as a single primary-key string, since deletes are scoped by
// that pair.
func docID(itemID, documentBox string) string {
	return documentBox + "::" + itemID
}

func (b *Backend) Index(ctx context.Context, doc search.IndexDoc) error {
	pages := make([]pageField, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		pages = append(pages, pageField{Page: p.Page, Text: p.Text})
	}

	d := indexDocument{
		ID:          docID(doc.ItemID, doc.DocumentBox),
		ItemID:      doc.ItemID,
		ItemType:    string(doc.ItemType),
		DocumentBox: doc.DocumentBox,
		FolderID:    doc.FolderID,
		Name:        doc.Name,
		Value:       doc.Value,
		Pages:       pages,
		CreatedAt:   doc.CreatedAt,
		CreatedBy:   doc.CreatedBy,
		Mime:        doc.Mime,
	}

	idx := b.client.Index(b.indexUID)
	if _, err := idx.AddDocuments([]indexDocument{d}, nil); err != nil {
		return docboxerr.Wrap(docboxerr.IndexFailure, "extsearch index "+doc.ItemID, err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, itemID, documentBox string) error {
	idx := b.client.Index(b.indexUID)
	if _, err := idx.DeleteDocument(docID(itemID, documentBox)); err != nil {
		return docboxerr.Wrap(docboxerr.IndexFailure, "extsearch delete "+itemID, err)
	}
	return nil
}

// Query translates the filter tuple into a Meilisearch search request
// fanning out across name, link value, and pages.text, reconstructing
// per-page hits from the highlighted fields in the response.
func (b *Backend) Query(ctx context.Context, filter search.Filter, paging search.Paging) ([]search.RankedMatch, int, error) {
	if len(filter.DocumentBoxes) == 0 {
		return nil, 0, nil
	}
	if !filter.IncludeName && !filter.IncludeContent {
		return nil, 0, nil
	}
	if strings.TrimSpace(filter.Query) == "" {
		return nil, 0, nil
	}

	limit := paging.Limit
	if limit <= 0 {
		limit = 50
	}

	filters := []string{filterIn("document_box", filter.DocumentBoxes)}
	if len(filter.FolderChildren) > 0 {
		filters = append(filters, filterIn("folder_id", filter.FolderChildren))
	}
	if filter.CreatedBy != "" {
		filters = append(filters, fmt.Sprintf("created_by = %q", filter.CreatedBy))
	}
	if filter.Mime != "" {
		filters = append(filters, fmt.Sprintf("mime = %q", filter.Mime))
	}
	if filter.CreatedAfter != nil {
		filters = append(filters, fmt.Sprintf("created_at >= %d", *filter.CreatedAfter))
	}
	if filter.CreatedBefore != nil {
		filters = append(filters, fmt.Sprintf("created_at <= %d", *filter.CreatedBefore))
	}

	var searchOn []string
	if filter.IncludeName {
		searchOn = append(searchOn, "name")
	}
	// The link value axis matches regardless of IncludeContent (a Link
	// has no pages; its value substring match is part of its base
	// matching rule), so it rides along whenever the query runs at all.
	searchOn = append(searchOn, "value")
	if filter.IncludeContent {
		searchOn = append(searchOn, "pages.text")
	}

	idx := b.client.Index(b.indexUID)
	resp, err := idx.Search(filter.Query, &meilisearch.SearchRequest{
		Filter:                strings.Join(filters, " AND "),
		Limit:                 int64(limit),
		Offset:                int64(paging.Offset),
		AttributesToSearchOn:  searchOn,
		AttributesToHighlight: []string{"name", "value", "pages.text"},
		HighlightPreTag:       "<em>",
		HighlightPostTag:      "</em>",
	})
	if err != nil {
		return nil, 0, docboxerr.Wrap(docboxerr.IndexFailure, "extsearch query", err)
	}

	matches := make([]search.RankedMatch, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		m := make(map[string]interface{}, len(hit))
		for k, raw := range hit {
			var v interface{}
			if err := json.Unmarshal(raw, &v); err != nil {
				continue
			}
			m[k] = v
		}
		matches = append(matches, hitToMatch(m, filter.Query, paging))
	}

	return matches, int(resp.EstimatedTotalHits), nil
}

func filterIn(field string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%s = %q", field, v)
	}
	return "(" + strings.Join(quoted, " OR ") + ")"
}

// hitToMatch reconstructs a RankedMatch from one Meilisearch hit,
// approximating the blended rank: a unit token score per matched axis
// plus the substring-name and link-value boosts the database backend
// computes in SQL.
func hitToMatch(m map[string]interface{}, query string, paging search.Paging) search.RankedMatch {
	rm := search.RankedMatch{
		ItemID:      str(m["item_id"]),
		ItemType:    search.ItemType(str(m["item_type"])),
		DocumentBox: str(m["document_box"]),
		FolderID:    str(m["folder_id"]),
		Name:        str(m["name"]),
	}
	if ca, ok := m["created_at"].(float64); ok {
		rm.CreatedAt = int64(ca)
	}

	formatted, _ := m["_formatted"].(map[string]interface{})

	if highlighted(str(indexField(formatted, "name"))) {
		rm.NameMatchRank = 1.0
	}
	rm.NameMatch = containsFold(rm.Name, query)

	if rm.ItemType == search.ItemLink {
		value := str(m["value"])
		rm.ContentMatch = containsFold(value, query) || highlighted(str(indexField(formatted, "value")))
	}

	if rm.ItemType == search.ItemFile {
		rm.PageMatches = pageMatches(formatted, paging)
		rm.TotalHits = countPageHits(formatted)
		if rm.TotalHits > 0 {
			rm.ContentMatch = true
			rm.ContentRank = 1.0
		}
	}

	rm.Rank = rm.NameMatchRank + rm.ContentRank
	if rm.NameMatch {
		rm.Rank += 1.0
	}
	if rm.ItemType == search.ItemLink && rm.ContentMatch {
		rm.Rank += 1.0
	}
	return rm
}

// pageMatches extracts the highlighted pages from the hit's _formatted
// block, applying the per-file page-hit window from paging.
func pageMatches(formatted map[string]interface{}, paging search.Paging) []search.PageMatch {
	maxPages := paging.MaxPages
	if maxPages <= 0 {
		maxPages = 10
	}

	var out []search.PageMatch
	skipped := 0
	for _, pm := range formattedPages(formatted) {
		if !highlighted(pm.Text) {
			continue
		}
		if skipped < paging.PagesOffset {
			skipped++
			continue
		}
		if len(out) >= maxPages {
			break
		}
		out = append(out, search.PageMatch{Page: pm.Page, Matched: pm.Text, Rank: 1.0})
	}
	return out
}

func countPageHits(formatted map[string]interface{}) int {
	n := 0
	for _, pm := range formattedPages(formatted) {
		if highlighted(pm.Text) {
			n++
		}
	}
	return n
}

func formattedPages(formatted map[string]interface{}) []pageField {
	raw, ok := indexField(formatted, "pages").([]interface{})
	if !ok {
		return nil
	}
	out := make([]pageField, 0, len(raw))
	for _, p := range raw {
		pm, ok := p.(map[string]interface{})
		if !ok {
			continue
		}
		page := 0
		switch v := pm["page"].(type) {
		case float64:
			page = int(v)
		case string:
			// Highlighting stringifies numeric fields inside _formatted.
			fmt.Sscanf(v, "%d", &page)
		}
		out = append(out, pageField{Page: page, Text: str(pm["text"])})
	}
	return out
}

func indexField(m map[string]interface{}, key string) interface{} {
	if m == nil {
		return nil
	}
	return m[key]
}

// highlighted reports whether a _formatted field actually carries a
// highlight, i.e. this field is one the query matched on.
func highlighted(s string) bool {
	return strings.Contains(s, "<em>")
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
