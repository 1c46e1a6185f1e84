package services

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
)

const maxSourceTitle = 100

// CampaignSource names exactly one origin for the generated content.
type CampaignSource struct {
	ProductID     *uuid.UUID `json:"productId,omitempty"`
	BlockID       *uuid.UUID `json:"blockId,omitempty"`
	CustomContent *string    `json:"customContent,omitempty"`
}

func (s CampaignSource) count() int {
	n := 0
	if s.ProductID != nil {
		n++
	}
	if s.BlockID != nil {
		n++
	}
	if s.CustomContent != nil {
		n++
	}
	return n
}

// SourceContent is the normalized description the prompts are built from.
type SourceContent struct {
	Kind        string  `json:"kind"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       *string `json:"price,omitempty"`
	Currency    *string `json:"currency,omitempty"`
	ImageURL    *string `json:"imageUrl,omitempty"`
}

type SourceResolver struct {
	store SourceStore
}

func NewSourceResolver(store SourceStore) *SourceResolver {
	return &SourceResolver{store: store}
}

// Resolve loads and normalizes the source. Products and blocks must belong to userID;
// anything else is reported as ErrNotFound.
func (r *SourceResolver) Resolve(ctx context.Context, userID uuid.UUID, src CampaignSource) (*SourceContent, error) {
	switch {
	case src.ProductID != nil:
		p, err := r.store.GetProduct(ctx, *src.ProductID, userID)
		if err != nil {
			return nil, fmt.Errorf("load product: %w", err)
		}
		return &SourceContent{
			Kind:        "product",
			Title:       strings.TrimSpace(p.Title),
			Description: FlattenHTML(p.Description),
			Price:       p.Price,
			Currency:    p.Currency,
			ImageURL:    p.ImageURL,
		}, nil

	case src.BlockID != nil:
		b, err := r.store.GetBlock(ctx, *src.BlockID, userID)
		if err != nil {
			return nil, fmt.Errorf("load block: %w", err)
		}
		text := FlattenHTML(b.Content)
		title := ""
		if b.Title != nil {
			title = strings.TrimSpace(*b.Title)
		}
		if title == "" {
			title = truncateRunes(text, maxSourceTitle)
		}
		return &SourceContent{Kind: "block", Title: title, Description: text, ImageURL: b.ImageURL}, nil

	case src.CustomContent != nil:
		return CustomSource(*src.CustomContent), nil
	}
	return nil, fmt.Errorf("campaign source is empty")
}

// CustomSource uses the first non-empty line as the title.
func CustomSource(content string) *SourceContent {
	title := ""
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			title = truncateRunes(FlattenHTML(line), maxSourceTitle)
			break
		}
	}
	return &SourceContent{Kind: "custom", Title: title, Description: FlattenHTML(content)}
}

// FlattenHTML reduces block markup to whitespace-collapsed text. Script and style
// bodies are dropped. Plain text passes through with whitespace collapsed.
func FlattenHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.Join(strings.Fields(s), " ")
	}
	doc.Find("script, style, noscript").Remove()
	// Block-level boundaries become spaces so adjacent paragraphs don't glue together.
	doc.Find("p, div, br, li, h1, h2, h3, h4, h5, h6, tr").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
