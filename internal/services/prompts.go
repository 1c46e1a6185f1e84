package services

import (
	"fmt"
	"strings"

	"github.com/pagecraft/backend/internal/ai"
	"github.com/pagecraft/backend/internal/models"
)

type platformGuide struct {
	MaxChars int // hard ceiling enforced on the output
	Target   int // length the model is asked to aim for
	Style    string
}

var platformGuides = map[models.Platform]platformGuide{
	models.PlatformTwitter:   {MaxChars: 280, Target: 260, Style: "punchy, one idea per post, at most two hashtags"},
	models.PlatformInstagram: {MaxChars: 2200, Target: 600, Style: "visual storytelling, line breaks, 5 to 10 hashtags at the end"},
	models.PlatformFacebook:  {MaxChars: 63206, Target: 500, Style: "conversational, ends with a question or clear call to action"},
	models.PlatformLinkedIn:  {MaxChars: 3000, Target: 1200, Style: "professional insight, short paragraphs, 3 hashtags at most"},
	models.PlatformTikTok:    {MaxChars: 2200, Target: 300, Style: "caption for a short video, casual, trend-aware, hook in the first line"},
}

var hookStyles = []string{"curiosity", "urgency", "social proof", "education"}

var pageApproaches = []string{"benefit", "feature", "curiosity", "social-proof", "urgency"}

var toneHints = map[string]string{
	"professional":  "clear, credible and confident",
	"casual":        "relaxed and friendly, like talking to a friend",
	"playful":       "light-hearted and witty, emojis are welcome",
	"urgent":        "time-sensitive, direct, with strong calls to action",
	"inspirational": "uplifting and aspirational",
}

const (
	EmailStageAwareness     = "awareness"
	EmailStageConsideration = "consideration"
	EmailStageConversion    = "conversion"
)

const copywriterSystemPrompt = `You are a senior direct-response copywriter creating marketing assets for small online businesses.
Write original copy grounded only in the facts provided. Never invent prices, discounts or testimonials.
Respond with a single JSON array and nothing else: no markdown, no commentary.`

func describeSource(b *strings.Builder, src *SourceContent, cfg GenerateCampaignConfig) {
	fmt.Fprintf(b, "Source (%s): %s\n", src.Kind, src.Title)
	if src.Description != "" {
		fmt.Fprintf(b, "Details: %s\n", truncateRunes(src.Description, 4000))
	}
	if src.Price != nil {
		price := *src.Price
		if src.Currency != nil {
			price += " " + *src.Currency
		}
		fmt.Fprintf(b, "Price: %s\n", price)
	}
	fmt.Fprintf(b, "Campaign goal: %s\n", cfg.Goal)
	if cfg.TargetAudience != nil && *cfg.TargetAudience != "" {
		fmt.Fprintf(b, "Target audience: %s\n", *cfg.TargetAudience)
	}
	tone := cfg.Tone
	if hint, ok := toneHints[tone]; ok {
		tone += " (" + hint + ")"
	}
	fmt.Fprintf(b, "Tone: %s\n\n", tone)
}

func (p *AssetPipeline) request(user string) ai.GenerationRequest {
	return ai.GenerationRequest{
		SystemPrompt: copywriterSystemPrompt,
		UserPrompt:   user,
		MaxTokens:    p.maxTokens,
		Temperature:  0.8,
	}
}

func buildSocialPrompt(platform models.Platform, count int, src *SourceContent, cfg GenerateCampaignConfig) string {
	guide := platformGuides[platform]

	var b strings.Builder
	describeSource(&b, src, cfg)
	fmt.Fprintf(&b, "Write %d distinct %s posts.\n", count, platform)
	fmt.Fprintf(&b, "Each post must stay under %d characters (aim for about %d). Style: %s.\n",
		guide.MaxChars, guide.Target, guide.Style)
	fmt.Fprintf(&b, "Vary the opening hook across posts, rotating through: %s.\n", strings.Join(hookStyles, ", "))
	b.WriteString(`Output contract: [{"content": "post text", "hook": "curiosity|urgency|social proof|education", "hashtags": ["tag"]}]`)
	return b.String()
}

// emailStage spreads an n-email sequence over awareness, consideration and conversion.
// The last email is always the conversion email.
func emailStage(i, n int) string {
	if n <= 1 {
		return EmailStageConversion
	}
	pos := float64(i) / float64(n-1)
	switch {
	case pos < 1.0/3:
		return EmailStageAwareness
	case pos < 2.0/3:
		return EmailStageConsideration
	}
	return EmailStageConversion
}

func buildEmailPrompt(count int, src *SourceContent, cfg GenerateCampaignConfig) string {
	var b strings.Builder
	describeSource(&b, src, cfg)
	fmt.Fprintf(&b, "Write a sequence of %d marketing emails that moves the reader from awareness through consideration to conversion.\n", count)
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "Email %d: %s stage.\n", i+1, emailStage(i, count))
	}
	b.WriteString("Subject lines under 60 characters, preview text under 90 characters, bodies in plain text with short paragraphs.\n")
	b.WriteString(`Output contract: [{"subject": "...", "previewText": "...", "body": "...", "stage": "awareness|consideration|conversion", "sendDayOffset": 0}]`)
	return b.String()
}

func variantApproach(i int) string {
	return pageApproaches[i%len(pageApproaches)]
}

func buildPageVariantPrompt(count int, src *SourceContent, cfg GenerateCampaignConfig) string {
	var b strings.Builder
	describeSource(&b, src, cfg)
	fmt.Fprintf(&b, "Write %d landing page copy variants for an A/B test. Each variant uses a different angle:\n", count)
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "Variant %d: %s-led.\n", i+1, variantApproach(i))
	}
	b.WriteString("Headlines under 70 characters, subheadlines under 140 characters, one clear call to action each.\n")
	b.WriteString(`Output contract: [{"approach": "...", "headline": "...", "subheadline": "...", "body": "...", "cta": "..."}]`)
	return b.String()
}

// clampToPlatform enforces the hard character ceiling, cutting at a word boundary.
func clampToPlatform(platform models.Platform, text string) string {
	guide, ok := platformGuides[platform]
	if !ok {
		return text
	}
	r := []rune(text)
	if len(r) <= guide.MaxChars {
		return text
	}
	cut := string(r[:guide.MaxChars-1])
	if i := strings.LastIndexAny(cut, " \n"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut) + "…"
}
