// Package prompts turns validated request fields into model instructions.
package prompts

import (
	"fmt"
	"strings"

	"github.com/bossboard/bossboard/internal/pkg/llm"
)

// Business is the context a prompt is written for. Zero value is allowed.
type Business struct {
	Name string
	Type string
}

func (b Business) label() string {
	name := strings.TrimSpace(b.Name)
	kind := strings.TrimSpace(b.Type)
	switch {
	case name != "" && kind != "":
		return fmt.Sprintf("%q, a %s business", name, kind)
	case name != "":
		return fmt.Sprintf("%q, a local business", name)
	default:
		return "a local business"
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

type ReviewReplyInput struct {
	ReviewerName string
	Rating       int
	ReviewText   string
	Tone         string
}

func ReviewReply(b Business, in ReviewReplyInput) llm.Request {
	system := fmt.Sprintf(`You are a review response assistant for %s.
Write a %s reply to the following customer review.
Keep it concise (2-4 sentences), genuine, and helpful.
If the review is negative, acknowledge the concern, apologize, and offer to make it right.
If the review is positive, express gratitude and invite them back.
Do not use generic phrases. Make it feel personal.
Only output the reply text, nothing else.`, b.label(), in.Tone)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reviewer: %s\n", orDefault(in.ReviewerName, "Anonymous"))
	if in.Rating > 0 {
		fmt.Fprintf(&sb, "Rating: %d/5 stars\n", in.Rating)
	}
	fmt.Fprintf(&sb, "Review: %q\n\nWrite a %s reply:", in.ReviewText, in.Tone)
	return llm.Request{System: system, Prompt: sb.String()}
}

type CaptionInput struct {
	Description string
	Tone        string
	Platform    string
}

func Caption(b Business, in CaptionInput) llm.Request {
	system := fmt.Sprintf(`You are a social media caption writer for %s.
Write an engaging %s caption for %s.
Include a hook, body, and call-to-action.
After the caption, add a line break and then 10-15 relevant hashtags on a single line separated by spaces.
Format: First the caption text, then "---HASHTAGS---" on its own line, then the hashtags.
Keep the caption under 150 words. Make it scroll-stopping.`, b.label(), in.Tone, orDefault(in.Platform, "Instagram"))

	return llm.Request{
		System: system,
		Prompt: fmt.Sprintf("Post description: %s\nTone: %s\nWrite the caption:", in.Description, in.Tone),
	}
}

type EmailMarketingInput struct {
	PromoDetails string
	Audience     string
	Tone         string
}

func EmailMarketing(b Business, in EmailMarketingInput) llm.Request {
	audience := orDefault(in.Audience, "existing customers")
	system := fmt.Sprintf(`You are an email marketing copywriter for %s.
Write a %s marketing email.
Target audience: %s.

Format your response EXACTLY like this:

---SUBJECT LINE---
(Write a compelling subject line that gets opens, under 60 characters)

---PREVIEW TEXT---
(Write preview/preheader text, 40-90 characters)

---EMAIL BODY---
(Write the full email body with greeting, main content, and sign-off. Use short paragraphs. Include a clear CTA.)

Keep it genuine, not spammy. Focus on value to the reader.
Only output the formatted sections, nothing else.`, b.label(), in.Tone, audience)

	return llm.Request{
		System:    system,
		Prompt:    fmt.Sprintf("Promotion/Topic: %s\nAudience: %s\nTone: %s\nWrite the email:", in.PromoDetails, audience, in.Tone),
		MaxTokens: 1500,
	}
}

var scriptFormats = map[string]string{
	"tiktok":        "TikTok video (15-60 seconds, fast-paced, trendy)",
	"reel":          "Instagram Reel (15-90 seconds, polished, visual)",
	"youtube_short": "YouTube Short (under 60 seconds, educational/entertaining)",
	"story":         "Instagram/Facebook Story (15 seconds, casual, behind-the-scenes)",
	"testimonial":   "Customer testimonial video (30-90 seconds, authentic)",
}

type ScriptInput struct {
	Format   string
	Topic    string
	Audience string
}

func Script(b Business, in ScriptInput) llm.Request {
	format := in.Format
	if guide, ok := scriptFormats[strings.ToLower(in.Format)]; ok {
		format = guide
	}
	system := fmt.Sprintf(`You are a short-form video scriptwriter for %s.
Write a script for a %s.
Target audience: %s.

Format your response EXACTLY like this:
---HOOK---
(Write an attention-grabbing opening line, 1-2 sentences)

---BODY---
(Write the main content, 3-5 sentences)

---CTA---
(Write a clear call-to-action, 1-2 sentences)

---FILMING GUIDE---
(Write 3-5 bullet points with filming tips: camera angles, transitions, text overlays, music suggestions)

Keep it conversational and authentic. No corporate speak.`, b.label(), format, orDefault(in.Audience, "general local audience"))

	return llm.Request{
		System: system,
		Prompt: fmt.Sprintf("Topic: %s\nFormat: %s\nWrite the script:", in.Topic, in.Format),
	}
}

type TranslateInput struct {
	Text           string
	TargetLanguage string
}

func Translate(in TranslateInput) llm.Request {
	system := fmt.Sprintf(`You are a professional translator. Translate the following text into %s.
Maintain the original tone, formatting, and intent.
If the text contains hashtags, translate them appropriately for the target language while keeping them as hashtags.
Only output the translated text, nothing else.`, in.TargetLanguage)

	return llm.Request{System: system, Prompt: in.Text, MaxTokens: 2048}
}

const chatSystem = `You are BossBoard's friendly AI assistant. Help users with questions about BossBoard, an AI-powered dashboard for local business owners.

Key facts:
- Three modules: Review AI, Social AI, Content Studio
- Free plan: 30 credits/mo. Pro: $19.99/mo (1,000 credits). Business: $39.99/mo (unlimited). Enterprise: $79.99/mo.
- Supports Instagram, Facebook, TikTok, X (Twitter), and LinkedIn
- Cancel anytime from account settings

Be concise, friendly, and helpful. Keep responses under 3 sentences when possible.`

// Chat uses the fast model; answers are short.
func Chat(message string) llm.Request {
	return llm.Request{System: chatSystem, Prompt: message, Fast: true, MaxTokens: 512}
}

func ReviewInsights(b Business, reviews []string) llm.Request {
	system := fmt.Sprintf(`You are a customer review analyst for %s.
Analyze the provided customer reviews and generate a comprehensive insights report.

You MUST respond in valid JSON format with this exact structure:
{
  "overallSentiment": "positive" | "mixed" | "negative",
  "sentimentBreakdown": { "positive": number, "neutral": number, "negative": number },
  "averageRating": number,
  "totalReviews": number,
  "topThemes": [{ "theme": string, "count": number, "sentiment": "positive" | "neutral" | "negative" }],
  "topPraises": [string, string, string],
  "topComplaints": [string, string, string],
  "keywords": [{ "word": string, "count": number }],
  "actionItems": [string, string, string],
  "summary": string
}

- sentimentBreakdown values should be counts (not percentages)
- topThemes: identify 4-6 recurring themes
- keywords: extract 8-10 most mentioned keywords/phrases
- actionItems: provide 3 specific, actionable suggestions
- summary: write a 2-3 sentence executive summary
Only output valid JSON, nothing else.`, b.label())

	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze these %d reviews:", len(reviews))
	for i, r := range reviews {
		fmt.Fprintf(&sb, "\n\nReview %d: %s", i+1, r)
	}
	return llm.Request{System: system, Prompt: sb.String(), MaxTokens: 2048}
}
