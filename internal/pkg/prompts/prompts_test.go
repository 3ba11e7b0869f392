package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessLabel(t *testing.T) {
	assert.Equal(t, `"Luigi's", a pizzeria business`, Business{Name: "Luigi's", Type: "pizzeria"}.label())
	assert.Equal(t, `"Luigi's", a local business`, Business{Name: "Luigi's"}.label())
	assert.Equal(t, "a local business", Business{}.label())
}

func TestReviewReply(t *testing.T) {
	req := ReviewReply(Business{Name: "Bean There", Type: "coffee shop"}, ReviewReplyInput{
		ReviewerName: "Dana",
		Rating:       2,
		ReviewText:   "Cold latte.",
		Tone:         "apologetic",
	})

	assert.Contains(t, req.System, `"Bean There", a coffee shop business`)
	assert.Contains(t, req.System, "Write a apologetic reply")
	assert.Contains(t, req.Prompt, "Reviewer: Dana\nRating: 2/5 stars\n")
	assert.Contains(t, req.Prompt, `Review: "Cold latte."`)
	assert.False(t, req.Fast)

	anon := ReviewReply(Business{}, ReviewReplyInput{ReviewText: "ok", Tone: "warm"})
	assert.Contains(t, anon.Prompt, "Reviewer: Anonymous")
	assert.NotContains(t, anon.Prompt, "Rating:")
}

func TestOptionalFieldDefaults(t *testing.T) {
	assert.Contains(t, Caption(Business{}, CaptionInput{Description: "new menu", Tone: "fun"}).System, "caption for Instagram")
	assert.Contains(t, Caption(Business{}, CaptionInput{Platform: "LinkedIn"}).System, "caption for LinkedIn")
	assert.Contains(t, EmailMarketing(Business{}, EmailMarketingInput{}).Prompt, "Audience: existing customers")
	assert.Contains(t, Script(Business{}, ScriptInput{Format: "tiktok"}).System, "TikTok video (15-60 seconds")
	assert.Contains(t, Script(Business{}, ScriptInput{Format: "podcast"}).System, "script for a podcast.")
	assert.Contains(t, Script(Business{}, ScriptInput{}).System, "general local audience")
}

func TestTranslateAndChat(t *testing.T) {
	tr := Translate(TranslateInput{Text: "Hola", TargetLanguage: "German"})
	assert.Contains(t, tr.System, "into German.")
	assert.Equal(t, "Hola", tr.Prompt)

	chat := Chat("How many credits do I get?")
	assert.True(t, chat.Fast)
	assert.Equal(t, "How many credits do I get?", chat.Prompt)
}

func TestReviewInsightsNumbersReviews(t *testing.T) {
	req := ReviewInsights(Business{Name: "Spa"}, []string{"Great", "Too loud"})

	assert.Equal(t, "Analyze these 2 reviews:\n\nReview 1: Great\n\nReview 2: Too loud", req.Prompt)
	assert.Contains(t, req.System, "Only output valid JSON")
}
