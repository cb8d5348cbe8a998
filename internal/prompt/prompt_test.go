package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var templates = Templates{
	Fallback: "Please give the user a tarot reading.\n\n",
	Closing:  "Interpret each card, then the whole spread.",
}

func TestBuildIsDeterministic(t *testing.T) {
	spread := Spread{Name: "Three Card", CardCount: 3}
	cards := []Card{
		{Name: "The Fool", Position: Upright},
		{Name: "The Tower", Position: Reversed},
	}

	first := Build(spread, "Should I move abroad?", cards, templates)
	second := Build(spread, "Should I move abroad?", cards, templates)
	assert.Equal(t, first, second)
}

func TestBuildLayout(t *testing.T) {
	got := Build(
		Spread{Name: "Three Card", CardCount: 3},
		"Should I move abroad?",
		[]Card{
			{Name: "The Fool", Position: Upright},
			{Name: "The Tower", Position: Reversed},
		},
		templates,
	)

	want := "Please give the user a tarot reading.\n\n" +
		"Question: Should I move abroad?\n\n" +
		"Spread: Three Card (3 cards)\n\n" +
		"Cards drawn:\n" +
		"1. The Fool (upright)\n" +
		"2. The Tower (reversed)\n" +
		"\n" +
		"Interpret each card, then the whole spread."
	assert.Equal(t, want, got)
}

func TestBuildUsesSpreadTemplateAndKeepsQuestionVerbatim(t *testing.T) {
	question := "  Will  she call?\n(be honest) "
	got := Build(
		Spread{Name: "Love", CardCount: 1, Template: "You read love spreads.\n\n"},
		question,
		[]Card{{Name: "The Lovers", Position: Upright}},
		templates,
	)

	assert.Contains(t, got, "You read love spreads.\n\nQuestion: "+question+"\n\n")
	assert.NotContains(t, got, templates.Fallback)
}

func TestMessages(t *testing.T) {
	msgs := Messages("be kind", "prompt body")
	assert.Equal(t, []Message{
		{Role: "system", Content: "be kind"},
		{Role: "user", Content: "prompt body"},
	}, msgs)
}

func TestPositionValid(t *testing.T) {
	assert.True(t, Upright.Valid())
	assert.True(t, Reversed.Valid())
	assert.False(t, Position("sideways").Valid())
}
