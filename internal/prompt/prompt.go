// Package prompt renders the reading request sent upstream. Everything here
// is pure: the same inputs always produce the same bytes.
package prompt

import (
	"strconv"
	"strings"
)

type Position string

const (
	Upright  Position = "upright"
	Reversed Position = "reversed"
)

func (p Position) Valid() bool {
	return p == Upright || p == Reversed
}

type Card struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// Spread carries the parts of a spread the prompt needs. Template is the
// spread's own opening; when empty the configured fallback is used.
type Spread struct {
	Name      string
	CardCount int
	Template  string
}

type Templates struct {
	Fallback string
	Closing  string
}

// Build assumes cards were validated by the caller.
func Build(spread Spread, question string, cards []Card, tpl Templates) string {
	var b strings.Builder

	if spread.Template != "" {
		b.WriteString(spread.Template)
	} else {
		b.WriteString(tpl.Fallback)
	}

	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\n")

	b.WriteString("Spread: ")
	b.WriteString(spread.Name)
	b.WriteString(" (")
	b.WriteString(strconv.Itoa(spread.CardCount))
	b.WriteString(" cards)\n\n")

	b.WriteString("Cards drawn:\n")
	for i, card := range cards {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(card.Name)
		b.WriteString(" (")
		b.WriteString(orientation(card.Position))
		b.WriteString(")\n")
	}

	b.WriteString("\n")
	b.WriteString(tpl.Closing)
	return b.String()
}

func orientation(p Position) string {
	if p == Reversed {
		return string(Reversed)
	}
	return string(Upright)
}

// Message is one chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func Messages(systemDirective, prompt string) []Message {
	return []Message{
		{Role: "system", Content: systemDirective},
		{Role: "user", Content: prompt},
	}
}
