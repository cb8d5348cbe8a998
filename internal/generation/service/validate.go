package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/smallbiznis/xingyu/internal/config"
	"github.com/smallbiznis/xingyu/internal/generation/domain"
	"github.com/smallbiznis/xingyu/internal/prompt"
)

func validate(req domain.Request, limits config.GenerationLimits) (string, []prompt.Card, error) {
	if req.UserID == 0 || req.SpreadID == 0 {
		return "", nil, domain.ErrInvalidRequest
	}

	// The question is stored and prompted exactly as asked.
	question := req.Question
	if strings.TrimSpace(question) == "" {
		return "", nil, fmt.Errorf("%w: question is required", domain.ErrInvalidQuestion)
	}
	if limits.MaxQuestionLength > 0 && utf8.RuneCountInString(question) > limits.MaxQuestionLength {
		return "", nil, fmt.Errorf("%w: question exceeds %d characters", domain.ErrInvalidQuestion, limits.MaxQuestionLength)
	}

	if len(req.Cards) == 0 {
		return "", nil, fmt.Errorf("%w: at least one card is required", domain.ErrInvalidCards)
	}
	if limits.MaxCards > 0 && len(req.Cards) > limits.MaxCards {
		return "", nil, fmt.Errorf("%w: at most %d cards", domain.ErrInvalidCards, limits.MaxCards)
	}

	cards := make([]prompt.Card, 0, len(req.Cards))
	for i, card := range req.Cards {
		name := strings.TrimSpace(card.Name)
		if name == "" {
			return "", nil, fmt.Errorf("%w: card %d has no name", domain.ErrInvalidCards, i+1)
		}
		position := card.Position
		if !position.Valid() {
			return "", nil, fmt.Errorf("%w: card %d position must be upright or reversed", domain.ErrInvalidCards, i+1)
		}
		cards = append(cards, prompt.Card{Name: name, Position: position})
	}
	return question, cards, nil
}
