package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"booktrack/internal/repository"
	"booktrack/pkg/logger"
	"booktrack/pkg/models"
	"booktrack/pkg/utils"
)

// Completer is a chat-completion backend; *openai.Client implements it
type Completer interface {
	ChatCompletion(ctx context.Context, system, user string) (string, error)
}

// DifficultyClassifier assigns a reading tier to a book
type DifficultyClassifier interface {
	Classify(ctx context.Context, book *models.Book) models.Tier
}

type difficultyClassifier struct {
	completer Completer
	bookRepo  repository.BookRepository
	timeout   time.Duration
}

// NewDifficultyClassifier creates a classifier. A nil completer makes every
// uncached book beginner level.
func NewDifficultyClassifier(completer Completer, bookRepo repository.BookRepository, timeout time.Duration) DifficultyClassifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &difficultyClassifier{
		completer: completer,
		bookRepo:  bookRepo,
		timeout:   timeout,
	}
}

const classifierSystemPrompt = `You rate how hard a book is to read for a general adult reader.
Answer with JSON only: {"level": "beginner|intermediate|advanced", "reason": "<one sentence>"}`

type classification struct {
	Level  string `json:"level"`
	Reason string `json:"reason"`
}

// Classify never fails: errors are logged and the default tier is returned
func (c *difficultyClassifier) Classify(ctx context.Context, book *models.Book) models.Tier {
	if book.Difficulty != nil && book.Difficulty.Valid() {
		return *book.Difficulty
	}
	if utils.IsBlank(book.Description) || c.completer == nil {
		return models.TierBeginner
	}

	log := logger.WithFields(map[string]interface{}{"isbn": book.ISBN})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prompt := fmt.Sprintf("Title: %s\nDescription: %s", book.Title, book.Description)
	answer, err := c.completer.ChatCompletion(callCtx, classifierSystemPrompt, prompt)
	if err != nil {
		log.WithError(err).Warn("difficulty classification failed, using beginner")
		return models.TierBeginner
	}

	tier, ok := parseClassification(answer)
	if !ok {
		log.WithField("answer", answer).Warn("unparsable difficulty classification, using beginner")
		return models.TierBeginner
	}

	if err := c.bookRepo.UpdateDifficulty(ctx, book.ISBN, tier); err != nil {
		log.WithError(err).Warn("failed to cache difficulty")
	} else {
		book.Difficulty = &tier
	}
	return tier
}

// parseClassification reads the level field, tolerating markdown fences
// around the JSON body.
func parseClassification(answer string) (models.Tier, bool) {
	body := strings.TrimSpace(answer)
	body = strings.TrimPrefix(body, "```json")
	body = strings.TrimPrefix(body, "```")
	body = strings.TrimSuffix(body, "```")
	body = strings.TrimSpace(body)

	var out classification
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return "", false
	}
	return models.ParseTier(out.Level)
}
