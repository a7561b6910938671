package ideas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/llm"
	"github.com/graemedakers/decision-jar/pkg/crypto"
	"gorm.io/gorm"
)

var ErrNoIdeasGenerated = errors.New("model returned no usable ideas")

// plannerCategories is the fixed set the intent classifier maps onto.
var plannerCategories = []string{
	models.CategoryDateNight,
	models.CategoryFamily,
	models.CategoryOutdoors,
	models.CategoryFood,
	models.CategoryTravel,
	models.CategoryBudget,
	models.CategorySurprise,
}

const classifySystemPrompt = `You classify a user's activity request into exactly one category.
Answer with only the category name, nothing else.
Categories: date_night, family, outdoors, food, travel, budget, surprise.`

const suggestSystemPrompt = `You suggest activities for a shared "decision jar".
Respond with a JSON array only, no prose. Each element:
{"title": "...", "description": "...", "cost_hint": "free|low|medium|high"}`

// Planner turns a free-text prompt into stored AI-suggested ideas.
type Planner struct {
	db        *gorm.DB
	client    llm.KeyedCompleter
	billing   *billing.Service
	encryptor *crypto.Encryptor
}

func NewPlanner(db *gorm.DB, client llm.KeyedCompleter, billingService *billing.Service, encryptor *crypto.Encryptor) *Planner {
	return &Planner{
		db:        db,
		client:    client,
		billing:   billingService,
		encryptor: encryptor,
	}
}

// Suggest classifies the prompt, asks the model for count ideas, and stores
// whatever parses as ideas with source=ai. Counts one AI request against the
// user's daily allowance regardless of the model's output.
func (p *Planner) Suggest(ctx context.Context, userID, jarID uuid.UUID, prompt string, count int) ([]models.Idea, error) {
	var user models.User
	if err := p.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}

	if err := p.billing.ConsumeAIRequest(ctx, &user); err != nil {
		return nil, err
	}

	completer, err := p.completerFor(&user)
	if err != nil {
		return nil, err
	}

	if count <= 0 || count > 10 {
		count = 5
	}

	category, err := p.classify(ctx, completer, prompt)
	if err != nil {
		return nil, err
	}

	raw, err := completer.Complete(ctx, llm.CompletionRequest{
		System:      suggestSystemPrompt,
		Prompt:      fmt.Sprintf("Suggest %d %s activities for: %s", count, strings.ReplaceAll(category, "_", " "), prompt),
		MaxTokens:   1200,
		Temperature: 0.8,
	})
	if err != nil {
		return nil, err
	}

	drafts := parseIdeaList(raw)
	if len(drafts) == 0 {
		return nil, ErrNoIdeasGenerated
	}
	if len(drafts) > count {
		drafts = drafts[:count]
	}

	stored := make([]models.Idea, 0, len(drafts))
	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range drafts {
			idea := models.Idea{
				JarID:         jarID,
				Title:         d.Title,
				Description:   d.Description,
				Category:      category,
				CostHint:      d.CostHint,
				Source:        models.IdeaSourceAI,
				SuggestedByID: &userID,
			}
			if err := tx.Create(&idea).Error; err != nil {
				return err
			}
			stored = append(stored, idea)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// classify asks the model for a category and maps its answer onto the fixed
// set; anything unrecognized becomes "surprise".
func (p *Planner) classify(ctx context.Context, completer llm.Completer, prompt string) (string, error) {
	answer, err := completer.Complete(ctx, llm.CompletionRequest{
		System:    classifySystemPrompt,
		Prompt:    prompt,
		MaxTokens: 10,
	})
	if err != nil {
		return "", err
	}
	return ParseIntent(answer), nil
}

// ParseIntent normalizes a model classification answer to one of the fixed
// categories. Models pad answers with whitespace, quotes, or trailing
// punctuation; unknown answers fall back to surprise.
func ParseIntent(answer string) string {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	normalized = strings.Trim(normalized, `"'.`)
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	for _, c := range plannerCategories {
		if normalized == c {
			return c
		}
	}
	// Tolerate answers like "category: food" or "Food activities".
	for _, c := range plannerCategories {
		if strings.Contains(normalized, c) {
			return c
		}
	}
	return models.CategorySurprise
}

type ideaDraft struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	CostHint    string `json:"cost_hint"`
}

// parseIdeaList extracts the first JSON array from a model response,
// tolerating surrounding prose and markdown fences.
func parseIdeaList(raw string) []ideaDraft {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil
	}

	var drafts []ideaDraft
	if err := json.Unmarshal([]byte(raw[start:end+1]), &drafts); err != nil {
		return nil
	}

	valid := drafts[:0]
	for _, d := range drafts {
		if strings.TrimSpace(d.Title) != "" {
			valid = append(valid, d)
		}
	}
	return valid
}

// completerFor resolves which API key to use: a premium user's own stored
// key wins over the server key.
func (p *Planner) completerFor(user *models.User) (llm.Completer, error) {
	if user.IsPremium() && user.LLMAPIKeyEnc != "" {
		key, err := p.encryptor.DecryptString(user.LLMAPIKeyEnc)
		if err != nil {
			return nil, fmt.Errorf("decrypting stored API key: %w", err)
		}
		return p.client.WithAPIKey(key), nil
	}
	return p.client, nil
}
