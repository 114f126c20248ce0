package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zulandar/productif/internal/llm"
)

const classifyPrompt = `Tu es le classifieur d'intentions d'un assistant de productivité francophone.
Réponds UNIQUEMENT avec un objet JSON, sans texte autour, de la forme :
{"category": "...", "requiresAction": true, "confidence": 0.0,
 "entities": {"tasks": ["..."], "dates": ["..."]},
 "parameters": {"urgency": "high|normal"},
 "emotionalContext": "neutral|positive|stressed|tired|motivated",
 "suggestedResponse": "..."}
Catégories : create_task, list_tasks, complete_task, plan_tomorrow, start_deepwork,
track_habit, status_check, statistics, help_request, how_to, advice_request,
explanation, conversation.
Pour create_task, "tasks" contient un titre par tâche. Pour les dates, recopie les
mots de l'utilisateur ("demain", "aujourd'hui", "lundi"). Pour conversation,
requiresAction vaut false et suggestedResponse contient une réponse courte et chaleureuse.`

// LLMClassifier classifies with a chat model and falls back to another
// classifier when the model fails or returns something unusable.
type LLMClassifier struct {
	completer llm.Completer
	fallback  Classifier
	log       *zap.Logger
}

// LLMClassifierOpts holds parameters for creating an LLMClassifier.
type LLMClassifierOpts struct {
	Completer llm.Completer // required
	Fallback  Classifier    // defaults to Rules
	Logger    *zap.Logger
}

// NewLLMClassifier creates an LLMClassifier.
func NewLLMClassifier(opts LLMClassifierOpts) (*LLMClassifier, error) {
	if opts.Completer == nil {
		return nil, fmt.Errorf("intent: completer is required")
	}
	if opts.Fallback == nil {
		opts.Fallback = NewRules()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &LLMClassifier{completer: opts.Completer, fallback: opts.Fallback, log: opts.Logger}, nil
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, text string) Intent {
	out, err := c.completer.Complete(ctx, llm.Request{
		System:      classifyPrompt,
		User:        text,
		Temperature: 0,
		MaxTokens:   300,
	})
	if err != nil {
		c.log.Warn("llm classification failed, using rules", zap.Error(err))
		return c.fallback.Classify(ctx, text)
	}
	in, err := parseIntent(out)
	if err != nil {
		c.log.Warn("unusable llm classification, using rules", zap.Error(err), zap.String("raw", out))
		return c.fallback.Classify(ctx, text)
	}
	return in
}

// parseIntent decodes a model answer, tolerating a surrounding code fence.
func parseIntent(raw string) (Intent, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	if i, j := strings.Index(s, "{"), strings.LastIndex(s, "}"); i >= 0 && j > i {
		s = s[i : j+1]
	}

	var in Intent
	if err := json.Unmarshal([]byte(s), &in); err != nil {
		return Intent{}, fmt.Errorf("intent: decode: %w", err)
	}
	switch {
	case in.Category == Conversation:
		in.RequiresAction = false
		if in.SuggestedResponse == "" {
			return Intent{}, fmt.Errorf("intent: conversation without suggested response")
		}
	case in.Category.IsAction():
		in.RequiresAction = true
	default:
		return Intent{}, fmt.Errorf("intent: unknown category %q", in.Category)
	}
	if in.Parameters.Urgency == "" {
		in.Parameters.Urgency = UrgencyNormal
	}
	if in.EmotionalContext == "" {
		in.EmotionalContext = Neutral
	}
	return in, nil
}
