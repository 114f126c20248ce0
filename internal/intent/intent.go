// Package intent turns a raw chat message into a structured Intent.
package intent

import "context"

// Category is the closed set of intents the agent can act on.
type Category string

const (
	CreateTask    Category = "create_task"
	ListTasks     Category = "list_tasks"
	CompleteTask  Category = "complete_task"
	PlanTomorrow  Category = "plan_tomorrow"
	StartDeepWork Category = "start_deepwork"
	TrackHabit    Category = "track_habit"
	StatusCheck   Category = "status_check"
	Statistics    Category = "statistics"
	HelpRequest   Category = "help_request"
	HowTo         Category = "how_to"
	AdviceRequest Category = "advice_request"
	Explanation   Category = "explanation"

	// Conversation is small talk answered with the suggested response.
	Conversation Category = "conversation"
	// Unknown means the classifier could not place the message.
	Unknown Category = "unknown"
)

// ActionCategories lists every category that routes to a handler.
func ActionCategories() []Category {
	return []Category{
		CreateTask, ListTasks, CompleteTask, PlanTomorrow, StartDeepWork,
		TrackHabit, StatusCheck, Statistics,
		HelpRequest, HowTo, AdviceRequest, Explanation,
	}
}

// IsAction reports whether c routes to a handler.
func (c Category) IsAction() bool {
	for _, a := range ActionCategories() {
		if a == c {
			return true
		}
	}
	return false
}

// Emotion is the user's apparent mood, used to tone replies.
type Emotion string

const (
	Neutral   Emotion = "neutral"
	Positive  Emotion = "positive"
	Stressed  Emotion = "stressed"
	Tired     Emotion = "tired"
	Motivated Emotion = "motivated"
)

// Urgency values for Parameters.Urgency.
const (
	UrgencyHigh   = "high"
	UrgencyNormal = "normal"
)

// Entities are the values extracted from the message.
type Entities struct {
	Tasks []string `json:"tasks,omitempty"`
	Dates []string `json:"dates,omitempty"`
}

// Parameters are modifiers extracted from the message.
type Parameters struct {
	Urgency string `json:"urgency,omitempty"`
}

// Intent is produced once per inbound message and consumed by the router.
type Intent struct {
	Category          Category   `json:"category"`
	RequiresAction    bool       `json:"requiresAction"`
	Confidence        float64    `json:"confidence"`
	Entities          Entities   `json:"entities"`
	Parameters        Parameters `json:"parameters"`
	EmotionalContext  Emotion    `json:"emotionalContext,omitempty"`
	SuggestedResponse string     `json:"suggestedResponse,omitempty"`
}

// Classifier produces an Intent for a message. Implementations never fail:
// an unclassifiable message yields Category Unknown.
type Classifier interface {
	Classify(ctx context.Context, text string) Intent
}
