package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Session statuses.
const (
	SessionActive    = "active"
	SessionPaused    = "paused"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Session actions accepted by PATCH /deepwork-sessions/:id.
const (
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionComplete = "complete"
)

// DeepWorkSession is a focus timer. The backend keeps at most one active or
// paused session per user only as long as callers check before creating.
type DeepWorkSession struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId,omitempty"`
	Status          string     `json:"status"`
	PlannedDuration int        `json:"plannedDuration"` // minutes
	ElapsedMinutes  int        `json:"elapsedMinutes"`
	Type            string     `json:"type,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	EndTimeExpected *time.Time `json:"endTimeExpected,omitempty"`
	EndTime         *time.Time `json:"endTime,omitempty"`
	Interruptions   int        `json:"interruptions"`
}

// SessionQuery filters GET /deepwork-sessions.
type SessionQuery struct {
	Status string `url:"status,omitempty"`
	Limit  int    `url:"limit,omitempty"`
}

// NewSession is the body of POST /deepwork-sessions.
type NewSession struct {
	PlannedDuration int    `json:"plannedDuration"`
	Type            string `json:"type,omitempty"`
}

type sessionList struct {
	Sessions []DeepWorkSession `json:"sessions"`
}

type sessionAction struct {
	Action string `json:"action"`
}

// Sessions lists sessions matching q, most recent first.
func (c *Client) Sessions(ctx context.Context, token string, q SessionQuery) ([]DeepWorkSession, error) {
	var out sessionList
	if err := c.do(ctx, token, http.MethodGet, "/deepwork-sessions", q, nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// CreateSession starts a session.
func (c *Client) CreateSession(ctx context.Context, token string, s NewSession) (DeepWorkSession, error) {
	var out DeepWorkSession
	err := c.do(ctx, token, http.MethodPost, "/deepwork-sessions", nil, s, &out)
	return out, err
}

// UpdateSession applies action (pause, resume or complete) to a session.
func (c *Client) UpdateSession(ctx context.Context, token, id, action string) (DeepWorkSession, error) {
	switch action {
	case ActionPause, ActionResume, ActionComplete:
	default:
		return DeepWorkSession{}, fmt.Errorf("backend: update session: unknown action %q", action)
	}
	var out DeepWorkSession
	err := c.do(ctx, token, http.MethodPatch, "/deepwork-sessions/"+url.PathEscape(id), nil, sessionAction{Action: action}, &out)
	return out, err
}
