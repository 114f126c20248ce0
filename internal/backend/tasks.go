package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DateLayout is the wire format of due dates.
const DateLayout = "2006-01-02"

// Task is a to-do item owned by a user.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Priority    int    `json:"priority"` // 0 (none) to 4 (critical)
	EnergyLevel string `json:"energyLevel,omitempty"`
	DueDate     string `json:"dueDate,omitempty"`
	Completed   bool   `json:"completed"`
	UserID      string `json:"userId,omitempty"`
}

// NewTask is the body of POST /tasks.
type NewTask struct {
	Title    string `json:"title"`
	Priority int    `json:"priority"`
	DueDate  string `json:"dueDate,omitempty"`
	UserID   string `json:"userId,omitempty"`
}

// TaskPatch is a partial update; nil fields are left unchanged.
type TaskPatch struct {
	Completed *bool   `json:"completed,omitempty"`
	Title     *string `json:"title,omitempty"`
	Priority  *int    `json:"priority,omitempty"`
}

type taskList struct {
	Tasks []Task `json:"tasks"`
}

type searchParams struct {
	Search string `url:"search"`
}

type dateParams struct {
	Date string `url:"date"`
}

// CreateTask creates one task.
func (c *Client) CreateTask(ctx context.Context, token string, t NewTask) (Task, error) {
	var out Task
	err := c.do(ctx, token, http.MethodPost, "/tasks", nil, t, &out)
	return out, err
}

// SearchTasks returns tasks whose title contains term.
func (c *Client) SearchTasks(ctx context.Context, token, term string) ([]Task, error) {
	var out taskList
	if err := c.do(ctx, token, http.MethodGet, "/tasks", searchParams{Search: term}, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// UpdateTask applies patch to the task with the given id.
func (c *Client) UpdateTask(ctx context.Context, token, id string, patch TaskPatch) (Task, error) {
	if id == "" {
		return Task{}, fmt.Errorf("backend: update task: id is required")
	}
	var out Task
	err := c.do(ctx, token, http.MethodPatch, "/tasks/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

// TasksForDate returns the tasks due on the calendar day of d.
func (c *Client) TasksForDate(ctx context.Context, token string, d time.Time) ([]Task, error) {
	var out taskList
	if err := c.do(ctx, token, http.MethodGet, "/tasks/date", dateParams{Date: d.Format(DateLayout)}, nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// PlannedTask is one task produced by the planning analysis.
type PlannedTask struct {
	Title             string `json:"title"`
	Priority          int    `json:"priority"`
	DueDate           string `json:"dueDate,omitempty"`
	ScheduledTime     string `json:"scheduledTime,omitempty"` // HH:MM
	EstimatedDuration int    `json:"estimatedDuration"`       // minutes
	Reasoning         string `json:"reasoning,omitempty"`
}

// Analysis summarizes a planning batch.
type Analysis struct {
	Summary            string `json:"summary"`
	PlanSummary        string `json:"planSummary"`
	TotalEstimatedTime int    `json:"totalEstimatedTime"` // minutes
}

// BatchResult is the response of POST /tasks/batch-create.
type BatchResult struct {
	TasksCreated int           `json:"tasksCreated"`
	Analysis     Analysis      `json:"analysis"`
	Tasks        []PlannedTask `json:"tasks"`
}

type batchRequest struct {
	UserInput string `json:"userInput"`
}

// BatchCreate submits a free-text task dump for analysis and creation.
func (c *Client) BatchCreate(ctx context.Context, token, userInput string) (BatchResult, error) {
	var out BatchResult
	err := c.do(ctx, token, http.MethodPost, "/tasks/batch-create", nil, batchRequest{UserInput: userInput}, &out)
	return out, err
}
