package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// Habit is a recurring behavior the user tracks daily.
type Habit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type habitList struct {
	Habits []Habit `json:"habits"`
}

type habitEntry struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
}

// Habits lists the user's habits.
func (c *Client) Habits(ctx context.Context, token string) ([]Habit, error) {
	var out habitList
	if err := c.do(ctx, token, http.MethodGet, "/habits", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Habits, nil
}

// LogHabit marks the habit as done on the calendar day of d.
func (c *Client) LogHabit(ctx context.Context, token, id string, d time.Time) error {
	return c.do(ctx, token, http.MethodPost, "/habits/"+url.PathEscape(id)+"/entries", nil,
		habitEntry{Date: d.Format(DateLayout), Completed: true}, nil)
}
