package portal

import (
	"context"
	"fmt"
)

type Announcement struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	PostedAt string `json:"posted_at"`
	Pinned   bool   `json:"pinned"`
}

type Task struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	DueDate string `json:"due_date"`
	Done    bool   `json:"done"`
}

// Announcements lists dashboard announcements.
func (s *Service) Announcements(ctx context.Context) ([]Announcement, error) {
	return list[Announcement](ctx, s, "/api/dashboard/announcements/", nil)
}

// Tasks lists the signed-in user's tasks.
func (s *Service) Tasks(ctx context.Context) ([]Task, error) {
	return list[Task](ctx, s, "/api/dashboard/tasks/", nil)
}

// CompleteTask marks a task done.
func (s *Service) CompleteTask(ctx context.Context, taskID int64) error {
	return s.client.PostJSON(ctx, fmt.Sprintf("/api/dashboard/tasks/%d/complete/", taskID), nil, nil)
}
