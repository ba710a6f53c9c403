package portal

import (
	"context"
	"fmt"
)

type LeaveType struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Days int    `json:"days"`
}

type LeaveRequest struct {
	ID        int64  `json:"id"`
	LeaveType int64  `json:"leave_type"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
	Status    string `json:"status"`
}

// LeaveTypes lists the configured leave categories.
func (s *Service) LeaveTypes(ctx context.Context) ([]LeaveType, error) {
	return list[LeaveType](ctx, s, "/api/leave/types/", nil)
}

// LeaveRequests lists leave requests, optionally filtered by employee.
func (s *Service) LeaveRequests(ctx context.Context, employee string) ([]LeaveRequest, error) {
	return listForEmployee[LeaveRequest](ctx, s, "/api/leave/requests/", employee)
}

// RequestLeave files a new leave request.
func (s *Service) RequestLeave(ctx context.Context, req LeaveRequest) (*LeaveRequest, error) {
	var created LeaveRequest
	if err := s.client.PostJSON(ctx, "/api/leave/requests/", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ResolveLeave approves or rejects a pending leave request.
func (s *Service) ResolveLeave(ctx context.Context, requestID int64, approve bool, comment string) error {
	action := "approve"
	if !approve {
		action = "reject"
	}
	return s.client.PostJSON(ctx, fmt.Sprintf("/api/leave/requests/%d/%s/", requestID, action),
		map[string]string{"comment": comment}, nil)
}

// CancelLeave withdraws a pending leave request.
func (s *Service) CancelLeave(ctx context.Context, requestID int64) error {
	return s.client.DeleteJSON(ctx, fmt.Sprintf("/api/leave/requests/%d/", requestID))
}
