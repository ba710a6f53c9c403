package portal

import (
	"context"
	"fmt"
)

type AttendanceRecord struct {
	ID       int64  `json:"id"`
	Date     string `json:"date"`
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Status   string `json:"status"`
	IsWFH    bool   `json:"is_wfh"`
}

type RegularizationRequest struct {
	Date    string `json:"date"`
	Reason  string `json:"reason"`
	InTime  string `json:"in_time,omitempty"`
	OutTime string `json:"out_time,omitempty"`
}

// CheckIn records the start of the working day.
func (s *Service) CheckIn(ctx context.Context) (*AttendanceRecord, error) {
	var record AttendanceRecord
	if err := s.client.PostJSON(ctx, "/api/attendance/check-in/", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// CheckOut records the end of the working day.
func (s *Service) CheckOut(ctx context.Context) (*AttendanceRecord, error) {
	var record AttendanceRecord
	if err := s.client.PostJSON(ctx, "/api/attendance/check-out/", nil, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// RequestWFH files a work-from-home request for a date.
func (s *Service) RequestWFH(ctx context.Context, date, reason string) error {
	return s.client.PostJSON(ctx, "/api/attendance/wfh/", map[string]string{
		"date":   date,
		"reason": reason,
	}, nil)
}

// RequestRegularization files a correction for a missed punch.
func (s *Service) RequestRegularization(ctx context.Context, req RegularizationRequest) error {
	return s.client.PostJSON(ctx, "/api/attendance/regularization/", req, nil)
}

// AttendanceRecords lists attendance, optionally filtered by employee
// (id, email, or resource URL).
func (s *Service) AttendanceRecords(ctx context.Context, employee string) ([]AttendanceRecord, error) {
	return listForEmployee[AttendanceRecord](ctx, s, "/api/attendance/records/", employee)
}

// ApproveRegularization resolves a pending regularization request.
func (s *Service) ApproveRegularization(ctx context.Context, requestID int64, approve bool) error {
	action := "approve"
	if !approve {
		action = "reject"
	}
	return s.client.PostJSON(ctx, fmt.Sprintf("/api/attendance/regularization/%d/%s/", requestID, action), nil, nil)
}
