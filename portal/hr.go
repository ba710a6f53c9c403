package portal

import (
	"context"
	"fmt"
	"net/url"
)

type Employee struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	FullName   string `json:"full_name"`
	Department string `json:"department"`
	Title      string `json:"title"`
	JoinedAt   string `json:"joined_at"`
}

type EmploymentHistoryEntry struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type OnboardingTask struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// Employees lists the employee directory, with optional search filters.
func (s *Service) Employees(ctx context.Context, filters url.Values) ([]Employee, error) {
	return list[Employee](ctx, s, "/api/hr/employees/", filters)
}

// Employee fetches one employee record.
func (s *Service) Employee(ctx context.Context, employeeID int64) (*Employee, error) {
	var employee Employee
	if err := s.client.GetJSON(ctx, fmt.Sprintf("/api/hr/employees/%d/", employeeID), nil, &employee); err != nil {
		return nil, err
	}
	return &employee, nil
}

// EmploymentHistory lists role changes for an employee.
func (s *Service) EmploymentHistory(ctx context.Context, employee string) ([]EmploymentHistoryEntry, error) {
	return listForEmployee[EmploymentHistoryEntry](ctx, s, "/api/hr/employment-history/", employee)
}

// OnboardingTasks lists onboarding checklist items for an employee.
func (s *Service) OnboardingTasks(ctx context.Context, employee string) ([]OnboardingTask, error) {
	return listForEmployee[OnboardingTask](ctx, s, "/api/hr/onboarding/", employee)
}

// CompleteOnboardingTask marks one checklist item done.
func (s *Service) CompleteOnboardingTask(ctx context.Context, taskID int64) error {
	return s.client.PostJSON(ctx, fmt.Sprintf("/api/hr/onboarding/%d/complete/", taskID), nil, nil)
}
