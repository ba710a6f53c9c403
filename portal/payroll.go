package portal

import (
	"context"
	"fmt"

	"github.com/srinivas112004/go-employee-portal/rest"
)

type SalaryStructure struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Gross string `json:"gross"`
}

type SalaryAssignment struct {
	ID          int64  `json:"id"`
	Structure   int64  `json:"structure"`
	EffectiveOn string `json:"effective_on"`
}

type Payslip struct {
	ID     int64  `json:"id"`
	Month  string `json:"month"`
	Gross  string `json:"gross"`
	Net    string `json:"net"`
	Status string `json:"status"`
}

type Deduction struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Amount string `json:"amount"`
}

// SalaryStructures lists the configured pay structures.
func (s *Service) SalaryStructures(ctx context.Context) ([]SalaryStructure, error) {
	return list[SalaryStructure](ctx, s, "/api/payroll/structures/", nil)
}

// SalaryAssignments lists structure assignments for an employee.
func (s *Service) SalaryAssignments(ctx context.Context, employee string) ([]SalaryAssignment, error) {
	return listForEmployee[SalaryAssignment](ctx, s, "/api/payroll/assignments/", employee)
}

// Payslips lists payslips for an employee.
func (s *Service) Payslips(ctx context.Context, employee string) ([]Payslip, error) {
	return listForEmployee[Payslip](ctx, s, "/api/payroll/payslips/", employee)
}

// DownloadPayslip fetches one payslip as a file.
func (s *Service) DownloadPayslip(ctx context.Context, payslipID int64) (*rest.Download, error) {
	return s.client.DownloadFile(ctx,
		fmt.Sprintf("/api/payroll/payslips/%d/download/", payslipID), nil,
		fmt.Sprintf("payslip-%d.pdf", payslipID))
}

// Deductions lists deductions for an employee.
func (s *Service) Deductions(ctx context.Context, employee string) ([]Deduction, error) {
	return listForEmployee[Deduction](ctx, s, "/api/payroll/deductions/", employee)
}

// SalaryHistory lists an employee's past payouts.
func (s *Service) SalaryHistory(ctx context.Context, employee string) ([]Payslip, error) {
	return listForEmployee[Payslip](ctx, s, "/api/payroll/salary-history/", employee)
}
