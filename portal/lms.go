package portal

import (
	"context"
	"fmt"
)

type Course struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

type CourseModule struct {
	ID     int64  `json:"id"`
	Course int64  `json:"course"`
	Title  string `json:"title"`
	Order  int    `json:"order"`
}

type Enrollment struct {
	ID       int64  `json:"id"`
	Course   int64  `json:"course"`
	Progress int    `json:"progress"`
	Status   string `json:"status"`
}

type Quiz struct {
	ID     int64  `json:"id"`
	Module int64  `json:"module"`
	Title  string `json:"title"`
}

type QuizQuestion struct {
	ID      int64    `json:"id"`
	Quiz    int64    `json:"quiz"`
	Text    string   `json:"text"`
	Choices []string `json:"choices"`
}

type Certificate struct {
	ID       int64  `json:"id"`
	Course   int64  `json:"course"`
	IssuedAt string `json:"issued_at"`
}

type Skill struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type UserSkill struct {
	ID    int64 `json:"id"`
	Skill int64 `json:"skill"`
	Level int   `json:"level"`
}

// Courses lists available courses.
func (s *Service) Courses(ctx context.Context) ([]Course, error) {
	return list[Course](ctx, s, "/api/lms/courses/", nil)
}

// CourseModules lists the modules of a course.
func (s *Service) CourseModules(ctx context.Context, courseID int64) ([]CourseModule, error) {
	return list[CourseModule](ctx, s, fmt.Sprintf("/api/lms/courses/%d/modules/", courseID), nil)
}

// Enrollments lists course enrollments, optionally per employee.
func (s *Service) Enrollments(ctx context.Context, employee string) ([]Enrollment, error) {
	return listForEmployee[Enrollment](ctx, s, "/api/lms/enrollments/", employee)
}

// Enroll joins the signed-in user to a course.
func (s *Service) Enroll(ctx context.Context, courseID int64) (*Enrollment, error) {
	var enrollment Enrollment
	if err := s.client.PostJSON(ctx, "/api/lms/enrollments/", map[string]int64{"course": courseID}, &enrollment); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// RecordProgress updates completion percentage on an enrollment.
func (s *Service) RecordProgress(ctx context.Context, enrollmentID int64, percent int) error {
	return s.client.PostJSON(ctx, fmt.Sprintf("/api/lms/enrollments/%d/progress/", enrollmentID),
		map[string]int{"progress": percent}, nil)
}

// Quizzes lists the quizzes of a module.
func (s *Service) Quizzes(ctx context.Context, moduleID int64) ([]Quiz, error) {
	return list[Quiz](ctx, s, fmt.Sprintf("/api/lms/modules/%d/quizzes/", moduleID), nil)
}

// QuizQuestions lists a quiz's questions.
func (s *Service) QuizQuestions(ctx context.Context, quizID int64) ([]QuizQuestion, error) {
	return list[QuizQuestion](ctx, s, fmt.Sprintf("/api/lms/quizzes/%d/questions/", quizID), nil)
}

// SubmitQuiz submits answers keyed by question id.
func (s *Service) SubmitQuiz(ctx context.Context, quizID int64, answers map[int64]string) (map[string]any, error) {
	var result map[string]any
	if err := s.client.PostJSON(ctx, fmt.Sprintf("/api/lms/quizzes/%d/submit/", quizID),
		map[string]any{"answers": answers}, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Certificates lists earned certificates, optionally per employee.
func (s *Service) Certificates(ctx context.Context, employee string) ([]Certificate, error) {
	return listForEmployee[Certificate](ctx, s, "/api/lms/certificates/", employee)
}

// Skills lists the skill catalogue.
func (s *Service) Skills(ctx context.Context) ([]Skill, error) {
	return list[Skill](ctx, s, "/api/lms/skills/", nil)
}

// UserSkills lists acquired skills, optionally per employee.
func (s *Service) UserSkills(ctx context.Context, employee string) ([]UserSkill, error) {
	return listForEmployee[UserSkill](ctx, s, "/api/lms/user-skills/", employee)
}
