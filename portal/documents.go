package portal

import (
	"context"
	"fmt"

	"github.com/srinivas112004/go-employee-portal/rest"
)

type DocumentCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Document struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Category int64  `json:"category"`
	Version  int    `json:"version"`
	Uploaded string `json:"uploaded_at"`
}

type DocumentShare struct {
	ID       int64 `json:"id"`
	Document int64 `json:"document"`
	User     int64 `json:"user"`
}

type DocumentAccessLog struct {
	ID         int64  `json:"id"`
	Document   int64  `json:"document"`
	User       int64  `json:"user"`
	Action     string `json:"action"`
	AccessedAt string `json:"accessed_at"`
}

// DocumentCategories lists document categories.
func (s *Service) DocumentCategories(ctx context.Context) ([]DocumentCategory, error) {
	return list[DocumentCategory](ctx, s, "/api/documents/categories/", nil)
}

// Documents lists documents, optionally filtered by employee.
func (s *Service) Documents(ctx context.Context, employee string) ([]Document, error) {
	return listForEmployee[Document](ctx, s, "/api/documents/", employee)
}

// UploadDocument uploads a file with its metadata. Progress, when
// non-nil, receives integer percentages of the encoded body.
func (s *Service) UploadDocument(ctx context.Context, title string, categoryID int64, filename string, content []byte, onProgress func(int)) (*Document, error) {
	var doc Document
	err := s.client.Upload(ctx, "/api/documents/",
		map[string]string{
			"title":    title,
			"category": fmt.Sprintf("%d", categoryID),
		},
		[]rest.FormFile{{Field: "file", Name: filename, Content: content}},
		onProgress, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DownloadDocument fetches a document's current version as a file.
func (s *Service) DownloadDocument(ctx context.Context, documentID int64) (*rest.Download, error) {
	return s.client.DownloadFile(ctx,
		fmt.Sprintf("/api/documents/%d/download/", documentID), nil,
		fmt.Sprintf("document-%d", documentID))
}

// ShareDocument grants another user access to a document.
func (s *Service) ShareDocument(ctx context.Context, documentID, userID int64) (*DocumentShare, error) {
	var share DocumentShare
	if err := s.client.PostJSON(ctx, "/api/documents/shares/", map[string]int64{
		"document": documentID,
		"user":     userID,
	}, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// DocumentVersions lists a document's stored versions.
func (s *Service) DocumentVersions(ctx context.Context, documentID int64) ([]Document, error) {
	return list[Document](ctx, s, fmt.Sprintf("/api/documents/%d/versions/", documentID), nil)
}

// DocumentAccessLogs lists who accessed a document.
func (s *Service) DocumentAccessLogs(ctx context.Context, documentID int64) ([]DocumentAccessLog, error) {
	return list[DocumentAccessLog](ctx, s, fmt.Sprintf("/api/documents/%d/access-logs/", documentID), nil)
}
