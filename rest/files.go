package rest

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"

	"github.com/pkg/errors"
)

var filenamePattern = regexp.MustCompile(`filename="?([^";]+)"?`)

// Download is a fetched binary response.
type Download struct {
	Data     []byte
	Filename string
}

// DownloadFile fetches a binary resource, naming it from the
// content-disposition header when present, else defaultName.
func (c *Client) DownloadFile(ctx context.Context, path string, query url.Values, defaultName string) (*Download, error) {
	spec, err := c.buildSpec(http.MethodGet, path, &RequestOptions{Query: query})
	if err != nil {
		return nil, err
	}
	spec.binary = true

	result, err := c.doWithRetry(ctx, spec)
	if err != nil {
		return nil, err
	}

	filename := defaultName
	if disposition := result.Header.Get("Content-Disposition"); disposition != "" {
		if m := filenamePattern.FindStringSubmatch(disposition); m != nil {
			filename = m[1]
		}
	}

	return &Download{Data: result.Raw, Filename: filename}, nil
}

// FormFile is one file part of a multipart upload.
type FormFile struct {
	Field   string
	Name    string
	Content []byte
}

// Upload posts a multipart form. The content type carries the boundary
// chosen by the multipart writer; progress covers the whole encoded body.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []FormFile, onProgress func(int), out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return errors.Wrap(err, "[Client.Upload] WriteField")
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return errors.Wrap(err, "[Client.Upload] CreateFormFile")
		}
		if _, err := part.Write(file.Content); err != nil {
			return errors.Wrap(err, "[Client.Upload] write file content")
		}
	}
	if err := writer.Close(); err != nil {
		return errors.Wrap(err, "[Client.Upload] close writer")
	}

	spec := &requestSpec{
		method:      http.MethodPost,
		url:         c.baseURL + path,
		body:        buf.Bytes(),
		contentType: writer.FormDataContentType(),
		onProgress:  onProgress,
	}

	result, err := c.doWithRetry(ctx, spec)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return result.Decode(out)
}
