package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
)

// multipartForm buffers a multipart body in memory before it is sent.
type multipartForm struct {
	buf bytes.Buffer
	w   *multipart.Writer
}

func newMultipartForm() *multipartForm {
	f := &multipartForm{}
	f.w = multipart.NewWriter(&f.buf)

	return f
}

func (f *multipartForm) file(field, name string, content io.Reader) error {
	part, err := f.w.CreateFormFile(field, name)
	if err != nil {
		return fmt.Errorf("api: creating form file: %w", err)
	}

	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("api: reading upload content: %w", err)
	}

	return nil
}

func (f *multipartForm) field(name, value string) error {
	if err := f.w.WriteField(name, value); err != nil {
		return fmt.Errorf("api: writing form field %s: %w", name, err)
	}

	return nil
}

func (f *multipartForm) jsonField(name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("api: encoding form field %s: %w", name, err)
	}

	return f.field(name, string(data))
}

// request closes the form and returns the request. Uploads create a new
// remote entry on every send, so they are not retried.
func (f *multipartForm) request(method, path string) (request, error) {
	if err := f.w.Close(); err != nil {
		return request{}, fmt.Errorf("api: closing multipart body: %w", err)
	}

	return request{
		method:      method,
		path:        path,
		body:        f.buf.Bytes(),
		contentType: f.w.FormDataContentType(),
		noRetry:     true,
	}, nil
}
