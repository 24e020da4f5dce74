package httpapi

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// FormFile is a file part of a multipart form.
type FormFile struct {
	Field    string
	Filename string
	Content  io.Reader
}

type formField struct {
	name  string
	value string
}

// Form builds a multipart/form-data body. Fields keep insertion order.
type Form struct {
	fields []formField
	files  []FormFile
}

// NewForm returns an empty form.
func NewForm() *Form { return &Form{} }

// Set adds a text field.
func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// SetAll adds every entry of values as a text field, in the given key order.
func (f *Form) SetAll(keys []string, values map[string]string) *Form {
	for _, k := range keys {
		if v, ok := values[k]; ok {
			f.Set(k, v)
		}
	}
	return f
}

// File adds a file part.
func (f *Form) File(field, filename string, content io.Reader) *Form {
	f.files = append(f.files, FormFile{Field: field, Filename: filename, Content: content})
	return f
}

// Encode renders the form. The returned body is buffered so the request can be replayed.
func (f *Form) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", fld.name, err)
		}
	}
	for _, file := range f.files {
		part, err := w.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", fmt.Errorf("create file part %s: %w", file.Field, err)
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", file.Filename, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// NewMultipartRequest creates a request carrying the encoded form.
func NewMultipartRequest(method, path string, form *Form) (*Request, error) {
	body, contentType, err := form.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
	}
	req := NewRequest(method, path)
	req.Body = body
	req.ContentType = contentType
	return req, nil
}
