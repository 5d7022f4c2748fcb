package client

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strconv"
	"time"
)

// Form builds a multipart/form-data body. Fields keep insertion order.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name, value string
}

type formFile struct {
	field, filename string
	contentType     string
	content         io.Reader
}

func NewForm() *Form {
	return &Form{}
}

func (f *Form) Set(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// SetOptional adds the field only when value is non-empty
func (f *Form) SetOptional(name, value string) *Form {
	if value == "" {
		return f
	}
	return f.Set(name, value)
}

func (f *Form) SetInt(name string, value int) *Form {
	return f.Set(name, strconv.Itoa(value))
}

func (f *Form) SetTime(name string, value time.Time) *Form {
	return f.Set(name, value.UTC().Format(time.RFC3339))
}

// File attaches content under field. contentType may be empty, in which
// case application/octet-stream is used.
func (f *Form) File(field, filename, contentType string, content io.Reader) *Form {
	f.files = append(f.files, formFile{
		field:       field,
		filename:    filepath.Base(filename),
		contentType: contentType,
		content:     content,
	})
	return f
}

// Encode renders the form into memory so the request body can be replayed
func (f *Form) Encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, field := range f.fields {
		if err := w.WriteField(field.name, field.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", field.name, err)
		}
	}

	for _, file := range f.files {
		contentType := file.contentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", file.field, err)
		}
		if _, err := io.Copy(part, file.content); err != nil {
			return nil, "", fmt.Errorf("copy file %s: %w", file.filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// File is an upload attached to a form
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Attach adds file under field; a nil file is skipped
func (f *Form) Attach(field string, file *File) *Form {
	if file == nil || file.Content == nil {
		return f
	}
	return f.File(field, file.Name, file.ContentType, file.Content)
}
