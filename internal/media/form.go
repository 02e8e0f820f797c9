package media

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// memoryLimit is how much of a multipart body is held in memory before parts
// spill to temporary files.
const memoryLimit = 1 << 20

// ErrNotImage is returned when an uploaded part does not sniff as an image.
var ErrNotImage = errors.New("file is not an image")

// Form is a parsed multipart upload. Release must be called on every path
// once the files are no longer needed; it closes opened parts and removes any
// temporary files the parser created.
type Form struct {
	form   *multipart.Form
	opened []multipart.File
}

// ParseForm parses a multipart request body of at most maxBytes.
func ParseForm(w http.ResponseWriter, r *http.Request, maxBytes int64) (*Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(memoryLimit); err != nil {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
		return nil, fmt.Errorf("parse multipart form: %w", err)
	}
	return &Form{form: r.MultipartForm}, nil
}

// Value returns the first value of a text field.
func (f *Form) Value(name string) string {
	if vals := f.form.Value[name]; len(vals) > 0 {
		return vals[0]
	}
	return ""
}

// Image opens the named file part. It returns nil without error when the part
// is absent, and ErrNotImage when its content is not an image.
func (f *Form) Image(name string) (*File, error) {
	headers := f.form.File[name]
	if len(headers) == 0 || headers[0].Size == 0 {
		return nil, nil
	}
	header := headers[0]

	part, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	f.opened = append(f.opened, part)

	sniff := make([]byte, 512)
	n, err := io.ReadFull(part, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	contentType := http.DetectContentType(sniff[:n])
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrNotImage
	}
	if _, err := part.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind %s: %w", name, err)
	}

	return &File{
		Name:        header.Filename,
		ContentType: contentType,
		Size:        header.Size,
		Body:        part,
	}, nil
}

// Release closes opened parts and deletes temporary files.
func (f *Form) Release() error {
	var errs []error
	for _, part := range f.opened {
		errs = append(errs, part.Close())
	}
	f.opened = nil
	if f.form != nil {
		errs = append(errs, f.form.RemoveAll())
	}
	return errors.Join(errs...)
}
