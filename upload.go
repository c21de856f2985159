package geoselect

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

// Upload limits applied by the portal's document forms.
const (
	DefaultMaxFileSize  int64 = 25 << 20  // per file
	DefaultMaxTotalSize int64 = 100 << 20 // all files of one form
)

// DefaultAllowedTypes lists the content types accepted for supporting documents.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png", "application/pdf"}

var (
	ErrFileTooLarge  = errors.New("file too large")
	ErrTotalTooLarge = errors.New("total upload size too large")
	ErrFileType      = errors.New("file type not allowed")
)

// UploadError describes the first file that broke an upload limit.
type UploadError struct {
	Filename string // empty for ErrTotalTooLarge
	Size     int64
	Limit    int64
	MIME     string // detected type, set for ErrFileType
	Err      error
}

func (e *UploadError) Error() string {
	switch {
	case errors.Is(e.Err, ErrFileType):
		return fmt.Sprintf("%q: %v (%s)", e.Filename, e.Err, e.MIME)
	case e.Filename == "":
		return fmt.Sprintf("%v: %s exceeds the %s limit", e.Err, FormatFileSize(e.Size), FormatFileSize(e.Limit))
	}
	return fmt.Sprintf("%q: %v: %s exceeds the %s limit", e.Filename, e.Err, FormatFileSize(e.Size), FormatFileSize(e.Limit))
}

func (e *UploadError) Unwrap() error { return e.Err }

// UploadFile is one submitted file.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadLimits bounds the files of one form submission.
type UploadLimits struct {
	MaxFileSize  int64    `yaml:"max_file_size"`
	MaxTotalSize int64    `yaml:"max_total_size"`
	AllowedTypes []string `yaml:"allowed_types"`
}

// DefaultUploadLimits returns the portal's limits.
func DefaultUploadLimits() UploadLimits {
	return UploadLimits{
		MaxFileSize:  DefaultMaxFileSize,
		MaxTotalSize: DefaultMaxTotalSize,
		AllowedTypes: append([]string(nil), DefaultAllowedTypes...),
	}
}

// Validate checks each file's size and sniffed content type, then the total
// size. It returns an *UploadError for the first violation. A zero limit or
// an empty type list disables that check.
func (l UploadLimits) Validate(files []UploadFile) error {
	var total int64
	for _, f := range files {
		if l.MaxFileSize > 0 && f.Size > l.MaxFileSize {
			return &UploadError{Filename: f.Name, Size: f.Size, Limit: l.MaxFileSize, Err: ErrFileTooLarge}
		}
		if len(l.AllowedTypes) > 0 {
			mime, err := detect(f)
			if err != nil {
				return fmt.Errorf("reading %q: %w", f.Name, err)
			}
			if !mimetype.EqualsAny(mime.String(), l.AllowedTypes...) {
				return &UploadError{Filename: f.Name, Size: f.Size, MIME: mime.String(), Err: ErrFileType}
			}
		}
		total += f.Size
	}
	if l.MaxTotalSize > 0 && total > l.MaxTotalSize {
		return &UploadError{Size: total, Limit: l.MaxTotalSize, Err: ErrTotalTooLarge}
	}
	return nil
}

func detect(f UploadFile) (*mimetype.MIME, error) {
	if f.Open == nil {
		return nil, errors.New("no content")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return mimetype.DetectReader(rc)
}

// ValidateMultipart validates every file of a parsed multipart form. Fields
// are visited in name order so the reported violation is deterministic.
func (l UploadLimits) ValidateMultipart(form *multipart.Form) error {
	if form == nil {
		return nil
	}
	return l.Validate(FilesFromMultipart(form))
}

// FilesFromMultipart lists the files of form, fields in name order.
func FilesFromMultipart(form *multipart.Form) []UploadFile {
	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []UploadFile
	for _, field := range fields {
		for _, fh := range form.File[field] {
			fh := fh
			files = append(files, UploadFile{
				Name: fh.Filename,
				Size: fh.Size,
				Open: func() (io.ReadCloser, error) { return fh.Open() },
			})
		}
	}
	return files
}

// FilesFromPaths describes local files for validation.
func FilesFromPaths(paths ...string) ([]UploadFile, error) {
	files := make([]UploadFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		path := p
		files = append(files, UploadFile{
			Name: filepath.Base(p),
			Size: info.Size(),
			Open: func() (io.ReadCloser, error) { return os.Open(path) },
		})
	}
	return files, nil
}

// FormatFileSize renders a byte count for display, e.g. "25 MiB".
func FormatFileSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
