package geoselect

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const (
	pdfContent  = "%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"
	pngContent  = "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"
	jpegContent = "\xff\xd8\xff\xe0\x00\x10JFIF\x00"
)

func memFile(name string, size int64, content string) UploadFile {
	return UploadFile{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}
}

func TestUploadLimits_Validate(t *testing.T) {
	const mib = 1 << 20
	tests := []struct {
		name    string
		files   []UploadFile
		wantErr error
		wantIn  string
	}{
		{
			name:  "accepted documents",
			files: []UploadFile{memFile("passport.pdf", 2*mib, pdfContent), memFile("photo.png", mib, pngContent), memFile("id.jpg", mib, jpegContent)},
		},
		{
			name:  "exactly at the per-file limit",
			files: []UploadFile{memFile("scan.pdf", 25*mib, pdfContent)},
		},
		{
			name:    "file over 25 MiB",
			files:   []UploadFile{memFile("scan.pdf", 25*mib+1, pdfContent)},
			wantErr: ErrFileTooLarge,
			wantIn:  "scan.pdf",
		},
		{
			name: "total over 100 MiB",
			files: []UploadFile{
				memFile("a.pdf", 24*mib, pdfContent),
				memFile("b.pdf", 24*mib, pdfContent),
				memFile("c.pdf", 24*mib, pdfContent),
				memFile("d.pdf", 24*mib, pdfContent),
				memFile("e.pdf", 24*mib, pdfContent),
			},
			wantErr: ErrTotalTooLarge,
			wantIn:  "100 MiB",
		},
		{
			name:    "text renamed to pdf",
			files:   []UploadFile{memFile("fake.pdf", 10, "just some text")},
			wantErr: ErrFileType,
			wantIn:  "text/plain",
		},
	}
	limits := DefaultUploadLimits()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := limits.Validate(tt.files)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			var upErr *UploadError
			if !errors.As(err, &upErr) {
				t.Fatalf("error %T is not an *UploadError", err)
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("Error() = %q, want it to mention %q", err.Error(), tt.wantIn)
			}
		})
	}
}

func TestUploadLimits_DisabledChecks(t *testing.T) {
	limits := UploadLimits{}
	files := []UploadFile{{Name: "anything.bin", Size: 1 << 40}}
	if err := limits.Validate(files); err != nil {
		t.Errorf("Validate() with no limits = %v, want nil", err)
	}
}

func TestUploadLimits_OpenError(t *testing.T) {
	boom := errors.New("disk gone")
	files := []UploadFile{{
		Name: "a.pdf",
		Size: 10,
		Open: func() (io.ReadCloser, error) { return nil, boom },
	}}
	err := DefaultUploadLimits().Validate(files)
	if !errors.Is(err, boom) {
		t.Errorf("Validate() error = %v, want %v", err, boom)
	}
}

func TestUploadLimits_ValidateMultipart(t *testing.T) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range []struct{ field, name, content string }{
		{"passport", "passport.pdf", pdfContent},
		{"photo", "photo.png", pngContent},
	} {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	defer form.RemoveAll()

	files := FilesFromMultipart(form)
	if len(files) != 2 || files[0].Name != "passport.pdf" || files[1].Name != "photo.png" {
		t.Fatalf("FilesFromMultipart() = %+v", files)
	}
	if err := DefaultUploadLimits().ValidateMultipart(form); err != nil {
		t.Errorf("ValidateMultipart() error = %v", err)
	}

	strict := UploadLimits{AllowedTypes: []string{"application/pdf"}}
	if err := strict.ValidateMultipart(form); !errors.Is(err, ErrFileType) {
		t.Errorf("ValidateMultipart() error = %v, want %v", err, ErrFileType)
	}
	if err := strict.ValidateMultipart(nil); err != nil {
		t.Errorf("ValidateMultipart(nil) = %v", err)
	}
}

func TestFilesFromPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passport.pdf")
	if err := os.WriteFile(path, []byte(pdfContent), 0644); err != nil {
		t.Fatal(err)
	}
	files, err := FilesFromPaths(path)
	if err != nil {
		t.Fatalf("FilesFromPaths() error = %v", err)
	}
	if files[0].Name != "passport.pdf" || files[0].Size != int64(len(pdfContent)) {
		t.Errorf("files[0] = %+v", files[0])
	}
	if err := DefaultUploadLimits().Validate(files); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	if _, err := FilesFromPaths(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("FilesFromPaths() of a missing file should fail")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{-5, "0 B"},
		{512, "512 B"},
		{25 << 20, "25 MiB"},
		{100 << 20, "100 MiB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.in); got != tt.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
