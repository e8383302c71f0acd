// Package upload stores multipart uploads in a scratch directory for the
// duration of one request.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrMissingFile     = errors.New("no file uploaded")
)

// Kind is a set of accepted file extensions.
type Kind struct {
	Name       string
	Extensions []string
}

var (
	Image = Kind{Name: "image", Extensions: []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}}
	Audio = Kind{Name: "audio", Extensions: []string{".wav", ".mp3", ".ogg", ".flac", ".webm", ".m4a"}}
)

func (k Kind) allows(ext string) bool {
	for _, e := range k.Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Asset is a file saved to the scratch directory. Callers must Remove it.
type Asset struct {
	Path         string
	OriginalName string
	Size         int64
	MIMEType     string
}

// Remove deletes the file. Removing an already deleted asset is not an error.
func (a *Asset) Remove() error {
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", a.Path, err)
	}
	return nil
}

// Read returns the file contents.
func (a *Asset) Read() ([]byte, error) {
	return os.ReadFile(a.Path)
}

// Scratch saves uploads under unique names in one directory.
type Scratch struct {
	dir string
}

func NewScratch(dir string) (*Scratch, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	return &Scratch{dir: dir}, nil
}

func (s *Scratch) Dir() string { return s.dir }

// SaveFormFile saves the named multipart field. The request body must
// already be limited by the caller.
func (s *Scratch) SaveFormFile(r *http.Request, field string, kind Kind) (*Asset, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, field)
		}
		return nil, fmt.Errorf("read form file %s: %w", field, err)
	}
	defer f.Close()
	return s.Save(f, hdr, kind)
}

func (s *Scratch) Save(src multipart.File, hdr *multipart.FileHeader, kind Kind) (*Asset, error) {
	ext := strings.ToLower(filepath.Ext(hdr.Filename))
	if !kind.allows(ext) {
		return nil, fmt.Errorf("%w: %q is not an accepted %s file", ErrUnsupportedType, hdr.Filename, kind.Name)
	}

	path := filepath.Join(s.dir, uuid.NewString()+ext)
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}

	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write scratch file: %w", err)
	}

	mimeType := hdr.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mime.TypeByExtension(ext)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	return &Asset{
		Path:         path,
		OriginalName: hdr.Filename,
		Size:         n,
		MIMEType:     mimeType,
	}, nil
}
