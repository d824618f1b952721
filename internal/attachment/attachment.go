package attachment

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

// URLPrefix is the HTTP path under which stored attachments are served.
const URLPrefix = "/uploads/"

// Store persists binary attachments and returns a retrievable reference.
type Store interface {
	// Put writes content under name and returns the reference clients use to fetch it.
	// Names are expected to be unique; a store never overwrites on purpose.
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)

	// Open returns the content stored under name.
	// The caller is responsible for closing the returned ReadCloser.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Delete removes the content stored under name. Missing content is not an error.
	Delete(ctx context.Context, name string) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewName builds a collision-free storage name from a client supplied file name.
// The ULID prefix is monotonic within the process, so names also sort by creation.
func NewName(fileName string) string {
	entropyMu.Lock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
	entropyMu.Unlock()

	base := sanitize(fileName)
	if base == "" {
		return id.String()
	}
	return id.String() + "_" + base
}

// DetectContentType sniffs the MIME type of an attachment payload.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// validateName accepts only flat names as produced by NewName.
func validateName(name string) error {
	if name == "" || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) || filepath.Clean(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func sanitize(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	base = strings.TrimLeft(base, ".")
	if len(base) > 128 {
		base = base[len(base)-128:]
	}
	return base
}
