// Package staging copies user-selected documents into the app's private data
// directory so they remain readable regardless of the original file's
// lifetime, and performs the session's local file I/O.
package staging

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

const partialSuffix = ".part"

// Dir stages documents into a single private directory.
type Dir struct {
	root string
}

// New ensures the staging directory exists.
func New(dataDir string) (*Dir, error) {
	root := filepath.Join(dataDir, "documents")
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Dir{root: root}, nil
}

// Stage copies the referenced file into private storage under destName and
// returns the staged path. The copy goes through a partial file that is
// renamed into place only on success.
func (d *Dir) Stage(ctx context.Context, sourceRef, destName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.Open(sourceRef)
	if err != nil {
		return "", fmt.Errorf("opening source document: %w", err)
	}
	defer src.Close()

	dest := filepath.Join(d.root, destName)
	partial := dest + partialSuffix
	out, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("creating staged file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(partial)
		return "", fmt.Errorf("copying document: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("closing staged file: %w", err)
	}
	if err := os.Rename(partial, dest); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("finalizing staged file: %w", err)
	}
	return dest, nil
}

// ReadBytes returns the full contents of a staged file.
func (d *Dir) ReadBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading staged document: %w", err)
	}
	return data, nil
}

// WriteText saves content as a text file inside private storage and returns
// its path.
func (d *Dir) WriteText(content, name string) (string, error) {
	path := filepath.Join(d.root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing text file: %w", err)
	}
	return path, nil
}

// MIMEType sniffs the referenced file's content type, returning the empty
// string when the file cannot be inspected.
func (d *Dir) MIMEType(sourceRef string) string {
	kind, err := mimetype.DetectFile(sourceRef)
	if err != nil {
		return ""
	}
	return kind.String()
}

// Exists reports whether path is a readable regular file.
func (d *Dir) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
