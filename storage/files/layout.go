// Package files manages the on-disk artefacts of a knowledge base: raw
// uploads, processed text and per-chunk files.
//
//	{root}/projects/{project}/raw/{source}.{ext}
//	{root}/projects/{project}/processed/{source}.txt
//	{root}/projects/{project}/chunks/{source}/{source}_chunk_{n}.txt
//
// Every write goes to a temporary file in the target directory and is
// renamed into place, so readers never observe a partially written file.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidPathSegment indicates an id or extension that would escape its directory.
	ErrInvalidPathSegment = errors.New("invalid path segment")
)

// Layout resolves and manipulates paths under a knowledge base root.
type Layout struct {
	root string
}

// New creates a Layout rooted at root, creating the directory if needed.
func New(root string) (*Layout, error) {
	if root == "" {
		return nil, errors.New("root directory required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, err
	}
	return &Layout{root: abs}, nil
}

// Root returns the absolute root directory.
func (l *Layout) Root() string {
	return l.root
}

// ProjectDir returns the directory holding all files of a project.
func (l *Layout) ProjectDir(projectID string) string {
	return filepath.Join(l.root, "projects", projectID)
}

// RawPath returns the path of a source's original upload.
func (l *Layout) RawPath(projectID, sourceID, ext string) string {
	name := sourceID
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(l.ProjectDir(projectID), "raw", name)
}

// ProcessedPath returns the path of a source's processed text.
func (l *Layout) ProcessedPath(projectID, sourceID string) string {
	return filepath.Join(l.ProjectDir(projectID), "processed", sourceID+".txt")
}

// ChunkDir returns the directory holding a source's chunk files.
func (l *Layout) ChunkDir(projectID, sourceID string) string {
	return filepath.Join(l.ProjectDir(projectID), "chunks", sourceID)
}

// ChunkPath returns the path of chunk n of a source.
func (l *Layout) ChunkPath(projectID, sourceID string, n int) string {
	return filepath.Join(l.ChunkDir(projectID, sourceID), fmt.Sprintf("%s_chunk_%d.txt", sourceID, n))
}

// WriteRaw stores an upload and returns the number of bytes written.
func (l *Layout) WriteRaw(projectID, sourceID, ext string, r io.Reader) (int64, error) {
	if err := validate(projectID, sourceID, ext); err != nil {
		return 0, err
	}
	return writeAtomic(l.RawPath(projectID, sourceID, ext), r)
}

// OpenRaw opens an upload for reading. The caller closes it.
func (l *Layout) OpenRaw(projectID, sourceID, ext string) (*os.File, error) {
	if err := validate(projectID, sourceID, ext); err != nil {
		return nil, err
	}
	return os.Open(l.RawPath(projectID, sourceID, ext))
}

// ReadRaw reads a whole upload into memory.
func (l *Layout) ReadRaw(projectID, sourceID, ext string) ([]byte, error) {
	if err := validate(projectID, sourceID, ext); err != nil {
		return nil, err
	}
	return os.ReadFile(l.RawPath(projectID, sourceID, ext))
}

// DeleteRaw removes an upload. A missing file is not an error.
func (l *Layout) DeleteRaw(projectID, sourceID, ext string) error {
	if err := validate(projectID, sourceID, ext); err != nil {
		return err
	}
	return removeIfExists(l.RawPath(projectID, sourceID, ext))
}

// WriteProcessed stores the processed text of a source.
func (l *Layout) WriteProcessed(projectID, sourceID, text string) error {
	if err := validate(projectID, sourceID, ""); err != nil {
		return err
	}
	_, err := writeAtomic(l.ProcessedPath(projectID, sourceID), strings.NewReader(text))
	return err
}

// ReadProcessed returns the processed text of a source exactly as written.
func (l *Layout) ReadProcessed(projectID, sourceID string) (string, error) {
	if err := validate(projectID, sourceID, ""); err != nil {
		return "", err
	}
	data, err := os.ReadFile(l.ProcessedPath(projectID, sourceID))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ProcessedExists reports whether a source has processed text on disk.
func (l *Layout) ProcessedExists(projectID, sourceID string) bool {
	if validate(projectID, sourceID, "") != nil {
		return false
	}
	_, err := os.Stat(l.ProcessedPath(projectID, sourceID))
	return err == nil
}

// DeleteProcessed removes the processed text. A missing file is not an error.
func (l *Layout) DeleteProcessed(projectID, sourceID string) error {
	if err := validate(projectID, sourceID, ""); err != nil {
		return err
	}
	return removeIfExists(l.ProcessedPath(projectID, sourceID))
}

// WriteChunk stores chunk n of a source.
func (l *Layout) WriteChunk(projectID, sourceID string, n int, content string) error {
	if err := validate(projectID, sourceID, ""); err != nil {
		return err
	}
	if n < 1 {
		return fmt.Errorf("%w: chunk number %d", ErrInvalidPathSegment, n)
	}
	_, err := writeAtomic(l.ChunkPath(projectID, sourceID, n), strings.NewReader(content))
	return err
}

// ReadChunk returns chunk n of a source.
func (l *Layout) ReadChunk(projectID, sourceID string, n int) (string, error) {
	if err := validate(projectID, sourceID, ""); err != nil {
		return "", err
	}
	data, err := os.ReadFile(l.ChunkPath(projectID, sourceID, n))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CountChunks returns the number of chunk files of a source.
func (l *Layout) CountChunks(projectID, sourceID string) (int, error) {
	if err := validate(projectID, sourceID, ""); err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(l.ChunkDir(projectID, sourceID))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	count := 0
	prefix := sourceID + "_chunk_"
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), ".txt") {
			count++
		}
	}
	return count, nil
}

// DeleteChunks removes every chunk file of a source. A missing directory is not an error.
func (l *Layout) DeleteChunks(projectID, sourceID string) error {
	if err := validate(projectID, sourceID, ""); err != nil {
		return err
	}
	return os.RemoveAll(l.ChunkDir(projectID, sourceID))
}

// validate rejects ids and extensions that are empty or would escape their directory.
func validate(projectID, sourceID, ext string) error {
	for _, seg := range []string{projectID, sourceID} {
		if seg == "" || seg == "." || seg == ".." || strings.ContainsAny(seg, `/\`) {
			return fmt.Errorf("%w: %q", ErrInvalidPathSegment, seg)
		}
	}
	if strings.ContainsAny(ext, `/\`) {
		return fmt.Errorf("%w: extension %q", ErrInvalidPathSegment, ext)
	}
	return nil
}

// writeAtomic writes r to a temporary file next to path and renames it into place.
func writeAtomic(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, err
	}
	return n, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
