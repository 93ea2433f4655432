package loader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"askmydocs/types"
)

// FileMetadata describes one stored source file.
type FileMetadata struct {
	ID      string
	Name    string
	Size    int64
	ModTime time.Time
}

// FileStorage is the blob storage boundary: save an upload, fetch a
// file's bytes or metadata by its opaque id. Fetching an unknown id
// fails with types.ErrNotFound.
type FileStorage interface {
	Save(ctx context.Context, name string, r io.Reader) (FileMetadata, error)
	FetchBytes(ctx context.Context, id string) ([]byte, error)
	FetchMetadata(ctx context.Context, id string) (FileMetadata, error)
}

// LocalFileStorage keeps uploads in a flat directory, one file per
// source, named "<id>_<original name>".
type LocalFileStorage struct {
	dir string
}

func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalFileStorage{dir: dir}, nil
}

func (s *LocalFileStorage) Save(ctx context.Context, name string, r io.Reader) (FileMetadata, error) {
	id := uuid.New().String()
	name = sanitizeName(name)

	path := filepath.Join(s.dir, id+"_"+name)
	out, err := os.Create(path)
	if err != nil {
		return FileMetadata{}, fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, r)
	if err != nil {
		os.Remove(path)
		return FileMetadata{}, fmt.Errorf("write file: %w", err)
	}

	return FileMetadata{ID: id, Name: name, Size: size, ModTime: time.Now()}, nil
}

func (s *LocalFileStorage) FetchBytes(ctx context.Context, id string) ([]byte, error) {
	path, _, err := s.find(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}

func (s *LocalFileStorage) FetchMetadata(ctx context.Context, id string) (FileMetadata, error) {
	path, name, err := s.find(id)
	if err != nil {
		return FileMetadata{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return FileMetadata{}, err
	}
	return FileMetadata{ID: id, Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}

func (s *LocalFileStorage) find(id string) (path, name string, err error) {
	if id == "" || strings.ContainsAny(id, `/\`) {
		return "", "", fmt.Errorf("source %q: %w", id, types.ErrNotFound)
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, id+"_*"))
	if err != nil {
		return "", "", err
	}
	if len(matches) == 0 {
		return "", "", fmt.Errorf("source %q: %w", id, types.ErrNotFound)
	}

	path = matches[0]
	name = strings.TrimPrefix(filepath.Base(path), id+"_")
	return path, name, nil
}

func sanitizeName(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
