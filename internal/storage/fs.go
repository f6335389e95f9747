package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// FS stores blobs on the local filesystem under a base directory.
//
// Layout:
//   - video:     <year>/<month>/<day>/<project-id>/<filename>
//   - thumbnail: <year>/<month>/<day>/<project-id>/thumbnails/<filename>
type FS struct {
	baseDir string
	log     *logrus.Logger
	now     func() time.Time
}

var _ Storage = (*FS)(nil)

func NewFS(baseDir string, log *logrus.Logger) *FS {
	return &FS{baseDir: baseDir, log: log, now: time.Now}
}

func (s *FS) filePath(storageID string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(storageID))
}

func (s *FS) Put(ctx context.Context, content []byte, filename string, projectID uuid.UUID) (string, error) {
	utcnow := s.now().UTC()
	storageID := fmt.Sprintf("%d/%d/%d/%s/%s", utcnow.Year(), int(utcnow.Month()), utcnow.Day(), projectID, filename)
	if err := s.write("put", storageID, content); err != nil {
		return "", err
	}
	s.log.WithField("storage_id", storageID).Info("saved file to fs storage")
	return storageID, nil
}

func (s *FS) PutThumbnail(ctx context.Context, content []byte, filename, ownerStorageID string) (string, error) {
	if ownerStorageID == "" {
		return "", &Error{Op: "put", StorageID: filename, Err: fmt.Errorf("owner storage id is required for thumbnails")}
	}
	storageID := path.Join(path.Dir(ownerStorageID), "thumbnails", filename)
	if err := s.write("put", storageID, content); err != nil {
		return "", err
	}
	s.log.WithField("storage_id", storageID).Info("saved thumbnail to fs storage")
	return storageID, nil
}

// write lands the bytes via temp-file-then-rename so a concurrent reader
// never observes a half-written file.
func (s *FS) write(op, storageID string, content []byte) error {
	filePath := s.filePath(storageID)
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Op: op, StorageID: storageID, Err: err}
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return &Error{Op: op, StorageID: storageID, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &Error{Op: op, StorageID: storageID, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &Error{Op: op, StorageID: storageID, Err: err}
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		os.Remove(tmpName)
		return &Error{Op: op, StorageID: storageID, Err: err}
	}
	return nil
}

func (s *FS) Get(ctx context.Context, storageID string) ([]byte, error) {
	content, err := os.ReadFile(s.filePath(storageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "get", StorageID: storageID, Err: ErrNotExist}
		}
		return nil, &Error{Op: "get", StorageID: storageID, Err: err}
	}
	return content, nil
}

func (s *FS) GetRange(ctx context.Context, storageID string, start, length int64) ([]byte, error) {
	f, err := os.Open(s.filePath(storageID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &Error{Op: "get_range", StorageID: storageID, Err: ErrNotExist}
		}
		return nil, &Error{Op: "get_range", StorageID: storageID, Err: err}
	}
	defer f.Close()

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, &Error{Op: "get_range", StorageID: storageID, Err: err}
	}
	content := make([]byte, length)
	n, err := io.ReadFull(f, content)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, &Error{Op: "get_range", StorageID: storageID, Err: err}
	}
	return content[:n], nil
}

func (s *FS) Replace(ctx context.Context, storageID string, content []byte) error {
	if err := s.write("replace", storageID, content); err != nil {
		return err
	}
	s.log.WithField("storage_id", storageID).Info("replaced file in fs storage")
	return nil
}

func (s *FS) Delete(ctx context.Context, storageID string) error {
	filePath := s.filePath(storageID)
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			s.log.WithField("storage_id", storageID).Warn("file was not found in fs storage")
			return nil
		}
		return &Error{Op: "delete", StorageID: storageID, Err: err}
	}
	s.log.WithField("storage_id", storageID).Info("removed file from fs storage")
	return nil
}

func (s *FS) DeleteDir(ctx context.Context, storageID string) error {
	dirPath := filepath.Dir(s.filePath(storageID))
	info, err := os.Stat(dirPath)
	if err != nil || !info.IsDir() {
		s.log.WithField("storage_id", storageID).Warn("directory was not found in fs storage")
		return nil
	}
	if err := os.RemoveAll(dirPath); err != nil {
		return &Error{Op: "delete_dir", StorageID: storageID, Err: err}
	}
	s.log.WithField("storage_id", storageID).Info("removed directory from fs storage")
	return nil
}

// Exists reports whether the blob is present.
func (s *FS) Exists(storageID string) bool {
	_, err := os.Stat(s.filePath(storageID))
	return err == nil
}
