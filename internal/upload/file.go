package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
)

// LocalFile is one file selected for upload. Open is called once, when the
// transfer starts.
type LocalFile struct {
	Name        string
	Size        int64
	ContentType string
	ParentID    string
	Open        func() (io.ReadCloser, error)
}

// FromPath describes the file at path, guessing its content type from the
// extension.
func FromPath(path, parentID string) (LocalFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return LocalFile{}, err
	}
	if info.IsDir() {
		return LocalFile{}, fmt.Errorf("%s is a directory", path)
	}

	ct := mime.TypeByExtension(filepath.Ext(path))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return LocalFile{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: ct,
		ParentID:    parentID,
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes wraps an in-memory payload.
func FromBytes(name, contentType string, data []byte) LocalFile {
	return LocalFile{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
