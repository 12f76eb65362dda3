package uploads

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Source is a size-known, randomly readable upload payload.
type Source interface {
	io.ReaderAt
	Name() string
	ContentType() string
	Size() int64
}

type FileSource struct {
	f           *os.File
	name        string
	contentType string
	size        int64
}

// OpenFile opens path for upload and sniffs its content type from the
// leading bytes. The caller must Close it.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}

	mtype, err := mimetype.DetectReader(io.NewSectionReader(f, 0, info.Size()))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("detect content type: %w", err)
	}

	return &FileSource{
		f:           f,
		name:        filepath.Base(path),
		contentType: mtype.String(),
		size:        info.Size(),
	}, nil
}

func (s *FileSource) ReadAt(p []byte, off int64) (int, error) { return s.f.ReadAt(p, off) }
func (s *FileSource) Name() string                             { return s.name }
func (s *FileSource) ContentType() string                      { return s.contentType }
func (s *FileSource) Size() int64                              { return s.size }
func (s *FileSource) Close() error                             { return s.f.Close() }

// BytesSource serves an in-memory payload.
type BytesSource struct {
	r           *bytes.Reader
	name        string
	contentType string
}

func NewBytesSource(name, contentType string, data []byte) *BytesSource {
	return &BytesSource{
		r:           bytes.NewReader(data),
		name:        name,
		contentType: contentType,
	}
}

func (s *BytesSource) ReadAt(p []byte, off int64) (int, error) { return s.r.ReadAt(p, off) }
func (s *BytesSource) Name() string                             { return s.name }
func (s *BytesSource) ContentType() string                      { return s.contentType }
func (s *BytesSource) Size() int64                              { return s.r.Size() }
