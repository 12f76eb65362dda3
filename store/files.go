package store

import (
	"context"
	"sort"
	"sync"

	apperror "github.com/Yulian302/lfusys-client/errors"
	filetypes "github.com/Yulian302/lfusys-client/files/types"
)

type StoredFile struct {
	filetypes.File
	OwnerID string
	Data    []byte
}

type FileStore interface {
	Put(ctx context.Context, file StoredFile) error
	Get(ctx context.Context, id string) (*StoredFile, error)
	ListByOwner(ctx context.Context, ownerID string) ([]filetypes.File, error)
	Delete(ctx context.Context, id string) error

	ReadinessCheck
}

type MemoryFileStore struct {
	mu    sync.RWMutex
	files map[string]*StoredFile
}

func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		files: make(map[string]*StoredFile),
	}
}

func (s *MemoryFileStore) IsReady(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryFileStore) Name() string {
	return "FileStore[memory]"
}

func (s *MemoryFileStore) Put(ctx context.Context, file StoredFile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[file.ID] = &file
	return nil
}

func (s *MemoryFileStore) Get(ctx context.Context, id string) (*StoredFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[id]
	if !ok {
		return nil, apperror.ErrFileNotFound
	}
	cp := *f
	return &cp, nil
}

// ListByOwner returns the owner's files, newest first.
func (s *MemoryFileStore) ListByOwner(ctx context.Context, ownerID string) ([]filetypes.File, error) {
	s.mu.RLock()
	out := make([]filetypes.File, 0)
	for _, f := range s.files {
		if f.OwnerID == ownerID {
			out = append(out, f.File)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt == out[j].CreatedAt {
			return out[i].Filename < out[j].Filename
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}

func (s *MemoryFileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[id]; !ok {
		return apperror.ErrFileNotFound
	}
	delete(s.files, id)
	return nil
}
