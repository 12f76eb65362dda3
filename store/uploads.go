package store

import (
	"context"
	"maps"
	"sync"
	"time"

	apperror "github.com/Yulian302/lfusys-client/errors"
)

// UploadSession is an open multipart upload on the dev server.
type UploadSession struct {
	ID          string
	OwnerID     string
	Filename    string
	ContentType string
	TotalSize   int64
	ChunkSize   int64
	TotalParts  int
	Parts       map[int]StoredPart
	CreatedAt   time.Time
}

type StoredPart struct {
	ETag string
	Data []byte
}

type UploadsStore interface {
	Create(ctx context.Context, session UploadSession) error
	Get(ctx context.Context, id string) (*UploadSession, error)
	PutPart(ctx context.Context, id string, partNumber int, part StoredPart) error
	Delete(ctx context.Context, id string) error
	CountActive(ctx context.Context, ownerID string) (int, error)

	ReadinessCheck
}

type MemoryUploadsStore struct {
	mu       sync.RWMutex
	sessions map[string]*UploadSession
}

func NewMemoryUploadsStore() *MemoryUploadsStore {
	return &MemoryUploadsStore{
		sessions: make(map[string]*UploadSession),
	}
}

func (s *MemoryUploadsStore) IsReady(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryUploadsStore) Name() string {
	return "UploadsStore[memory]"
}

func (s *MemoryUploadsStore) Create(ctx context.Context, session UploadSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.Parts == nil {
		session.Parts = make(map[int]StoredPart)
	}
	s.sessions[session.ID] = &session
	return nil
}

// Get returns a snapshot; part data is shared and never mutated.
func (s *MemoryUploadsStore) Get(ctx context.Context, id string) (*UploadSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperror.ErrSessionNotFound
	}
	cp := *sess
	cp.Parts = maps.Clone(sess.Parts)
	return &cp, nil
}

// PutPart stores or replaces one part.
func (s *MemoryUploadsStore) PutPart(ctx context.Context, id string, partNumber int, part StoredPart) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return apperror.ErrSessionNotFound
	}
	sess.Parts[partNumber] = part
	return nil
}

func (s *MemoryUploadsStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return apperror.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

func (s *MemoryUploadsStore) CountActive(ctx context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, sess := range s.sessions {
		if sess.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}
