package session

import (
	"errors"
	"image"
	"sync"

	"github.com/cjeanneret/FotoBoo/internal/logic/adjust"
)

var (
	// ErrAlreadyPersisted is returned when a second id is recorded for the same capture.
	ErrAlreadyPersisted = errors.New("session already persisted")
	// ErrEmptyID is returned when recording an empty persisted id.
	ErrEmptyID = errors.New("persisted id is empty")
)

// Session is the single active booth session: the raw capture, the edit
// parameters and the backend id once saved. The rendered preview is not
// stored here; it is always derived from (capture, adjustments) and tagged
// with Revision, which changes on every mutation.
type Session struct {
	mu          sync.RWMutex
	raw         image.Image
	adjustments adjust.Adjustments
	persistedID string
	revision    uint64
}

// New returns an empty session with default adjustments.
func New() *Session {
	return &Session{adjustments: adjust.Defaults()}
}

// Snapshot is an immutable copy of the session state.
type Snapshot struct {
	Raw         image.Image
	Adjustments adjust.Adjustments
	PersistedID string
	Revision    uint64
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Raw:         s.raw,
		Adjustments: s.adjustments,
		PersistedID: s.persistedID,
		Revision:    s.revision,
	}
}

// PersistedID returns the backend id, or "" before a successful save.
func (s *Session) PersistedID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.persistedID
}

// Revision returns the mutation counter.
func (s *Session) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// SetRawCapture stores a new frame, replacing any previous one.
func (s *Session) SetRawCapture(img image.Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = img
	s.revision++
	return s.revision
}

// UpdateAdjustments applies fn to a copy of the adjustments and stores the
// result if it validates.
func (s *Session) UpdateAdjustments(fn func(*adjust.Adjustments)) (adjust.Adjustments, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.adjustments
	fn(&next)
	if err := next.Validate(); err != nil {
		return s.adjustments, s.revision, err
	}
	s.adjustments = next
	s.revision++
	return next, s.revision, nil
}

// SetPersistedID records the backend id. It is set at most once until Reset.
func (s *Session) SetPersistedID(id string) error {
	if id == "" {
		return ErrEmptyID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.persistedID != "" {
		return ErrAlreadyPersisted
	}
	s.persistedID = id
	s.revision++
	return nil
}

// Retake clears the capture and resets the adjustments.
func (s *Session) Retake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	s.adjustments = adjust.Defaults()
	s.revision++
}

// Reset returns the session to its initial state for a new photo.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	s.adjustments = adjust.Defaults()
	s.persistedID = ""
	s.revision++
}
