package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/storage"
	"github.com/google/uuid"
)

// DefaultTranscriptLimit bounds how many turns are kept per subscriber.
const DefaultTranscriptLimit = 200

// maxTranscriptBytes caps a stored transcript document.
const maxTranscriptBytes = 2 << 20

// TranscriptService persists each subscriber's conversation so the
// assistant can restore it across sessions.
type TranscriptService interface {
	// Load returns the stored transcript, or an empty one if none exists.
	Load(ctx context.Context, userID uuid.UUID) (*domain.Transcript, error)

	// Append adds turns to the transcript, trimming the oldest beyond the limit.
	Append(ctx context.Context, userID uuid.UUID, turns ...domain.ConversationTurn) error

	// Clear removes the stored transcript. Idempotent.
	Clear(ctx context.Context, userID uuid.UUID) error
}

type transcriptService struct {
	store  storage.Storage
	limit  int
	now    func() time.Time
	logger *slog.Logger

	// locks serialises read-modify-write per user within this process.
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewTranscriptService creates a TranscriptService backed by object storage.
func NewTranscriptService(store storage.Storage, limit int, logger *slog.Logger) TranscriptService {
	if limit <= 0 {
		limit = DefaultTranscriptLimit
	}
	return &transcriptService{
		store:  store,
		limit:  limit,
		now:    time.Now,
		logger: logger,
	}
}

// TranscriptKey is the storage key of a subscriber's transcript.
func TranscriptKey(userID uuid.UUID) string {
	return fmt.Sprintf("transcripts/%s.json", userID)
}

func (s *transcriptService) lock(userID uuid.UUID) func() {
	m, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *transcriptService) Load(ctx context.Context, userID uuid.UUID) (*domain.Transcript, error) {
	const op = "TranscriptService.Load"

	rc, _, err := s.store.Get(ctx, TranscriptKey(userID))
	if err != nil {
		if storage.IsNotFound(err) {
			return &domain.Transcript{}, nil
		}
		return nil, domain.Internal(err, op, "failed to read transcript")
	}
	defer rc.Close()

	var t domain.Transcript
	if err := json.NewDecoder(rc).Decode(&t); err != nil {
		// A corrupt document must not lock the subscriber out of chat.
		s.logger.Warn("discarding unreadable transcript", "user_id", userID, "error", err)
		return &domain.Transcript{}, nil
	}
	return &t, nil
}

func (s *transcriptService) Append(ctx context.Context, userID uuid.UUID, turns ...domain.ConversationTurn) error {
	const op = "TranscriptService.Append"

	if len(turns) == 0 {
		return nil
	}

	unlock := s.lock(userID)
	defer unlock()

	t, err := s.Load(ctx, userID)
	if err != nil {
		return err
	}
	t.Append(s.limit, turns...)
	t.UpdatedAt = s.now().UTC()

	body, err := json.Marshal(t)
	if err != nil {
		return domain.Internal(err, op, "failed to encode transcript")
	}
	err = s.store.Put(ctx, TranscriptKey(userID), bytes.NewReader(body), storage.PutOptions{
		ContentType: storage.DefaultContentType,
		MaxSize:     maxTranscriptBytes,
	})
	if err != nil {
		return domain.Internal(err, op, "failed to store transcript")
	}
	return nil
}

func (s *transcriptService) Clear(ctx context.Context, userID uuid.UUID) error {
	const op = "TranscriptService.Clear"

	unlock := s.lock(userID)
	defer unlock()

	if err := s.store.Delete(ctx, TranscriptKey(userID)); err != nil {
		return domain.Internal(err, op, "failed to clear transcript")
	}
	s.logger.Info("transcript cleared", "user_id", userID)
	return nil
}

var _ TranscriptService = (*transcriptService)(nil)
