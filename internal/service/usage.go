// Package service contains the business logic layer.
//
// This file implements daily chat accounting: building the usage snapshot a
// subscriber's entitlement is computed from, and reserving a slot before a
// conversation turn is forwarded upstream.
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/ohscentric/internal/domain"
	"github.com/DukeRupert/ohscentric/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageService defines operations on the daily chat counter.
type UsageService interface {
	// Snapshot returns the user's current entitlement record.
	Snapshot(ctx context.Context, user *domain.User) (domain.UsageRecord, error)

	// Reserve claims one of today's chats. It returns an EPAYMENT error when
	// the entitlement does not allow another turn. The reservation must be
	// released if the turn does not complete.
	Reserve(ctx context.Context, user *domain.User) (*Reservation, error)

	// Release gives back a reserved chat after a failed turn.
	Release(ctx context.Context, r *Reservation) error

	// PruneBefore deletes counters for days before cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Reservation is a claimed chat slot.
type Reservation struct {
	UserID uuid.UUID
	Day    time.Time
	Count  int // usage including this reservation
}

// UsageStore is the subset of repository queries the usage service needs.
type UsageStore interface {
	GetChatUsage(ctx context.Context, arg repository.GetChatUsageParams) (int32, error)
	ReserveChat(ctx context.Context, arg repository.ReserveChatParams) (int32, error)
	ReleaseChat(ctx context.Context, arg repository.ReleaseChatParams) error
	DeleteChatUsageBefore(ctx context.Context, usedOn time.Time) (int64, error)
}

var _ UsageStore = (*repository.Queries)(nil)

// =============================================================================
// Implementation
// =============================================================================

type usageService struct {
	store  UsageStore
	now    func() time.Time
	logger *slog.Logger
}

// NewUsageService creates a new UsageService.
func NewUsageService(store UsageStore, logger *slog.Logger) UsageService {
	return &usageService{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

func (s *usageService) Snapshot(ctx context.Context, user *domain.User) (domain.UsageRecord, error) {
	return s.snapshotAt(ctx, user, s.now(), "UsageService.Snapshot")
}

// snapshotAt reads the counter for the usage day containing now.
func (s *usageService) snapshotAt(ctx context.Context, user *domain.User, now time.Time, op string) (domain.UsageRecord, error) {
	used, err := s.store.GetChatUsage(ctx, repository.GetChatUsageParams{
		UserID: user.ID,
		UsedOn: domain.UsageDay(now),
	})
	if err != nil {
		return domain.UsageRecord{}, domain.Internal(err, op, "failed to read chat usage")
	}
	return user.UsageSnapshot(int(used), now), nil
}

func (s *usageService) Reserve(ctx context.Context, user *domain.User) (*Reservation, error) {
	const op = "UsageService.Reserve"

	// The check and the reservation must land on the same usage day.
	now := s.now()
	day := domain.UsageDay(now)
	record, err := s.snapshotAt(ctx, user, now, op)
	if err != nil {
		return nil, err
	}
	if !domain.CanSendMessage(&record) {
		reason := domain.UpgradeReasonFor(&record)
		s.logger.Info("chat rejected by entitlement",
			"user_id", user.ID,
			"plan", record.Plan,
			"used", record.ChatsUsedToday,
			"limit", record.DailyLimit,
			"reason", reason,
		)
		return nil, domain.QuotaExceeded(op, reason)
	}

	limit := int32(record.DailyLimit)
	if record.IsUnlimited {
		limit = 0
	}

	count, err := s.store.ReserveChat(ctx, repository.ReserveChatParams{
		UserID:     user.ID,
		UsedOn:     day,
		DailyLimit: limit,
	})
	if err != nil {
		// The conditional upsert returns no row when a concurrent request
		// took the last slot.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.QuotaExceeded(op, domain.UpgradeReasonDailyLimit)
		}
		return nil, domain.Internal(err, op, "failed to reserve chat")
	}

	return &Reservation{UserID: user.ID, Day: day, Count: int(count)}, nil
}

func (s *usageService) Release(ctx context.Context, r *Reservation) error {
	const op = "UsageService.Release"

	if r == nil {
		return nil
	}
	err := s.store.ReleaseChat(ctx, repository.ReleaseChatParams{UserID: r.UserID, UsedOn: r.Day})
	if err != nil {
		return domain.Internal(err, op, "failed to release chat")
	}
	s.logger.Debug("chat reservation released", "user_id", r.UserID)
	return nil
}

func (s *usageService) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "UsageService.PruneBefore"

	n, err := s.store.DeleteChatUsageBefore(ctx, domain.UsageDay(cutoff))
	if err != nil {
		return 0, domain.Internal(err, op, "failed to prune chat usage")
	}
	return n, nil
}

var _ UsageService = (*usageService)(nil)
