package service

import (
	"context"
	"strings"
	"time"

	"spinnergy/models"
	"spinnergy/retention"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Chat history limits
const (
	MaxChatMessageRunes = 2000
	MaxChatHistoryTurns = 200
)

// chatHistoryService implements the ChatHistoryService interface
type chatHistoryService struct {
	uowFactory     UnitOfWorkFactory
	windowDays     int
	storageTimeout time.Duration
	metrics        Metrics
	now            func() time.Time
}

// NewChatHistoryService creates a chat history service that forgets turns older than windowDays
func NewChatHistoryService(uowFactory UnitOfWorkFactory, windowDays int, metrics Metrics, now func() time.Time) ChatHistoryService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &chatHistoryService{
		uowFactory:     uowFactory,
		windowDays:     windowDays,
		storageTimeout: DefaultStorageTimeout,
		metrics:        metricsOrNoop(metrics),
		now:            now,
	}
}

func sanitizeMessage(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > MaxChatMessageRunes {
		s = string(runes[:MaxChatMessageRunes])
	}
	return s
}

// Record stores a chat exchange and prunes the account's expired turns
func (s *chatHistoryService) Record(ctx context.Context, accountID, message, reply string) (*models.ChatTurn, error) {
	message = sanitizeMessage(message)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	if _, err := requireAccount(ctx, uow, accountID); err != nil {
		return nil, err
	}

	now := s.now()
	turn := &models.ChatTurn{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Message:   message,
		Reply:     strings.TrimSpace(reply),
		CreatedAt: now,
	}
	if err := uow.ChatRepository().Save(ctx, turn); err != nil {
		return nil, storageError("save chat turn", err)
	}

	pruned, err := uow.ChatRepository().DeleteByAccountBefore(ctx, accountID, retention.Cutoff(now, s.windowDays))
	if err != nil {
		return nil, storageError("prune chat history", err)
	}

	if err := uow.Commit(); err != nil {
		return nil, storageError("commit transaction", err)
	}

	if pruned > 0 {
		s.metrics.RecordRetentionPruned("chat", pruned)
		log.WithFields(log.Fields{
			"accountID": accountID,
			"pruned":    pruned,
		}).Debug("Pruned expired chat turns")
	}

	return turn, nil
}

// History returns the retained turns, oldest first
func (s *chatHistoryService) History(ctx context.Context, accountID string) ([]*models.ChatTurn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, storageError("begin transaction", err)
	}
	defer uow.Rollback()

	if _, err := requireAccount(ctx, uow, accountID); err != nil {
		return nil, err
	}

	turns, err := uow.ChatRepository().GetByAccountSince(ctx, accountID, retention.Cutoff(s.now(), s.windowDays), MaxChatHistoryTurns)
	if err != nil {
		return nil, storageError("get chat history", err)
	}
	return turns, nil
}
