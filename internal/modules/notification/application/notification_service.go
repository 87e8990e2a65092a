package application

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Broadcaster pushes a payload to every live connection of a user.
type Broadcaster interface {
	SendToUser(userID uuid.UUID, msg []byte)
}

type CreateInput struct {
	UserID   uuid.UUID       `json:"user_id"`
	Source   domain.Source   `json:"source"`
	Severity domain.Severity `json:"severity,omitempty"`
	Title    string          `json:"title"`
	Message  string          `json:"message"`
	Link     string          `json:"link,omitempty"`
}

type NotificationService struct {
	repo        domain.NotificationRepository
	broadcaster Broadcaster
	logger      *zap.Logger
}

func NewNotificationService(repo domain.NotificationRepository, broadcaster Broadcaster, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{repo: repo, broadcaster: broadcaster, logger: logger}
}

// Create persists a notification and pushes it to the owner. A push failure
// does not fail the call; the row is the source of truth.
func (s *NotificationService) Create(ctx context.Context, in CreateInput) (*domain.Notification, error) {
	if in.Source == "" {
		in.Source = domain.SourceGeneric
	}
	if !in.Source.Valid() {
		return nil, domain.ErrInvalidSource
	}
	if !in.Severity.Valid() {
		return nil, domain.ErrInvalidSeverity
	}
	if strings.TrimSpace(in.Message) == "" {
		return nil, domain.ErrEmptyMessage
	}

	n := &domain.Notification{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Source:    in.Source,
		Severity:  in.Severity,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: time.Now().UTC(),
	}
	if in.Link != "" {
		link := in.Link
		n.Link = &link
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.broadcaster != nil {
		msg, err := json.Marshal(n)
		if err != nil {
			s.logger.Warn("[Notification] encode push failed", zap.Error(err))
			return n, nil
		}
		s.broadcaster.SendToUser(n.UserID, msg)
	}

	return n, nil
}

// List clamps the page size to (0, MaxListLimit].
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, filter domain.ListFilter) ([]domain.Notification, error) {
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, domain.ErrInvalidSource
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit > MaxListLimit {
		filter.Limit = MaxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.ListByUser(ctx, userID, filter)
}

func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	return s.repo.MarkAsRead(ctx, notificationID, userID)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

// UnreadCount counts every source when source is empty.
func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID, source domain.Source) (int, error) {
	if source != "" && !source.Valid() {
		return 0, domain.ErrInvalidSource
	}
	return s.repo.UnreadCount(ctx, userID, source)
}
