package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petcuddles/pet-cuddles/internal/modules/notification/domain"
)

type PgNotificationRepository struct {
	db *sqlx.DB
}

func NewPgNotificationRepository(db *sqlx.DB) *PgNotificationRepository {
	return &PgNotificationRepository{db: db}
}

func (r *PgNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO notifications (id, user_id, source, severity, title, message, link, is_read, created_at)
		VALUES (:id, :user_id, :source, :severity, :title, :message, :link, :is_read, :created_at)
	`
	_, err := r.db.NamedExecContext(ctx, query, n)
	return err
}

// ListByUser returns the newest notifications first.
func (r *PgNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.ListFilter) ([]domain.Notification, error) {
	query := `
		SELECT id, user_id, source, severity, title, message, link, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2::text = '' OR source = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	notifications := []domain.Notification{}
	err := r.db.SelectContext(ctx, &notifications, query, userID, string(filter.Source), filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAsRead is scoped to the owner. Marking an already read row succeeds.
func (r *PgNotificationRepository) MarkAsRead(ctx context.Context, notificationID, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *PgNotificationRepository) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE user_id = $1 AND is_read = FALSE
	`
	_, err := r.db.ExecContext(ctx, query, userID)
	return err
}

func (r *PgNotificationRepository) UnreadCount(ctx context.Context, userID uuid.UUID, source domain.Source) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND is_read = FALSE AND ($2::text = '' OR source = $2)
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, userID, string(source))
	return count, err
}
