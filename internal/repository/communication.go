package repository

import (
	"context"
	"time"

	"logitrack/internal/models"
	"logitrack/internal/store"
)

type NotificationRepository struct {
	base
}

func NewNotificationRepository(db store.Store, now func() time.Time) *NotificationRepository {
	return &NotificationRepository{base: newBase(db, models.TableNotifications, now, false)}
}

// ForUser returns the 50 newest notifications addressed to userID.
func (r *NotificationRepository) ForUser(ctx context.Context, userID string) ([]models.Notification, error) {
	q := store.From(r.table).
		Where(store.Eq("user_id", userID)).
		OrderBy("created_at", true).
		Take(50)
	return list[models.Notification](ctx, r.db, q)
}

func (r *NotificationRepository) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return r.db.Count(ctx, store.From(r.table).Where(store.Eq("user_id", userID), store.Eq("is_read", false)))
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if n.ID == "" {
		n.ID = NewID()
	}
	n.CreatedAt = r.now()
	if err := r.insert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read. A notification owned
// by someone else is reported as missing.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	n, err := r.db.UpdateWhere(ctx,
		store.From(r.table).Where(store.Eq("_id", id), store.Eq("user_id", userID)),
		map[string]interface{}{"is_read": true, "read_at": r.now()})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("update", r.table, id)
	}
	return nil
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return r.db.UpdateWhere(ctx,
		store.From(r.table).Where(store.Eq("user_id", userID), store.Eq("is_read", false)),
		map[string]interface{}{"is_read": true, "read_at": r.now()})
}

type MessageRepository struct {
	base
}

func NewMessageRepository(db store.Store, now func() time.Time) *MessageRepository {
	return &MessageRepository{base: newBase(db, models.TableMessages, now, false)}
}

// ForUser returns the 100 newest direct messages sent or received by userID.
func (r *MessageRepository) ForUser(ctx context.Context, userID string) ([]models.Message, error) {
	q := store.From(r.table).
		Where(store.Or(store.Eq("sender_id", userID), store.Eq("receiver_id", userID))).
		OrderBy("created_at", true).
		Take(100)
	return list[models.Message](ctx, r.db, q)
}

// Thread returns the messages exchanged by two users, oldest first.
func (r *MessageRepository) Thread(ctx context.Context, userID, partnerID string) ([]models.Message, error) {
	pair := []string{userID, partnerID}
	q := store.From(r.table).
		Where(store.In("sender_id", pair), store.In("receiver_id", pair)).
		OrderBy("created_at", false)
	rows, err := list[models.Message](ctx, r.db, q)
	if err != nil {
		return nil, err
	}
	// drop notes a user sent to themselves
	out := rows[:0]
	for _, m := range rows {
		if m.ReceiverID != nil && *m.ReceiverID != m.SenderID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MessageRepository) Send(ctx context.Context, m *models.Message) (*models.Message, error) {
	if m.ReceiverID == nil && m.Channel == nil {
		return nil, store.Errorf(store.KindValidation, "create", r.table, "message needs a receiver or a channel")
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	m.IsRead = false
	m.ReadAt = nil
	m.CreatedAt = r.now()
	if err := r.insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// MarkRead marks a message read by its receiver.
func (r *MessageRepository) MarkRead(ctx context.Context, userID, id string) error {
	n, err := r.db.UpdateWhere(ctx,
		store.From(r.table).Where(store.Eq("_id", id), store.Eq("receiver_id", userID)),
		map[string]interface{}{"is_read": true, "read_at": r.now()})
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("update", r.table, id)
	}
	return nil
}

// MarkConversationRead marks every unread message senderID sent to userID as
// read and returns how many changed.
func (r *MessageRepository) MarkConversationRead(ctx context.Context, userID, senderID string) (int64, error) {
	return r.db.UpdateWhere(ctx,
		store.From(r.table).Where(
			store.Eq("sender_id", senderID),
			store.Eq("receiver_id", userID),
			store.Eq("is_read", false),
		),
		map[string]interface{}{"is_read": true, "read_at": r.now()})
}

// Profiles loads the public profiles of the given user ids.
func (r *MessageRepository) Profiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	return byIDs(ctx, r.db, models.TableProfiles, ids, func(p models.Profile) string { return p.ID })
}
