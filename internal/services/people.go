package services

import (
	"context"

	"logitrack/internal/aggregate"
	"logitrack/internal/models"
	"logitrack/internal/store"
	"logitrack/pkg/cache"
)

func (s *Service) Notifications(ctx context.Context, userID string) cache.Result[[]models.Notification] {
	return cache.Query(ctx, s.cache, cache.K(QueryNotifications, userID, "list"), func(ctx context.Context) ([]models.Notification, error) {
		return s.repos.Notifications.ForUser(ctx, userID)
	}, defaults)
}

func (s *Service) UnreadNotificationCount(ctx context.Context, userID string) cache.Result[int64] {
	return cache.Query(ctx, s.cache, cache.K(QueryNotifications, userID, "unread-count"), func(ctx context.Context) (int64, error) {
		return s.repos.Notifications.UnreadCount(ctx, userID)
	}, defaults)
}

func (s *Service) CreateNotification(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	created, err := s.repos.Notifications.Create(ctx, n)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableNotifications, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, userID, id string) error {
	if err := s.repos.Notifications.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.changed(models.TableNotifications, store.EventUpdate, id, map[string]interface{}{"user_id": userID})
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	n, err := s.repos.Notifications.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.changed(models.TableNotifications, store.EventUpdate, "", map[string]interface{}{"user_id": userID})
	}
	return n, nil
}

// Messages returns every message sent or received by userID, newest first.
func (s *Service) Messages(ctx context.Context, userID string) cache.Result[[]models.Message] {
	return cache.Query(ctx, s.cache, MessagesKey(userID), func(ctx context.Context) ([]models.Message, error) {
		return s.repos.Messages.ForUser(ctx, userID)
	}, defaults)
}

func (s *Service) Thread(ctx context.Context, userID, partnerID string) cache.Result[[]models.Message] {
	return cache.Query(ctx, s.cache, threadKey(userID, partnerID), func(ctx context.Context) ([]models.Message, error) {
		return s.repos.Messages.Thread(ctx, userID, partnerID)
	}, defaults)
}

func (s *Service) Conversations(ctx context.Context, userID string) cache.Result[[]models.Conversation] {
	return cache.Query(ctx, s.cache, ConversationsKey(userID), func(ctx context.Context) ([]models.Conversation, error) {
		messages, err := s.repos.Messages.ForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		partners := make(map[string]bool)
		var ids []string
		for _, m := range messages {
			for _, id := range []string{m.SenderID, deref(m.ReceiverID)} {
				if id != "" && id != userID && !partners[id] {
					partners[id] = true
					ids = append(ids, id)
				}
			}
		}
		profiles, err := s.repos.Messages.Profiles(ctx, ids)
		if err != nil {
			return nil, err
		}
		out := aggregate.Conversations(userID, messages, profiles)
		if out == nil {
			out = []models.Conversation{}
		}
		return out, nil
	}, defaults)
}

// SendMessage stores m as sent by senderID.
func (s *Service) SendMessage(ctx context.Context, senderID string, m *models.Message) (*models.Message, error) {
	m.SenderID = senderID
	created, err := s.repos.Messages.Send(ctx, m)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableMessages, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) MarkMessageRead(ctx context.Context, userID, id string) error {
	if err := s.repos.Messages.MarkRead(ctx, userID, id); err != nil {
		return err
	}
	s.changed(models.TableMessages, store.EventUpdate, id, nil)
	return nil
}

// MarkConversationRead clears the unread messages partnerID sent to userID.
// Both users' message and conversation lists are invalidated.
func (s *Service) MarkConversationRead(ctx context.Context, userID, partnerID string) (int64, error) {
	n, err := s.repos.Messages.MarkConversationRead(ctx, userID, partnerID)
	if err != nil {
		return 0, err
	}
	s.changed(models.TableMessages, store.EventUpdate, "", map[string]interface{}{
		"sender_id":   partnerID,
		"receiver_id": userID,
	})
	return n, nil
}

func (s *Service) Challenges(ctx context.Context) cache.Result[[]models.Challenge] {
	return cache.Query(ctx, s.cache, cache.K(QueryChallenges), s.repos.Gamification.Challenges, defaults)
}

func (s *Service) ActiveChallenges(ctx context.Context) cache.Result[[]models.Challenge] {
	return cache.Query(ctx, s.cache, cache.K(QueryActiveChallenges), s.repos.Gamification.ActiveChallenges, defaults)
}

func (s *Service) CreateChallenge(ctx context.Context, c *models.Challenge) (*models.Challenge, error) {
	created, err := s.repos.Gamification.CreateChallenge(ctx, c)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableChallenges, store.EventInsert, created.ID, created)
	return created, nil
}

func (s *Service) UpdateChallenge(ctx context.Context, id string, update models.ChallengeUpdate) (*models.Challenge, error) {
	updated, err := s.repos.Gamification.UpdateChallenge(ctx, id, update)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableChallenges, store.EventUpdate, id, updated)
	return updated, nil
}

// DriverChallenges returns a driver's enrolments with their progress percentage.
func (s *Service) DriverChallenges(ctx context.Context, driverID string) cache.Result[[]models.DriverChallenge] {
	return cache.Query(ctx, s.cache, cache.K(QueryDriverChallenges, driverID), func(ctx context.Context) ([]models.DriverChallenge, error) {
		rows, err := s.repos.Gamification.DriverChallenges(ctx, driverID)
		if err != nil {
			return nil, err
		}
		for i := range rows {
			if rows[i].Challenge != nil {
				rows[i].Progress = aggregate.ChallengeProgress(rows[i].CurrentValue, rows[i].Challenge.TargetValue)
			}
		}
		return rows, nil
	}, defaults)
}

func (s *Service) DriverPoints(ctx context.Context, driverID string) cache.Result[[]models.DriverPoints] {
	return cache.Query(ctx, s.cache, cache.K(QueryDriverPoints, driverID), func(ctx context.Context) ([]models.DriverPoints, error) {
		return s.repos.Gamification.Points(ctx, driverID)
	}, defaults)
}

func (s *Service) AwardPoints(ctx context.Context, p *models.DriverPoints) (*models.DriverPoints, error) {
	created, err := s.repos.Gamification.AwardPoints(ctx, p)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableDriverPoints, store.EventInsert, created.ID, created)
	return created, nil
}

// RecordChallengeProgress may also credit the reward, so both the enrolment
// and the points ledger are treated as changed.
func (s *Service) RecordChallengeProgress(ctx context.Context, driverID, challengeID string, value float64) (*models.DriverChallenge, error) {
	dc, err := s.repos.Gamification.RecordProgress(ctx, driverID, challengeID, value)
	if err != nil {
		return nil, err
	}
	s.changed(models.TableDriverChallenges, store.EventUpdate, dc.ID, dc)
	if dc.IsCompleted {
		s.changed(models.TableDriverPoints, store.EventInsert, "", nil)
	}
	return dc, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
