package aggregate

import (
	"math"
	"sort"

	"logitrack/internal/models"
)

type LeaderboardEntry struct {
	ID          string   `json:"id"`
	FullName    string   `json:"fullName"`
	AvatarURL   *string  `json:"avatarUrl,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	TotalPoints int      `json:"totalPoints"`
}

// Leaderboard ranks drivers by summed points. Ties keep the driver order.
func Leaderboard(drivers []models.Driver, points []models.DriverPoints) []LeaderboardEntry {
	out := withTotals(drivers, points)
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	return out
}

// Ranking attaches point totals to drivers already ordered by rating. The
// order is kept.
func Ranking(drivers []models.Driver, points []models.DriverPoints) []LeaderboardEntry {
	return withTotals(drivers, points)
}

func withTotals(drivers []models.Driver, points []models.DriverPoints) []LeaderboardEntry {
	totals := make(map[string]int, len(drivers))
	for _, p := range points {
		totals[p.DriverID] += p.Points
	}
	out := make([]LeaderboardEntry, len(drivers))
	for i, d := range drivers {
		out[i] = LeaderboardEntry{
			ID:          d.ID,
			FullName:    d.FullName,
			AvatarURL:   d.AvatarURL,
			Rating:      d.Rating,
			TotalPoints: totals[d.ID],
		}
	}
	return out
}

// ChallengeProgress is the completion percentage of a driver challenge,
// capped at 100.
func ChallengeProgress(current, target *float64) float64 {
	if target == nil || *target <= 0 || current == nil {
		return 0
	}
	return math.Min(100, 100*(*current / *target))
}

// Conversations groups userID's messages by partner. messages must be newest
// first; the first message seen for a partner becomes its last message.
func Conversations(userID string, messages []models.Message, profiles map[string]models.Profile) []models.Conversation {
	index := make(map[string]int)
	var out []models.Conversation
	for _, m := range messages {
		partner := m.SenderID
		if m.SenderID == userID {
			if m.ReceiverID == nil {
				continue
			}
			partner = *m.ReceiverID
		}
		i, ok := index[partner]
		if !ok {
			conv := models.Conversation{PartnerID: partner, LastMessage: m}
			if p, found := profiles[partner]; found {
				p := p
				conv.Partner = &p
			}
			out = append(out, conv)
			i = len(out) - 1
			index[partner] = i
		}
		if !m.IsRead && m.ReceiverID != nil && *m.ReceiverID == userID {
			out[i].UnreadCount++
		}
	}
	if out == nil {
		out = []models.Conversation{}
	}
	return out
}
