package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"logitrack/internal/api/middleware"
	"logitrack/internal/models"
	"logitrack/internal/services"
	"logitrack/pkg/utils"
)

// PeopleHandler serves the caller's notifications and messages plus driver
// gamification. Per-user data is always scoped to the token's user.
type PeopleHandler struct {
	svc *services.Service
}

type ProgressRequest struct {
	Value float64 `json:"value" validate:"gte=0"`
}

func NewPeopleHandler(svc *services.Service) *PeopleHandler {
	return &PeopleHandler{svc: svc}
}

func (h *PeopleHandler) GetNotifications(c *gin.Context) {
	utils.QueryResponse(c, "Notifications", h.svc.Notifications(c.Request.Context(), middleware.UserID(c)))
}

func (h *PeopleHandler) GetUnreadNotificationCount(c *gin.Context) {
	utils.QueryResponse(c, "Unread notification count", h.svc.UnreadNotificationCount(c.Request.Context(), middleware.UserID(c)))
}

// CreateNotification queues a notification for the user named in the body.
func (h *PeopleHandler) CreateNotification(c *gin.Context) {
	var req models.Notification
	if !bindModel(c, &req) {
		return
	}
	n, err := h.svc.CreateNotification(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Notification created", n, err, "Failed to create notification")
}

func (h *PeopleHandler) MarkNotificationRead(c *gin.Context) {
	err := h.svc.MarkNotificationRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	mutated(c, http.StatusOK, "Notification marked as read", nil, err, "Failed to mark notification as read")
}

func (h *PeopleHandler) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.svc.MarkAllNotificationsRead(c.Request.Context(), middleware.UserID(c))
	mutated(c, http.StatusOK, "Notifications marked as read", gin.H{"updated": n}, err, "Failed to mark notifications as read")
}

func (h *PeopleHandler) GetMessages(c *gin.Context) {
	utils.QueryResponse(c, "Messages", h.svc.Messages(c.Request.Context(), middleware.UserID(c)))
}

func (h *PeopleHandler) GetConversations(c *gin.Context) {
	utils.QueryResponse(c, "Conversations", h.svc.Conversations(c.Request.Context(), middleware.UserID(c)))
}

func (h *PeopleHandler) GetThread(c *gin.Context) {
	utils.QueryResponse(c, "Thread", h.svc.Thread(c.Request.Context(), middleware.UserID(c), c.Param("partnerId")))
}

// SendMessage sends as the caller; a sender in the body is ignored.
func (h *PeopleHandler) SendMessage(c *gin.Context) {
	var req models.Message
	if !bindModel(c, &req) {
		return
	}
	m, err := h.svc.SendMessage(c.Request.Context(), middleware.UserID(c), &req)
	mutated(c, http.StatusCreated, "Message sent", m, err, "Failed to send message")
}

func (h *PeopleHandler) MarkMessageRead(c *gin.Context) {
	err := h.svc.MarkMessageRead(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	mutated(c, http.StatusOK, "Message marked as read", nil, err, "Failed to mark message as read")
}

// MarkThreadRead clears every unread message the partner sent the caller.
func (h *PeopleHandler) MarkThreadRead(c *gin.Context) {
	n, err := h.svc.MarkConversationRead(c.Request.Context(), middleware.UserID(c), c.Param("partnerId"))
	mutated(c, http.StatusOK, "Conversation marked as read", gin.H{"updated": n}, err, "Failed to mark conversation as read")
}

// GetChallenges lists challenges; ?active=true keeps running ones
func (h *PeopleHandler) GetChallenges(c *gin.Context) {
	if flag(c, "active") {
		utils.QueryResponse(c, "Active challenges", h.svc.ActiveChallenges(c.Request.Context()))
		return
	}
	utils.QueryResponse(c, "Challenges", h.svc.Challenges(c.Request.Context()))
}

func (h *PeopleHandler) CreateChallenge(c *gin.Context) {
	var req models.Challenge
	if !bindModel(c, &req) {
		return
	}
	challenge, err := h.svc.CreateChallenge(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Challenge created successfully", challenge, err, "Failed to create challenge")
}

func (h *PeopleHandler) UpdateChallenge(c *gin.Context) {
	var req models.ChallengeUpdate
	if !bindModel(c, &req) {
		return
	}
	challenge, err := h.svc.UpdateChallenge(c.Request.Context(), c.Param("id"), req)
	mutated(c, http.StatusOK, "Challenge updated successfully", challenge, err, "Failed to update challenge")
}

func (h *PeopleHandler) GetDriverChallenges(c *gin.Context) {
	utils.QueryResponse(c, "Driver challenges", h.svc.DriverChallenges(c.Request.Context(), c.Param("id")))
}

func (h *PeopleHandler) GetDriverPoints(c *gin.Context) {
	utils.QueryResponse(c, "Driver points", h.svc.DriverPoints(c.Request.Context(), c.Param("id")))
}

func (h *PeopleHandler) AwardPoints(c *gin.Context) {
	var req models.DriverPoints
	if !bindModel(c, &req) {
		return
	}
	req.DriverID = c.Param("id")
	points, err := h.svc.AwardPoints(c.Request.Context(), &req)
	mutated(c, http.StatusCreated, "Points awarded", points, err, "Failed to award points")
}

func (h *PeopleHandler) RecordChallengeProgress(c *gin.Context) {
	var req ProgressRequest
	if !bindJSON(c, &req) {
		return
	}
	dc, err := h.svc.RecordChallengeProgress(c.Request.Context(), c.Param("id"), c.Param("challengeId"), req.Value)
	mutated(c, http.StatusOK, "Challenge progress recorded", dc, err, "Failed to record challenge progress")
}

func (h *PeopleHandler) GetLeaderboard(c *gin.Context) {
	utils.QueryResponse(c, "Leaderboard", h.svc.Leaderboard(c.Request.Context()))
}

func (h *PeopleHandler) GetDriverRanking(c *gin.Context) {
	utils.QueryResponse(c, "Driver ranking", h.svc.DriverRanking(c.Request.Context()))
}
