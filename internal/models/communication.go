package models

import "time"

type Notification struct {
	ID               string                 `bson:"_id" json:"id"`
	UserID           string                 `bson:"user_id" json:"userId" validate:"required"`
	NotificationType string                 `bson:"notification_type" json:"notificationType" validate:"required"`
	Title            string                 `bson:"title" json:"title" validate:"required"`
	Message          string                 `bson:"message" json:"message" validate:"required"`
	Link             *string                `bson:"link,omitempty" json:"link,omitempty"`
	Metadata         map[string]interface{} `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IsRead           bool                   `bson:"is_read" json:"isRead"`
	ReadAt           *time.Time             `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt        time.Time              `bson:"created_at" json:"createdAt"`
}

type Message struct {
	ID          string     `bson:"_id" json:"id"`
	SenderID    string     `bson:"sender_id" json:"senderId" validate:"required"`
	ReceiverID  *string    `bson:"receiver_id,omitempty" json:"receiverId,omitempty"`
	Channel     *string    `bson:"channel,omitempty" json:"channel,omitempty"`
	Content     string     `bson:"content" json:"content" validate:"required,max=4000"`
	Attachments []string   `bson:"attachments,omitempty" json:"attachments,omitempty"`
	IsRead      bool       `bson:"is_read" json:"isRead"`
	ReadAt      *time.Time `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
}

// Profile is the public identity of a user taking part in messaging.
type Profile struct {
	ID        string    `bson:"_id" json:"id"`
	Email     string    `bson:"email" json:"email"`
	FullName  *string   `bson:"full_name,omitempty" json:"fullName,omitempty"`
	Phone     *string   `bson:"phone,omitempty" json:"phone,omitempty"`
	AvatarURL *string   `bson:"avatar_url,omitempty" json:"avatarUrl,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Conversation summarises the message thread with one partner.
type Conversation struct {
	PartnerID   string   `json:"partnerId"`
	Partner     *Profile `json:"partner,omitempty"`
	LastMessage Message  `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}
