package models

import "time"

// DriverPoints is an append-only credit in the points ledger.
type DriverPoints struct {
	ID       string    `bson:"_id" json:"id"`
	DriverID string    `bson:"driver_id" json:"driverId" validate:"required"`
	Points   int       `bson:"points" json:"points"`
	Reason   string    `bson:"reason" json:"reason" validate:"required"`
	Category *string   `bson:"category,omitempty" json:"category,omitempty"`
	EarnedAt time.Time `bson:"earned_at" json:"earnedAt"`
}

type Challenge struct {
	ID            string    `bson:"_id" json:"id"`
	Title         string    `bson:"title" json:"title" validate:"required"`
	Description   *string   `bson:"description,omitempty" json:"description,omitempty"`
	ChallengeType string    `bson:"challenge_type" json:"challengeType" validate:"required"`
	TargetValue   *float64  `bson:"target_value,omitempty" json:"targetValue,omitempty" validate:"omitempty,gt=0"`
	PointsReward  int       `bson:"points_reward" json:"pointsReward" validate:"gte=0"`
	StartDate     time.Time `bson:"start_date" json:"startDate" validate:"required"`
	EndDate       time.Time `bson:"end_date" json:"endDate" validate:"required,gtfield=StartDate"`
	IsActive      bool      `bson:"is_active" json:"isActive"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
}

type ChallengeUpdate struct {
	Title        *string    `bson:"title,omitempty" json:"title,omitempty" validate:"omitempty,min=1"`
	Description  *string    `bson:"description,omitempty" json:"description,omitempty"`
	TargetValue  *float64   `bson:"target_value,omitempty" json:"targetValue,omitempty" validate:"omitempty,gt=0"`
	PointsReward *int       `bson:"points_reward,omitempty" json:"pointsReward,omitempty" validate:"omitempty,gte=0"`
	EndDate      *time.Time `bson:"end_date,omitempty" json:"endDate,omitempty"`
	IsActive     *bool      `bson:"is_active,omitempty" json:"isActive,omitempty"`
}

type DriverChallenge struct {
	ID           string     `bson:"_id" json:"id"`
	DriverID     string     `bson:"driver_id" json:"driverId" validate:"required"`
	ChallengeID  string     `bson:"challenge_id" json:"challengeId" validate:"required"`
	CurrentValue *float64   `bson:"current_value,omitempty" json:"currentValue,omitempty" validate:"omitempty,gte=0"`
	IsCompleted  bool       `bson:"is_completed" json:"isCompleted"`
	CompletedAt  *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
	CreatedAt    time.Time  `bson:"created_at" json:"createdAt"`

	Challenge *Challenge `bson:"-" json:"challenge,omitempty" validate:"-"`
	Progress  float64    `bson:"-" json:"progress"`
}
