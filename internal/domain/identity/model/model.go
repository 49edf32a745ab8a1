package model

import (
	"time"

	"github.com/google/uuid"
)

// User is the persisted identity record. EditedAt stays NULL until the
// profile-edit flow lands.
type User struct {
	ID           uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey"`
	Username     string     `gorm:"column:username;not null"`
	Email        string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string     `gorm:"column:password_hash;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null"`
	EditedAt     *time.Time `gorm:"column:edited_at"`
}

func (User) TableName() string { return "users" }

// Invite is the outcome of the invite step: the signed token that was mailed
// out, plus its hard expiry.
type Invite struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	UserID       uuid.UUID
}

// AccessGrant is what a refresh yields: a fresh access token only, the
// refresh token itself is never reissued.
type AccessGrant struct {
	AccessToken string
	AccessTTL   time.Duration
	UserID      uuid.UUID
}
