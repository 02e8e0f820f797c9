package models

import "time"

// User is the persisted account record. It never leaves the credential layer
// as-is; handlers only ever see PublicUser.
type User struct {
	ID            string    `json:"-"`
	UserName      string    `json:"-"`
	Email         string    `json:"-"`
	FullName      string    `json:"-"`
	AvatarURL     string    `json:"-"`
	CoverImageURL string    `json:"-"`
	PasswordHash  string    `json:"-"`
	RefreshToken  string    `json:"-"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID            string    `json:"id"`
	UserName      string    `json:"userName"`
	Email         string    `json:"email"`
	FullName      string    `json:"fullName"`
	AvatarURL     string    `json:"avatarUrl"`
	CoverImageURL string    `json:"coverImageUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ChannelProfile aggregates a user's public view with subscription counts.
type ChannelProfile struct {
	ID                string `json:"id"`
	UserName          string `json:"userName"`
	FullName          string `json:"fullName"`
	Email             string `json:"email"`
	AvatarURL         string `json:"avatarUrl"`
	CoverImageURL     string `json:"coverImageUrl"`
	SubscriberCount   int64  `json:"subscriberCount"`
	SubscribedToCount int64  `json:"subscribedToCount"`
	IsSubscribed      bool   `json:"isSubscribed"`
}

// ChannelStats are the raw subscription aggregates for one channel.
type ChannelStats struct {
	Subscribers  int64
	SubscribedTo int64
	IsSubscribed bool
}
