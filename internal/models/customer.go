package models

import "time"

// Contact channels for completion-code delivery.
const (
	ChannelTelegram = "telegram"
	ChannelSMS      = "sms"
)

type Customer struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	ContactChannel string    `json:"contact_channel"`
	TelegramChatID int64     `json:"telegram_chat_id"`
	IsBlacklisted  bool      `json:"is_blacklisted"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Contact is the resolved delivery target for a customer's notifications.
type Contact struct {
	CustomerID     int64  `json:"customer_id"`
	Channel        string `json:"channel"`
	Phone          string `json:"phone"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}

type Provider struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
