package models

import (
	"strings"
	"time"
)

type User struct {
	ID               int64     `json:"id"`
	Email            string    `json:"email"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	MiddleName       string    `json:"middle_name,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	AvatarURL        string    `json:"avatar,omitempty"`
	TelegramChatID   int64     `json:"telegram_chat_id,omitempty"`
	PasswordHash     string    `json:"-"`
	IsActive         bool      `json:"is_active"`
	IsSuperuser      bool      `json:"is_superuser"`
	RegistrationDate time.Time `json:"registration_date"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// FullName renders "Last First Middle" the way profiles are listed.
func (u *User) FullName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{u.LastName, u.FirstName, u.MiddleName} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

type UserPhoto struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	URL         string    `json:"url"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
