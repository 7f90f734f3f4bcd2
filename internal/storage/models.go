package storage

import "time"

// InviteBinding is an invite-to-role binding added through slash commands
type InviteBinding struct {
	Code      string
	Category  string
	CreatedBy string // Discord user ID
	CreatedAt time.Time
	UpdatedAt time.Time
}
