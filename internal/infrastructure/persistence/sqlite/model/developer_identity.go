package model

import "time"

type DeveloperIdentity struct {
	DeveloperID    uint64    `gorm:"column:developer_id;primaryKey;autoIncrement"`
	PlatformUserID int64     `gorm:"column:platform_user_id;not null;uniqueIndex"`
	Login          string    `gorm:"column:login;type:text;not null;index"`
	AvatarURL      string    `gorm:"column:avatar_url;type:text;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (DeveloperIdentity) TableName() string {
	return "developer_identities"
}
