package model

import "time"

type Organization struct {
	OrgID          uint64    `gorm:"column:org_id;primaryKey;autoIncrement"`
	Name           string    `gorm:"column:name;type:text;not null"`
	InstallationID int64     `gorm:"column:installation_id;not null;uniqueIndex"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (Organization) TableName() string {
	return "organizations"
}
