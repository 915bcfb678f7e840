package model

import "time"

type TrackedRepo struct {
	RepoID    uint64    `gorm:"column:repo_id;primaryKey;autoIncrement"`
	OrgID     uint64    `gorm:"column:org_id;not null;uniqueIndex:idx_repos_org_full_name"`
	FullName  string    `gorm:"column:full_name;type:text;not null;uniqueIndex:idx_repos_org_full_name"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

func (TrackedRepo) TableName() string {
	return "tracked_repos"
}
