package model

import "time"

type PullRequest struct {
	PullRequestID uint64    `gorm:"column:pull_request_id;primaryKey;autoIncrement"`
	OrgID         uint64    `gorm:"column:org_id;not null;uniqueIndex:idx_prs_org_platform"`
	RepoID        uint64    `gorm:"column:repo_id;not null;index"`
	PlatformPRID  int64     `gorm:"column:platform_pr_id;not null;uniqueIndex:idx_prs_org_platform"`
	Number        int       `gorm:"column:number;not null"`
	Title         string    `gorm:"column:title;type:text;not null"`
	Body          string    `gorm:"column:body;type:text;not null"`
	AuthorID      uint64    `gorm:"column:author_id;not null;index"`
	MergedAt      time.Time `gorm:"column:merged_at;not null;index"`
	Additions     int       `gorm:"column:additions;not null"`
	Deletions     int       `gorm:"column:deletions;not null"`
	ChangedFiles  int       `gorm:"column:changed_files;not null"`
	HeadSHA       string    `gorm:"column:head_sha;type:text;not null"`
	BaseSHA       string    `gorm:"column:base_sha;type:text;not null"`
	HTMLURL       string    `gorm:"column:html_url;type:text;not null"`
	LastSyncedAt  time.Time `gorm:"column:last_synced_at;not null"`
}

func (PullRequest) TableName() string {
	return "pull_requests"
}
