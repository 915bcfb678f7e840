package model

type SeverityLevel struct {
	SeverityID uint64  `gorm:"column:severity_id;primaryKey;autoIncrement"`
	OrgID      uint64  `gorm:"column:org_id;not null;uniqueIndex:idx_severities_org_key"`
	Key        string  `gorm:"column:key;type:text;not null;uniqueIndex:idx_severities_org_key"`
	Name       string  `gorm:"column:name;type:text;not null"`
	BasePoints float64 `gorm:"column:base_points;not null"`
	Rank       int     `gorm:"column:rank;not null"`
}

func (SeverityLevel) TableName() string {
	return "severity_levels"
}
