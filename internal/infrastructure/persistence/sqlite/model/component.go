package model

type Component struct {
	ComponentID uint64  `gorm:"column:component_id;primaryKey;autoIncrement"`
	OrgID       uint64  `gorm:"column:org_id;not null;uniqueIndex:idx_components_org_key"`
	Key         string  `gorm:"column:key;type:text;not null;uniqueIndex:idx_components_org_key"`
	Name        string  `gorm:"column:name;type:text;not null"`
	Multiplier  float64 `gorm:"column:multiplier;not null"`
}

func (Component) TableName() string {
	return "components"
}
