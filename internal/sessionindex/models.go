package sessionindex

import "time"

// SessionModel is the relational row describing one journal file. The
// journal itself stays the canonical record; this table only makes
// sessions enumerable and queryable.
type SessionModel struct {
	ID              string `gorm:"primaryKey;size:64"`
	ParentSessionID string `gorm:"index;size:64"`
	TaskID          string `gorm:"size:64"`
	Path            string `gorm:"uniqueIndex;size:512;not null"`
	EntryCount      int
	LeafEntryID     string `gorm:"size:64"`
	FirstUserText   string `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName pins the table name independent of gorm pluralization rules.
func (SessionModel) TableName() string {
	return "sessions"
}
