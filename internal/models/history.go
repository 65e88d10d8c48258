package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// StandupHistory is one member's outcome in one run.
type StandupHistory struct {
	gorm.Model
	RunID     string `gorm:"uniqueIndex:idx_history_run_user"`
	UserID    string `gorm:"uniqueIndex:idx_history_run_user;index"`
	StandupID uint   `gorm:"index"`
	Date      string `gorm:"index"`
	Status    string
	Reason    string
	Answers   datatypes.JSONSlice[HistoryAnswer] `gorm:"type:jsonb"`
}

type HistoryAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}
