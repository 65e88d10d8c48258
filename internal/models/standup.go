package models

import (
	"github.com/lib/pq"
	"gorm.io/gorm"
)

type Standup struct {
	gorm.Model
	Name            string         `json:"name"`
	GuildID         string         `gorm:"index" json:"guild_id"`
	ManagerID       string         `json:"manager_id"`
	ReportChannelID string         `json:"report_channel_id"`
	Questions       pq.StringArray `gorm:"type:text[]" json:"questions"`
	StartCron       string         `gorm:"default:'0 9 * * 1-5'" json:"start_cron"`
	SummaryCron     string         `gorm:"default:'0 11 * * 1-5'" json:"summary_cron"`
	Active          bool           `gorm:"default:true" json:"active"`
	Participants    []UserProfile  `gorm:"many2many:standup_participants;" json:"participants"`
}
