package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/Gurkunwar/standupbot/internal/models"
	"gorm.io/gorm"
)

var ErrStandupNotFound = errors.New("standup not found")

// DefinitionRepo reads standup definitions from Postgres.
type DefinitionRepo struct {
	DB *gorm.DB
}

func (r *DefinitionRepo) Get(ctx context.Context, standupID uint) (standup.Definition, error) {
	var s models.Standup
	err := r.DB.WithContext(ctx).Preload("Participants").First(&s, standupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return standup.Definition{}, fmt.Errorf("%w: %d", ErrStandupNotFound, standupID)
	}
	if err != nil {
		return standup.Definition{}, fmt.Errorf("load standup %d: %w", standupID, err)
	}
	return toDefinition(s), nil
}

// List returns every active standup.
func (r *DefinitionRepo) List(ctx context.Context) ([]standup.Definition, error) {
	var rows []models.Standup
	if err := r.DB.WithContext(ctx).Preload("Participants").Where("active = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list standups: %w", err)
	}

	defs := make([]standup.Definition, 0, len(rows))
	for _, s := range rows {
		defs = append(defs, toDefinition(s))
	}
	return defs, nil
}

func toDefinition(s models.Standup) standup.Definition {
	members := make([]string, 0, len(s.Participants))
	for _, p := range s.Participants {
		members = append(members, p.UserID)
	}

	return standup.Definition{
		StandupID:   s.ID,
		Name:        s.Name,
		ChannelID:   s.ReportChannelID,
		Members:     members,
		Prompts:     append([]string(nil), s.Questions...),
		StartCron:   s.StartCron,
		SummaryCron: s.SummaryCron,
	}
}
