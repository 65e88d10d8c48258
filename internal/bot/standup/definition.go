package standup

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Definition is the validated standup configuration supplied by the admin side.
type Definition struct {
	StandupID   uint     `json:"standup_id"`
	Name        string   `json:"name"`
	ChannelID   string   `json:"channel_id"`
	Members     []string `json:"members"`
	Prompts     []string `json:"prompts"`
	StartCron   string   `json:"start_cron"`
	SummaryCron string   `json:"summary_cron"`
}

func (d Definition) Validate() error {
	var errs []error
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("name is required"))
	}
	if d.ChannelID == "" {
		errs = append(errs, errors.New("channel is required"))
	}
	if len(d.Members) == 0 {
		errs = append(errs, errors.New("at least one member is required"))
	}

	seen := make(map[string]struct{}, len(d.Members))
	for _, m := range d.Members {
		if m == "" {
			errs = append(errs, errors.New("member id is empty"))
			continue
		}
		if _, dup := seen[m]; dup {
			errs = append(errs, fmt.Errorf("duplicate member %s", m))
		}
		seen[m] = struct{}{}
	}

	if _, err := cron.ParseStandard(d.StartCron); err != nil {
		errs = append(errs, fmt.Errorf("start cron %q: %w", d.StartCron, err))
	}
	if _, err := cron.ParseStandard(d.SummaryCron); err != nil {
		errs = append(errs, fmt.Errorf("summary cron %q: %w", d.SummaryCron, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidDefinition, errors.Join(errs...))
	}
	return nil
}

func (d Definition) hasMember(memberID string) bool {
	for _, m := range d.Members {
		if m == memberID {
			return true
		}
	}
	return false
}

// Run is one cycle of a standup across all of its members.
type Run struct {
	ID         string     `json:"id"`
	Definition Definition `json:"definition"`
	CreatedAt  time.Time  `json:"created_at"`
}

func NewRun(def Definition, at time.Time) Run {
	return Run{
		ID:         RunIDFor(def.StandupID, at),
		Definition: def,
		CreatedAt:  at.UTC(),
	}
}

// RunIDFor names the daily cycle of a standup so that a restarted trigger on the
// same day lands on the same checkpoint.
func RunIDFor(standupID uint, at time.Time) string {
	return fmt.Sprintf("standup-%d-%s", standupID, at.UTC().Format("2006-01-02"))
}
