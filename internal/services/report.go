package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf16"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/Gurkunwar/standupbot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Discord embed limits.
const (
	maxReportFields = 25
	maxFieldValue   = 1024
	maxEmbedTitle   = 256
	maxEmbedChars   = 6000
)

type HistorySink interface {
	Record(ctx context.Context, rows []models.StandupHistory) error
}

// GormHistory upserts one history row per run and member, so a retried
// summary overwrites instead of duplicating.
type GormHistory struct {
	DB *gorm.DB
}

func (h *GormHistory) Record(ctx context.Context, rows []models.StandupHistory) error {
	if len(rows) == 0 {
		return nil
	}
	return h.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "run_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reason", "answers", "updated_at"}),
	}).Create(&rows).Error
}

// ReportSummarizer stores each member's outcome and posts the round's report
// to the standup's channel. A retried Summarize for the same run resumes
// after the last message that made it out.
type ReportSummarizer struct {
	History HistorySink
	Gateway standup.MessagingGateway
	Logger  *slog.Logger

	mu     sync.Mutex
	posted map[string]int
}

func (r *ReportSummarizer) Summarize(ctx context.Context, result standup.Result) error {
	if err := r.History.Record(ctx, historyRows(result)); err != nil {
		return fmt.Errorf("record history: %w", err)
	}

	runID := result.Run.ID
	channelID := result.Run.Definition.ChannelID
	contents := renderReport(result)
	for i := r.sent(runID); i < len(contents); i++ {
		if _, err := r.Gateway.PostMessage(ctx, channelID, contents[i]); err != nil {
			return fmt.Errorf("post report to %s: %w", channelID, err)
		}
		r.markSent(runID, i+1)
	}
	r.forget(runID)

	r.Logger.Info("standup report posted",
		"run_id", runID, "channel_id", channelID, "members", len(result.Members), "messages", len(contents))
	return nil
}

func (r *ReportSummarizer) sent(runID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.posted[runID]
}

func (r *ReportSummarizer) markSent(runID string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.posted == nil {
		r.posted = make(map[string]int)
	}
	r.posted[runID] = n
}

func (r *ReportSummarizer) forget(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.posted, runID)
}

func historyRows(result standup.Result) []models.StandupHistory {
	date := result.Run.CreatedAt.Format("2006-01-02")
	rows := make([]models.StandupHistory, 0, len(result.Members))
	for _, m := range result.Members {
		row := models.StandupHistory{
			RunID:     result.Run.ID,
			UserID:    m.MemberID,
			StandupID: result.Run.Definition.StandupID,
			Date:      date,
			Status:    string(m.Status),
			Reason:    m.Reason,
			Answers:   []models.HistoryAnswer{},
		}
		for _, a := range m.Answers {
			row.Answers = append(row.Answers, models.HistoryAnswer{Question: a.Prompt, Answer: a.Response})
		}
		rows = append(rows, row)
	}
	return rows
}

// renderReport packs one or more fields per member into as many messages as
// Discord's embed limits require. Opted-out and errored members both show as
// "no answer".
func renderReport(result standup.Result) []standup.Content {
	def := result.Run.Definition
	answered := 0
	var fields []standup.Field
	for _, m := range result.Members {
		if m.Answered() {
			answered++
		}
		fields = append(fields, memberFields(m)...)
	}

	title := clip(fmt.Sprintf("🚀 %s Update (%s)", def.Name, result.Run.CreatedAt.Format("2006-01-02")), maxEmbedTitle)
	continued := clip(title+" (continued)", maxEmbedTitle)
	summary := fmt.Sprintf("%d of %d members answered.", answered, len(result.Members))

	contents := []standup.Content{{Title: title, Text: summary}}
	used := discordLen(title)
	for _, f := range fields {
		size := discordLen(f.Name) + discordLen(f.Value)
		last := &contents[len(contents)-1]
		if len(last.Fields) == maxReportFields || used+size > maxEmbedChars {
			contents = append(contents, standup.Content{Title: continued})
			last = &contents[len(contents)-1]
			used = discordLen(continued)
		}
		last.Fields = append(last.Fields, f)
		used += size
	}
	return contents
}

func memberFields(m standup.MemberResult) []standup.Field {
	if !m.Answered() {
		return []standup.Field{{Name: "💤 No answer", Value: fmt.Sprintf("<@%s>", m.MemberID)}}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<@%s>", m.MemberID)
	for _, a := range m.Answers {
		fmt.Fprintf(&b, "\n**%s**\n👉 %s", a.Prompt, a.Response)
	}

	parts := splitValue(b.String(), maxFieldValue)
	fields := make([]standup.Field, 0, len(parts))
	for i, part := range parts {
		name := "✅ Answered"
		if i > 0 {
			name += " (cont.)"
		}
		fields = append(fields, standup.Field{Name: name, Value: part})
	}
	return fields
}

// splitValue cuts s into pieces of at most limit characters, breaking at line
// ends where it can. Whitespace-only pieces are dropped.
func splitValue(s string, limit int) []string {
	var (
		parts []string
		lines []string
		size  int
	)
	flush := func() {
		if part := strings.Join(lines, "\n"); strings.TrimSpace(part) != "" {
			parts = append(parts, part)
		}
		lines, size = nil, 0
	}

	for _, line := range strings.Split(s, "\n") {
		n := discordLen(line)
		if len(lines) > 0 && size+1+n > limit {
			flush()
		}
		for n > limit {
			head, rest := cutAt(line, limit)
			parts = append(parts, head)
			line, n = rest, discordLen(rest)
		}
		if len(lines) > 0 {
			size++
		}
		lines = append(lines, line)
		size += n
	}
	flush()
	return parts
}

// discordLen counts UTF-16 code units, which is how Discord measures embeds.
func discordLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutAt splits s after the longest prefix that fits in limit characters.
func cutAt(s string, limit int) (string, string) {
	n := 0
	for i, r := range s {
		n += utf16.RuneLen(r)
		if n > limit {
			return s[:i], s[i:]
		}
	}
	return s, ""
}

func clip(s string, limit int) string {
	if discordLen(s) <= limit {
		return s
	}
	head, _ := cutAt(s, limit-1)
	return head + "…"
}
