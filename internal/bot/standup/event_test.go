package standup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActionID(t *testing.T) {
	runID := RunIDFor(3, time.Date(2026, 10, 19, 23, 30, 0, 0, time.UTC))

	tests := []struct {
		name       string
		id         string
		wantKind   ActionKind
		wantPrompt int
		wantErr    bool
	}{
		{name: "start", id: ActionID(runID, ActionStart, 0), wantKind: ActionStart},
		{name: "not working", id: ActionID(runID, ActionNotWorking, 0), wantKind: ActionNotWorking},
		{name: "answer", id: ActionID(runID, ActionAnswer, 4), wantKind: ActionAnswer, wantPrompt: 4},
		{name: "foreign component", id: "select_tz", wantErr: true},
		{name: "missing run", id: "standup::start", wantErr: true},
		{name: "answer without index", id: "standup:" + runID + ":answer", wantErr: true},
		{name: "negative index", id: "standup:" + runID + ":answer:-1", wantErr: true},
		{name: "unknown verb", id: "standup:" + runID + ":dance", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRun, kind, prompt, err := ParseActionID(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEvent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, runID, gotRun)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantPrompt, prompt)
		})
	}
}

func TestInteractionValidate(t *testing.T) {
	valid := Interaction{RunID: "r", MemberID: "m", ChannelID: "c", MessageID: "1", Kind: ActionStart}

	tests := []struct {
		name    string
		mutate  func(i *Interaction)
		wantErr bool
	}{
		{name: "valid click", mutate: func(*Interaction) {}},
		{name: "valid answer", mutate: func(i *Interaction) { i.Kind = ActionAnswer; i.Value = "done" }},
		{name: "missing member", mutate: func(i *Interaction) { i.MemberID = "" }, wantErr: true},
		{name: "missing message", mutate: func(i *Interaction) { i.MessageID = "" }, wantErr: true},
		{name: "unknown kind", mutate: func(i *Interaction) { i.Kind = ActionUnknown }, wantErr: true},
		{name: "blank answer", mutate: func(i *Interaction) { i.Kind = ActionAnswer; i.Value = "   " }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := valid
			tt.mutate(&ev)
			err := ev.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedEvent)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRunIDIsStablePerDay(t *testing.T) {
	morning := time.Date(2026, 10, 19, 7, 0, 0, 0, time.UTC)
	evening := time.Date(2026, 10, 19, 18, 0, 0, 0, time.UTC)

	assert.Equal(t, "standup-3-2026-10-19", RunIDFor(3, morning))
	assert.Equal(t, RunIDFor(3, morning), RunIDFor(3, evening))
	assert.NotEqual(t, RunIDFor(3, morning), RunIDFor(4, morning))
}

func TestDefinitionValidate(t *testing.T) {
	assert.NoError(t, testDefinition("alice", "bob").Validate())

	def := testDefinition()
	def.Name = " "
	def.SummaryCron = "61 * * * *"
	err := def.Validate()
	require.ErrorIs(t, err, ErrInvalidDefinition)
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "at least one member")
	assert.Contains(t, err.Error(), "summary cron")
}
