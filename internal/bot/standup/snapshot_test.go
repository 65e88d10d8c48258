package standup

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		RunID: "standup-7-2026-10-19",
		Members: []MemberSnapshot{
			{
				MemberID: "alice",
				Target:   "dm-alice",
				State:    StateAnswering,
				Messages: map[Phase][]PostedMessage{
					PhaseInit:      {{Ref: MessageRef{ChannelID: "dm-alice", MessageID: "1"}}},
					PhaseAnswering: {{Ref: MessageRef{ChannelID: "dm-alice", MessageID: "2"}, Live: true}},
				},
				Answers: []Answer{{Prompt: "Yesterday?", Response: "Docs"}},
			},
			{
				MemberID: "bob",
				Target:   "dm-bob",
				State:    StateOptedOut,
				Reason:   ReasonUndeliverable,
				Error:    "post message for member bob: 403",
				Messages: map[Phase][]PostedMessage{},
			},
		},
	}
}

func TestRestoreThenSnapshotRoundTrips(t *testing.T) {
	snap := sampleSnapshot()
	store := NewStateStore()

	require.NoError(t, store.Restore(snap))
	assert.Equal(t, snap, store.Snapshot(snap.RunID))

	require.NoError(t, store.Restore(store.Snapshot(snap.RunID)))
	assert.Equal(t, snap, store.Snapshot(snap.RunID))
}

func TestRestoreKeepsAbsentCollectionsNil(t *testing.T) {
	snap := Snapshot{
		RunID:   "standup-7-2026-10-19",
		Members: []MemberSnapshot{{MemberID: "carol", State: StateNotStarted}},
	}
	store := NewStateStore()

	require.NoError(t, store.Restore(snap))
	got := store.Snapshot(snap.RunID)
	assert.Equal(t, snap, got)
	assert.Nil(t, got.Members[0].Messages)
	assert.Nil(t, got.Members[0].Answers)

	c := store.mustGet("carol")
	c.record(PhaseInit, MessageRef{ChannelID: "dm-carol", MessageID: "9"})
	assert.Len(t, store.Snapshot(snap.RunID).Members[0].Messages[PhaseInit], 1)
}

func TestSnapshotSurvivesJSON(t *testing.T) {
	snap := sampleSnapshot()

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"state":"answering"`)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, snap, decoded)
}

func TestUnknownStateInJSONIsCorrupt(t *testing.T) {
	var m MemberSnapshot
	err := json.Unmarshal([]byte(`{"member_id":"alice","state":"dancing"}`), &m)
	assert.ErrorIs(t, err, ErrCorruptSnapshot)
}

func TestRestoreRejectsInvalidSnapshotAndKeepsState(t *testing.T) {
	store := NewStateStore()
	require.NoError(t, store.Restore(sampleSnapshot()))

	bad := sampleSnapshot()
	bad.Members = append(bad.Members, bad.Members[0])

	assert.ErrorIs(t, store.Restore(bad), ErrCorruptSnapshot)
	assert.Equal(t, sampleSnapshot(), store.Snapshot("standup-7-2026-10-19"))
}

func TestMemberTransitions(t *testing.T) {
	c := newMemberConversation("alice")

	require.NoError(t, c.transition(StateInitiating))
	require.NoError(t, c.transition(StateAwaitingChoice))
	assert.Error(t, c.transition(StateCompleted), "cannot complete without answering")
	require.NoError(t, c.transition(StateAnswering))
	require.NoError(t, c.transition(StateCompleted))

	assert.ErrorIs(t, c.transition(StateOptedOut), ErrAlreadyTerminal)
	assert.ErrorIs(t, c.optOut(ReasonNoResponse, nil), ErrAlreadyTerminal)
	assert.Equal(t, StateCompleted, c.state)
	assert.Equal(t, ReasonNone, c.reason)
}

func TestRecordRetiresPreviousLiveMessage(t *testing.T) {
	c := newMemberConversation("alice")
	c.record(PhaseInit, MessageRef{ChannelID: "dm", MessageID: "1"})
	c.record(PhaseInit, MessageRef{ChannelID: "dm", MessageID: "2"})

	live, ok := c.live(PhaseInit)
	require.True(t, ok)
	assert.Equal(t, "2", live.MessageID)
	assert.NoError(t, c.snapshot().Validate())
	assert.False(t, c.messages[PhaseInit][0].Live)
}
