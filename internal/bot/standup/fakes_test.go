package standup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type gatewayCall struct {
	op      string
	target  string
	ref     MessageRef
	content Content
	failed  bool
}

type fakeGateway struct {
	mu        sync.Mutex
	prefix    string
	seq       int
	calls     []gatewayCall
	failPosts map[string]int
	failOpen  map[string]bool
	holdOpen  map[string]chan struct{}
	opening   chan string
}

func newFakeGateway(prefix string) *fakeGateway {
	return &fakeGateway{
		prefix:    prefix,
		failPosts: make(map[string]int),
		failOpen:  make(map[string]bool),
		holdOpen:  make(map[string]chan struct{}),
		opening:   make(chan string, 16),
	}
}

// holdOpenFor blocks OpenConversation for memberID until the returned
// channel is closed.
func (g *fakeGateway) holdOpenFor(memberID string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	release := make(chan struct{})
	g.holdOpen[memberID] = release
	return release
}

var errRateLimited = errors.New("429 too many requests")

func (g *fakeGateway) OpenConversation(_ context.Context, memberID string) (string, error) {
	g.mu.Lock()
	release := g.holdOpen[memberID]
	g.mu.Unlock()
	if release != nil {
		g.opening <- memberID
		<-release
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failOpen[memberID] {
		return "", errRateLimited
	}
	return "dm-" + memberID, nil
}

// failPostsTo makes the next n posts to target fail; n < 0 fails them all.
func (g *fakeGateway) failPostsTo(target string, n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failPosts[target] = n
}

func (g *fakeGateway) PostMessage(_ context.Context, target string, content Content) (MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if n := g.failPosts[target]; n != 0 {
		if n > 0 {
			g.failPosts[target] = n - 1
		}
		g.calls = append(g.calls, gatewayCall{op: "post", target: target, content: content, failed: true})
		return MessageRef{}, errRateLimited
	}

	g.seq++
	ref := MessageRef{ChannelID: target, MessageID: fmt.Sprintf("%s-%d", g.prefix, g.seq)}
	g.calls = append(g.calls, gatewayCall{op: "post", target: target, ref: ref, content: content})
	return ref, nil
}

func (g *fakeGateway) UpdateMessage(_ context.Context, ref MessageRef, content Content) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, gatewayCall{op: "update", target: ref.ChannelID, ref: ref, content: content})
	return nil
}

func (g *fakeGateway) callsTo(target string) []gatewayCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []gatewayCall
	for _, c := range g.calls {
		if c.target == target {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGateway) updatesOf(ref MessageRef) []gatewayCall {
	var out []gatewayCall
	for _, c := range g.callsTo(ref.ChannelID) {
		if c.op == "update" && c.ref == ref {
			out = append(out, c)
		}
	}
	return out
}

func (g *fakeGateway) postAttempts(target string) int {
	n := 0
	for _, c := range g.callsTo(target) {
		if c.op == "post" {
			n++
		}
	}
	return n
}

type fakeSummarizer struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (s *fakeSummarizer) Summarize(_ context.Context, result Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.results = append(s.results, result)
	return nil
}

func (s *fakeSummarizer) calls() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Result(nil), s.results...)
}

type memoryCheckpoints struct {
	mu    sync.Mutex
	saved map[string]map[string]MemberSnapshot
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{saved: make(map[string]map[string]MemberSnapshot)}
}

func (m *memoryCheckpoints) Save(_ context.Context, runID string, member MemberSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved[runID] == nil {
		m.saved[runID] = make(map[string]MemberSnapshot)
	}
	m.saved[runID][member.MemberID] = member
	return nil
}

func (m *memoryCheckpoints) member(runID, memberID string) (MemberSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.saved[runID][memberID]
	return snap, ok
}

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func testDefinition(members ...string) Definition {
	return Definition{
		StandupID:   7,
		Name:        "Platform",
		ChannelID:   "report-channel",
		Members:     members,
		Prompts:     []string{"What did you do yesterday?", "What will you do today?"},
		StartCron:   "0 9 * * 1-5",
		SummaryCron: "0 17 * * 1-5",
	}
}

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

type testEnv struct {
	ctx         context.Context
	run         Run
	gateway     *fakeGateway
	summarizer  *fakeSummarizer
	checkpoints *memoryCheckpoints
	orch        *Orchestrator
}

func setupRun(t *testing.T, def Definition) *testEnv {
	t.Helper()
	e := &testEnv{
		ctx:         context.Background(),
		run:         NewRun(def, testNow),
		gateway:     newFakeGateway("g1"),
		summarizer:  &fakeSummarizer{},
		checkpoints: newMemoryCheckpoints(),
	}
	e.orch = NewOrchestrator(e.run, e.gateway, e.summarizer,
		WithRetryPolicy(fastRetry()),
		WithCheckpointer(e.checkpoints))
	return e
}

func (e *testEnv) begin(t *testing.T) {
	t.Helper()
	require.NoError(t, e.orch.Begin(e.ctx, nil))
}

func (e *testEnv) liveRef(t *testing.T, memberID string, phase Phase) MessageRef {
	t.Helper()
	ref, ok := e.orch.router.Live(memberID, phase)
	require.True(t, ok, "no live %s message for %s", phase, memberID)
	return ref
}

func (e *testEnv) click(t *testing.T, memberID string, kind ActionKind) Ack {
	t.Helper()
	ref := e.liveRef(t, memberID, PhaseInit)
	return e.orch.HandleInteraction(e.ctx, Interaction{
		RunID:     e.run.ID,
		MemberID:  memberID,
		ChannelID: ref.ChannelID,
		MessageID: ref.MessageID,
		Kind:      kind,
	})
}

func (e *testEnv) answer(t *testing.T, memberID string, idx int, text string) Ack {
	t.Helper()
	ref := e.liveRef(t, memberID, PhaseAnswering)
	return e.orch.HandleInteraction(e.ctx, Interaction{
		RunID:       e.run.ID,
		MemberID:    memberID,
		ChannelID:   ref.ChannelID,
		MessageID:   ref.MessageID,
		Kind:        ActionAnswer,
		PromptIndex: idx,
		Value:       text,
	})
}

func (e *testEnv) memberState(t *testing.T, memberID string) MemberStatus {
	t.Helper()
	for _, m := range e.orch.Status().Members {
		if m.MemberID == memberID {
			return m
		}
	}
	t.Fatalf("member %s not in status", memberID)
	return MemberStatus{}
}
