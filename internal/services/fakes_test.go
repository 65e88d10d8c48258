package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/Gurkunwar/standupbot/internal/bot/standup"
	"github.com/Gurkunwar/standupbot/internal/models"
)

var testNow = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDefinition(id uint, members ...string) standup.Definition {
	return standup.Definition{
		StandupID:   id,
		Name:        "Platform",
		ChannelID:   "report-channel",
		Members:     members,
		Prompts:     []string{"What did you do yesterday?", "What will you do today?"},
		StartCron:   "0 9 * * 1-5",
		SummaryCron: "0 11 * * 1-5",
	}
}

type fakeDefinitions struct {
	defs map[uint]standup.Definition
}

func newFakeDefinitions(defs ...standup.Definition) *fakeDefinitions {
	f := &fakeDefinitions{defs: make(map[uint]standup.Definition)}
	for _, d := range defs {
		f.defs[d.StandupID] = d
	}
	return f
}

func (f *fakeDefinitions) Get(_ context.Context, standupID uint) (standup.Definition, error) {
	def, ok := f.defs[standupID]
	if !ok {
		return standup.Definition{}, fmt.Errorf("%w: %d", ErrStandupNotFound, standupID)
	}
	return def, nil
}

func (f *fakeDefinitions) List(_ context.Context) ([]standup.Definition, error) {
	var out []standup.Definition
	for id := uint(1); len(out) < len(f.defs); id++ {
		if def, ok := f.defs[id]; ok {
			out = append(out, def)
		}
	}
	return out, nil
}

type memoryCheckpoints struct {
	mu      sync.Mutex
	runs    map[string]standup.Run
	members map[string]map[string]standup.MemberSnapshot
	active  map[string]bool
	loadErr error
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{
		runs:    make(map[string]standup.Run),
		members: make(map[string]map[string]standup.MemberSnapshot),
		active:  make(map[string]bool),
	}
}

func (m *memoryCheckpoints) SaveRun(_ context.Context, run standup.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	m.active[run.ID] = true
	return nil
}

func (m *memoryCheckpoints) Save(_ context.Context, runID string, member standup.MemberSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.members[runID] == nil {
		m.members[runID] = make(map[string]standup.MemberSnapshot)
	}
	m.members[runID][member.MemberID] = member
	return nil
}

func (m *memoryCheckpoints) Run(_ context.Context, runID string) (standup.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return run, fmt.Errorf("no checkpoint for run %s", runID)
	}
	return run, nil
}

func (m *memoryCheckpoints) Load(_ context.Context, run standup.Run) (*standup.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	saved := m.members[run.ID]
	if len(saved) == 0 {
		return nil, nil
	}
	snap := &standup.Snapshot{RunID: run.ID}
	for _, id := range run.Definition.Members {
		if ms, ok := saved[id]; ok {
			snap.Members = append(snap.Members, ms)
		}
	}
	return snap, nil
}

func (m *memoryCheckpoints) ActiveRuns(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, ok := range m.active {
		if ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryCheckpoints) Deactivate(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, runID)
	return nil
}

func (m *memoryCheckpoints) Delete(_ context.Context, runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, runID)
	delete(m.runs, runID)
	delete(m.members, runID)
	return nil
}

func (m *memoryCheckpoints) isActive(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[runID]
}

func (m *memoryCheckpoints) hasRun(runID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.runs[runID]
	return ok
}

type post struct {
	target  string
	ref     standup.MessageRef
	content standup.Content
}

type fakeGateway struct {
	mu      sync.Mutex
	seq     int
	posts   []post
	updates []standup.MessageRef
	failTo  map[string]bool
	// failNth fails the nth post attempt (1-based) once.
	attempts int
	failNth  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failTo: make(map[string]bool)}
}

func (g *fakeGateway) OpenConversation(_ context.Context, memberID string) (string, error) {
	return "dm-" + memberID, nil
}

func (g *fakeGateway) PostMessage(_ context.Context, target string, content standup.Content) (standup.MessageRef, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attempts++
	if g.failTo[target] || g.attempts == g.failNth {
		return standup.MessageRef{}, fmt.Errorf("post to %s: 503", target)
	}
	g.seq++
	ref := standup.MessageRef{ChannelID: target, MessageID: fmt.Sprintf("m%d", g.seq)}
	g.posts = append(g.posts, post{target: target, ref: ref, content: content})
	return ref, nil
}

func (g *fakeGateway) UpdateMessage(_ context.Context, ref standup.MessageRef, _ standup.Content) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates = append(g.updates, ref)
	return nil
}

func (g *fakeGateway) lastPostTo(target string) (post, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.posts) - 1; i >= 0; i-- {
		if g.posts[i].target == target {
			return g.posts[i], true
		}
	}
	return post{}, false
}

func (g *fakeGateway) postsTo(target string) []post {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []post
	for _, p := range g.posts {
		if p.target == target {
			out = append(out, p)
		}
	}
	return out
}

func (g *fakeGateway) updated(ref standup.MessageRef) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, u := range g.updates {
		if u == ref {
			return true
		}
	}
	return false
}

type fakeSummarizer struct {
	mu      sync.Mutex
	results []standup.Result
}

func (f *fakeSummarizer) Summarize(_ context.Context, result standup.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeSummarizer) calls() []standup.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]standup.Result(nil), f.results...)
}

type fakeHistory struct {
	mu   sync.Mutex
	rows []models.StandupHistory
	err  error
}

func (f *fakeHistory) Record(_ context.Context, rows []models.StandupHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, rows...)
	return nil
}

type serviceTestEnv struct {
	service     *StandupService
	gateway     *fakeGateway
	summarizer  *fakeSummarizer
	checkpoints *memoryCheckpoints
	ctx         context.Context
}

func setupServiceTest(t *testing.T, defs ...standup.Definition) *serviceTestEnv {
	t.Helper()

	env := &serviceTestEnv{
		gateway:     newFakeGateway(),
		summarizer:  &fakeSummarizer{},
		checkpoints: newMemoryCheckpoints(),
		ctx:         context.Background(),
	}
	env.service = NewStandupService(newFakeDefinitions(defs...), env.checkpoints, env.gateway, env.summarizer,
		discardLogger(), standup.WithRetryPolicy(standup.RetryPolicy{MaxAttempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}))
	env.service.now = func() time.Time { return testNow }
	return env
}

// click acts on the latest message the member received.
func (e *serviceTestEnv) click(t *testing.T, runID, memberID string, kind standup.ActionKind) standup.Ack {
	t.Helper()
	p, ok := e.gateway.lastPostTo("dm-" + memberID)
	if !ok {
		t.Fatalf("no message posted to %s", memberID)
	}
	return e.service.HandleInteraction(e.ctx, standup.Interaction{
		RunID:     runID,
		MemberID:  memberID,
		ChannelID: p.ref.ChannelID,
		MessageID: p.ref.MessageID,
		Kind:      kind,
	})
}
