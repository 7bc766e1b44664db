package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"lecture-quiz/internal/models"
	"lecture-quiz/internal/quiz"
	"lecture-quiz/internal/store"
	"lecture-quiz/internal/transcribe"
)

type fakeClock struct {
	mu     sync.Mutex
	t      time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type pollStep struct {
	status transcribe.Status
	err    error
}

// fakeTranscriber scripts poll results per submission, in submission order.
// Within a script the last step repeats.
type fakeTranscriber struct {
	mu         sync.Mutex
	submitErrs []error
	script     [][]pollStep
	submits    []transcribe.Request
	ordinal    map[transcribe.Handle]int
	cursor     map[int]int
	polls      int
}

func succeeded(text string) pollStep {
	return pollStep{status: transcribe.Status{State: transcribe.StateSucceeded, Text: text, LanguageCode: "en-US"}}
}

func running() pollStep {
	return pollStep{status: transcribe.Status{State: transcribe.StateRunning}}
}

func failed(reason string) pollStep {
	return pollStep{status: transcribe.Status{State: transcribe.StateFailed, FailureReason: reason}}
}

func newFakeTranscriber(script ...[]pollStep) *fakeTranscriber {
	return &fakeTranscriber{
		script:  script,
		ordinal: map[transcribe.Handle]int{},
		cursor:  map[int]int{},
	}
}

func (f *fakeTranscriber) Submit(_ context.Context, req transcribe.Request) (transcribe.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.submits)
	f.submits = append(f.submits, req)
	if call < len(f.submitErrs) && f.submitErrs[call] != nil {
		return "", f.submitErrs[call]
	}
	h := transcribe.Handle("h-" + req.Name)
	if _, ok := f.ordinal[h]; !ok {
		f.ordinal[h] = len(f.ordinal)
	}
	return h, nil
}

func (f *fakeTranscriber) Poll(_ context.Context, h transcribe.Handle) (transcribe.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	n := f.ordinal[h]
	if n >= len(f.script) {
		n = len(f.script) - 1
	}
	steps := f.script[n]
	i := f.cursor[n]
	if i >= len(steps) {
		i = len(steps) - 1
	} else {
		f.cursor[n] = i + 1
	}
	return steps[i].status, steps[i].err
}

func (f *fakeTranscriber) Submits() []transcribe.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcribe.Request(nil), f.submits...)
}

func (f *fakeTranscriber) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

type genResult struct {
	quiz models.Quiz
	err  error
}

type fakeGenerator struct {
	mu      sync.Mutex
	results []genResult
	calls   int
	// hook runs before the scripted result; a non-nil error replaces it.
	hook func(ctx context.Context, call int) error
}

func (f *fakeGenerator) Generate(ctx context.Context, _ string, _ quiz.PromptConfig) (models.Quiz, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	hook := f.hook
	var res genResult
	if len(f.results) > 0 {
		i := call - 1
		if i >= len(f.results) {
			i = len(f.results) - 1
		}
		res = f.results[i]
	}
	f.mu.Unlock()

	if hook != nil {
		if err := hook(ctx, call); err != nil {
			return models.Quiz{}, err
		}
	}
	return res.quiz, res.err
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeWriter struct {
	mu      sync.Mutex
	errs    []error
	puts    int
	objects map[string][]byte
}

func newFakeWriter(errs ...error) *fakeWriter {
	return &fakeWriter{errs: errs, objects: map[string][]byte{}}
}

func (f *fakeWriter) Put(_ context.Context, bucket, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.puts <= len(f.errs) && f.errs[f.puts-1] != nil {
		return f.errs[f.puts-1]
	}
	f.objects[bucket+"/"+key] = append([]byte(nil), payload...)
	return nil
}

func (f *fakeWriter) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

type edge struct {
	from, to models.JobState
}

// recordingStore remembers every accepted transition.
type recordingStore struct {
	store.JobStore
	mu         sync.Mutex
	edges      []edge
	acquireErr error
}

func (s *recordingStore) TryAcquire(ctx context.Context, seed models.Job, lease store.Lease) (store.LeaseResult, error) {
	if s.acquireErr != nil {
		return store.LeaseResult{}, s.acquireErr
	}
	return s.JobStore.TryAcquire(ctx, seed, lease)
}

func (s *recordingStore) Transition(ctx context.Context, jobID string, from, to models.JobState, meta store.TransitionMeta) (bool, error) {
	ok, err := s.JobStore.Transition(ctx, jobID, from, to, meta)
	if ok {
		s.mu.Lock()
		s.edges = append(s.edges, edge{from, to})
		s.mu.Unlock()
	}
	return ok, err
}

// states returns the distinct states entered, in order, ignoring self edges.
func (s *recordingStore) states() []models.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.JobState
	for _, e := range s.edges {
		if e.from != e.to {
			out = append(out, e.to)
		}
	}
	return out
}

func (s *recordingStore) assertForwardOnly(t *testing.T) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.edges {
		if !models.CanTransition(e.from, e.to) {
			t.Errorf("edge %d %s -> %s is not allowed", i, e.from, e.to)
		}
		if i == 0 {
			continue
		}
		prev := s.edges[i-1]
		if prev.to != models.JobStateFailed && e.from != prev.to {
			t.Errorf("edge %d starts at %s, previous ended at %s", i, e.from, prev.to)
		}
	}
}

type fakeNotifier struct {
	mu       sync.Mutex
	outcomes []models.Outcome
}

func (n *fakeNotifier) Notify(_ context.Context, out models.Outcome) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.outcomes = append(n.outcomes, out)
	return nil
}
