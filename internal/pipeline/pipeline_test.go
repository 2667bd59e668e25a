package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/censeo/internal/common"
	"github.com/ternarybob/censeo/internal/interfaces"
	"github.com/ternarybob/censeo/internal/models"
	"github.com/ternarybob/censeo/internal/scoring"
	"github.com/ternarybob/censeo/internal/services/vocabulary"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------
// in-memory fakes
// ---------------------------------------------------------------------

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*models.Job
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*models.Job)}
}

func (m *memJobs) CreateJob(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[job.ID]; ok {
		return models.ErrInvalidInput
	}
	c := *job
	m.jobs[job.ID] = &c
	return nil
}

func (m *memJobs) GetJob(_ context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, models.ErrNotFound
	}
	c := *job
	return &c, nil
}

func (m *memJobs) ListJobs(_ context.Context, _ int) ([]*models.Job, error) {
	return nil, nil
}

func (m *memJobs) AdvanceStage(_ context.Context, jobID string, expected, next models.Stage, resultKey string, output json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if job.Stage != expected || !models.CanAdvance(expected, next) {
		return models.ErrStagePrecondition
	}
	if output != nil && resultKey != "" {
		if job.StageResults == nil {
			job.StageResults = make(map[string]json.RawMessage)
		}
		job.StageResults[resultKey] = output
	}
	job.Stage = next
	job.StatusAt = time.Now()
	return nil
}

func (m *memJobs) FailJob(_ context.Context, jobID string, jobErr models.JobError) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if job.IsTerminal() {
		return nil
	}
	job.Stage = models.StageFailed
	job.Error = &jobErr
	return nil
}

func (m *memJobs) CancelJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return models.ErrNotFound
	}
	if job.IsTerminal() {
		return models.ErrStagePrecondition
	}
	job.Stage = models.StageCancelled
	return nil
}

func (m *memJobs) IncrementAttempt(_ context.Context, jobID string, stage models.Stage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return 0, models.ErrNotFound
	}
	if job.Attempts == nil {
		job.Attempts = make(map[string]int)
	}
	job.Attempts[string(stage)]++
	return job.Attempts[string(stage)], nil
}

type memQueue struct {
	mu       sync.Mutex
	messages []models.StageMessage
}

func (q *memQueue) Enqueue(_ context.Context, msg models.StageMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return nil
}

func (q *memQueue) Receive(context.Context) (*models.StageMessage, func() error, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.messages) == 0 {
		return nil, nil, models.ErrNoMessage
	}
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return &msg, func() error { return nil }, nil
}

func (q *memQueue) Extend(context.Context, string, time.Duration) error { return nil }
func (q *memQueue) Close() error                                        { return nil }

type memDocs struct {
	blobs map[string][]byte
}

func (d *memDocs) SaveDocument(_ context.Context, ref string, blob []byte) error {
	d.blobs[ref] = blob
	return nil
}

func (d *memDocs) GetDocument(_ context.Context, ref string) ([]byte, error) {
	blob, ok := d.blobs[ref]
	if !ok {
		return nil, models.ErrNotFound
	}
	return blob, nil
}

func (d *memDocs) DeleteDocument(_ context.Context, ref string) error {
	delete(d.blobs, ref)
	return nil
}

type fakeExtractor struct {
	failures int
	stalls   int
	calls    int
	onCall   func()
}

func (f *fakeExtractor) ExtractText(ctx context.Context, blob []byte, _ models.DocumentFormat) (string, error) {
	f.calls++
	if f.onCall != nil {
		f.onCall()
	}
	if f.calls <= f.stalls {
		// Block until the attempt deadline fires, like a hung decoder.
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.calls <= f.failures {
		return "", models.NewCapabilityError("text_extraction", fmt.Errorf("transient decode fault"))
	}
	return string(blob), nil
}

func (f *fakeExtractor) DetectFormat([]byte) (models.DocumentFormat, error) {
	return models.FormatText, nil
}

type noopTranslator struct{}

func (noopTranslator) Translate(_ context.Context, text, _ string) (string, error) {
	return text, nil
}

type fakeEntities struct {
	sentiment float64
}

func (f *fakeEntities) ExtractEntities(context.Context, string) (*models.Entities, float64, error) {
	return &models.Entities{Sectors: []string{"Energy"}}, f.sentiment, nil
}

type fakeLookup struct {
	companies map[string]interfaces.CompanyContext
	sectors   map[string][]string
}

func (f *fakeLookup) LookupCompany(_ context.Context, ticker string) (*interfaces.CompanyContext, error) {
	c, ok := f.companies[ticker]
	if !ok {
		return nil, models.NewPermanentCapabilityError("company_lookup", fmt.Errorf("unknown ticker %s", ticker))
	}
	return &c, nil
}

func (f *fakeLookup) TickersForSector(_ context.Context, sector string) ([]string, error) {
	return f.sectors[sector], nil
}

type fakeSynth struct {
	reply string
	keys  []string
}

func (f *fakeSynth) Synthesize(_ context.Context, req *interfaces.SynthesisRequest) (string, error) {
	f.keys = append(f.keys, req.IdempotencyKey)
	if f.reply == "" {
		return "", models.NewCapabilityError("synthesis", fmt.Errorf("provider down"))
	}
	return f.reply, nil
}
func (f *fakeSynth) HealthCheck(context.Context) error { return nil }
func (f *fakeSynth) Close() error                      { return nil }

// ---------------------------------------------------------------------
// harness
// ---------------------------------------------------------------------

const pipelineVocab = `
sectors:
  - name: Energy
    keywords: ["renewable energy", "drilling"]
    tickers: ["XOM", "NEE"]
tags:
  - tag: "energy policy"
    sector: Energy
    scope: macro
    impact: strong_positive
positive_cues: ["expand", "incentive"]
negative_cues: ["ban", "penalty"]
`

type testPipeline struct {
	cfg     *common.Config
	jobs    *memJobs
	queue   *memQueue
	docs    *memDocs
	extract *ExtractHandler
	enrich  *EnrichHandler
	lookup  *LookupHandler
	decide  *DecideHandler
	fx      *fakeExtractor
	synth   *fakeSynth
}

func newTestPipeline(t *testing.T) *testPipeline {
	t.Helper()

	cfg := common.NewDefaultConfig()
	cfg.Pipeline.MaxAttempts = 3
	cfg.Pipeline.RetryBackoffBase = "1ms"
	cfg.Pipeline.StageTimeout = "5s"

	jobs := newMemJobs()
	queue := &memQueue{}
	docs := &memDocs{blobs: make(map[string][]byte)}
	runner := NewRunner(jobs, queue, cfg, common.GetLogger())

	var vocab vocabulary.Vocabulary
	if err := yaml.Unmarshal([]byte(pipelineVocab), &vocab); err != nil {
		t.Fatalf("failed to parse test vocabulary: %v", err)
	}

	fx := &fakeExtractor{}
	synth := &fakeSynth{reply: "Energy names benefit."}
	lookup := &fakeLookup{
		companies: map[string]interfaces.CompanyContext{
			"XOM": {Ticker: "XOM", Name: "Exxon Mobil", Sector: "Energy", Beta: 1.1, SectorExposure: 0.9},
			"NEE": {Ticker: "NEE", Name: "NextEra Energy", Sector: "Energy", Beta: 0.5, SectorExposure: 0.9},
		},
		sectors: map[string][]string{"Energy": {"NEE", "XOM"}},
	}

	engine, err := scoring.NewEngine(scoring.WeightsFromConfig(cfg.Scoring))
	if err != nil {
		t.Fatalf("failed to build scoring engine: %v", err)
	}

	return &testPipeline{
		cfg:     cfg,
		jobs:    jobs,
		queue:   queue,
		docs:    docs,
		extract: NewExtractHandler(runner, docs, fx, noopTranslator{}),
		enrich:  NewEnrichHandler(runner, &vocab, &fakeEntities{sentiment: 0.6}),
		lookup:  NewLookupHandler(runner, lookup),
		decide:  NewDecideHandler(runner, engine, synth),
		fx:      fx,
		synth:   synth,
	}
}

func (p *testPipeline) submit(t *testing.T, text string) *models.Job {
	t.Helper()
	job := models.NewJob("job_test", "doc_test", models.FormatText)
	if err := p.jobs.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	p.docs.blobs["doc_test"] = []byte(text)
	return job
}

func msgFor(jobID string, stage models.Stage) *models.StageMessage {
	return &models.StageMessage{JobID: jobID, Stage: stage, EnqueuedAt: time.Now()}
}

// ---------------------------------------------------------------------
// tests
// ---------------------------------------------------------------------

func TestPipelineForwardWalk(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "The act will expand the energy policy incentive for renewable energy projects.")

	steps := []struct {
		handler interfaces.StageHandler
		after   models.Stage
	}{
		{p.extract, models.StageEnriching},
		{p.enrich, models.StageLookingUp},
		{p.lookup, models.StageDeciding},
		{p.decide, models.StageComplete},
	}

	for _, step := range steps {
		if err := step.handler.Handle(ctx, msgFor(job.ID, step.handler.Stage())); err != nil {
			t.Fatalf("stage %s failed: %v", step.handler.Stage(), err)
		}
		got, _ := p.jobs.GetJob(ctx, job.ID)
		if got.Stage != step.after {
			t.Fatalf("after %s: stage = %s, want %s", step.handler.Stage(), got.Stage, step.after)
		}
		if !got.HasResult(step.handler.Stage()) {
			t.Fatalf("after %s: no persisted result", step.handler.Stage())
		}
	}

	final, _ := p.jobs.GetJob(ctx, job.ID)
	raw, _ := final.Result(models.StageDeciding)
	var result models.AnalysisResult
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("corrupt final result: %v", err)
	}

	if len(result.Tickers) != 2 {
		t.Fatalf("tickers = %v, want XOM and NEE", result.Tickers)
	}
	xom := result.Tickers["XOM"]
	nee := result.Tickers["NEE"]

	// Sector average beta is 0.8, so XOM carries +0.3 risk and NEE -0.3.
	if diff := xom.RiskDiff - 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("XOM risk diff = %f, want 0.3", xom.RiskDiff)
	}
	if diff := nee.RiskDiff + 0.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("NEE risk diff = %f, want -0.3", nee.RiskDiff)
	}

	// sentiment 0.6, law impact 0.75*0.9 = 0.675:
	// NEE: 0.4*0.6 + 0.4*0.675 + 0.2*(-0.3) = 0.45 -> buy
	// XOM: 0.4*0.6 + 0.4*0.675 + 0.2*0.3 = 0.57 -> strong_buy
	if xom.Decision != models.ActionStrongBuy {
		t.Errorf("XOM decision = %s (score %f), want strong_buy", xom.Decision, xom.FinalScore)
	}
	if nee.Decision != models.ActionBuy {
		t.Errorf("NEE decision = %s (score %f), want buy", nee.Decision, nee.FinalScore)
	}
	if result.Summary != "Energy names benefit." {
		t.Errorf("summary = %q", result.Summary)
	}

	// Each completed stage enqueued its successor; decide enqueues nothing.
	if len(p.queue.messages) != 3 {
		t.Errorf("enqueued %d successor messages, want 3", len(p.queue.messages))
	}
}

func TestDuplicateDeliveryIsDropped(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	before, _ := p.jobs.GetJob(ctx, job.ID)

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("duplicate delivery should be dropped, got: %v", err)
	}
	after, _ := p.jobs.GetJob(ctx, job.ID)

	if after.Stage != before.Stage {
		t.Errorf("duplicate delivery moved stage from %s to %s", before.Stage, after.Stage)
	}
	if p.fx.calls != 1 {
		t.Errorf("extractor ran %d times, want 1", p.fx.calls)
	}
}

func TestRetryableFailureRetriesThenSucceeds(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")
	p.fx.failures = 2

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("stage should succeed after retries: %v", err)
	}

	got, _ := p.jobs.GetJob(ctx, job.ID)
	if got.Stage != models.StageEnriching {
		t.Errorf("stage = %s, want enriching", got.Stage)
	}
	if got.Attempts[string(models.StageExtracting)] != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts[string(models.StageExtracting)])
	}
}

func TestExhaustedRetriesFailTheJob(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")
	p.fx.failures = 10

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("exhausted stage should drop the message, got: %v", err)
	}

	got, _ := p.jobs.GetJob(ctx, job.ID)
	if got.Stage != models.StageFailed {
		t.Fatalf("stage = %s, want failed", got.Stage)
	}
	if got.Error == nil || got.Error.Kind != "capability_error" {
		t.Errorf("error = %+v, want capability_error", got.Error)
	}
}

func TestStageTimeoutRetriesThenSucceeds(t *testing.T) {
	p := newTestPipeline(t)
	p.cfg.Pipeline.StageTimeout = "10ms"
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")
	p.fx.stalls = 2

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("stage should succeed after timed-out attempts: %v", err)
	}

	got, _ := p.jobs.GetJob(ctx, job.ID)
	if got.Stage != models.StageEnriching {
		t.Errorf("stage = %s, want enriching", got.Stage)
	}
	if got.Attempts[string(models.StageExtracting)] != 3 {
		t.Errorf("attempts = %d, want 3", got.Attempts[string(models.StageExtracting)])
	}
}

func TestStageTimeoutExhaustionFailsTheJob(t *testing.T) {
	p := newTestPipeline(t)
	p.cfg.Pipeline.StageTimeout = "10ms"
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")
	p.fx.stalls = 10

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("exhausted stage should drop the message, got: %v", err)
	}

	if p.fx.calls != 3 {
		t.Errorf("extractor ran %d times, want the full retry budget of 3", p.fx.calls)
	}
	got, _ := p.jobs.GetJob(ctx, job.ID)
	if got.Stage != models.StageFailed {
		t.Fatalf("stage = %s, want failed", got.Stage)
	}
	if got.Error == nil || got.Error.Kind != "stage_timeout" {
		t.Errorf("error = %+v, want stage_timeout", got.Error)
	}
}

func TestDecideStageKeysSummarySynthesis(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "The act will expand the energy policy incentive for renewable energy projects.")

	for _, h := range []interfaces.StageHandler{p.extract, p.enrich, p.lookup, p.decide} {
		if err := h.Handle(ctx, msgFor(job.ID, h.Stage())); err != nil {
			t.Fatalf("stage %s failed: %v", h.Stage(), err)
		}
	}

	if len(p.synth.keys) != 1 {
		t.Fatalf("synthesis called %d times, want 1", len(p.synth.keys))
	}
	want := job.ID + ":" + string(models.StageDeciding)
	if p.synth.keys[0] != want {
		t.Errorf("idempotency key = %q, want %q", p.synth.keys[0], want)
	}
}

func TestCancellationDuringStageDiscardsOutput(t *testing.T) {
	p := newTestPipeline(t)
	ctx := context.Background()
	job := p.submit(t, "renewable energy expansion")

	p.fx.onCall = func() {
		if err := p.jobs.CancelJob(ctx, job.ID); err != nil {
			t.Errorf("CancelJob failed: %v", err)
		}
	}

	if err := p.extract.Handle(ctx, msgFor(job.ID, models.StageExtracting)); err != nil {
		t.Fatalf("cancelled stage should drop the message, got: %v", err)
	}

	got, _ := p.jobs.GetJob(ctx, job.ID)
	if got.Stage != models.StageCancelled {
		t.Errorf("stage = %s, want cancelled", got.Stage)
	}
	if got.HasResult(models.StageExtracting) {
		t.Error("cancelled job should not retain stage output")
	}
	if len(p.queue.messages) != 0 {
		t.Error("cancelled job should not enqueue a successor stage")
	}
}

func TestMessageForUnknownJobIsDropped(t *testing.T) {
	p := newTestPipeline(t)

	if err := p.extract.Handle(context.Background(), msgFor("job_missing", models.StageExtracting)); err != nil {
		t.Fatalf("unknown job should be dropped, got: %v", err)
	}
}

func TestSplitChunksReassemblesInOrder(t *testing.T) {
	text := "alpha bravo charlie delta echo foxtrot golf hotel"

	chunks := splitChunks(text, 18)
	if len(chunks) < 3 {
		t.Fatalf("chunks = %d, want at least 3", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > 18 {
			t.Errorf("chunk %d is %d bytes, exceeds limit", i, len(c))
		}
	}
	if joined := strings.Join(chunks, ""); joined != text {
		t.Errorf("reassembled = %q, want original text", joined)
	}

	if got := splitChunks("short", 18); len(got) != 1 || got[0] != "short" {
		t.Errorf("small input should be a single chunk, got %v", got)
	}
}
