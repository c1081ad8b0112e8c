package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"CascadeBandit/internal/bandit"
	"CascadeBandit/internal/calculator"
	"CascadeBandit/internal/model"
	"CascadeBandit/internal/notifier"
	"CascadeBandit/internal/observability"
	"CascadeBandit/internal/recorder"
)

// Environment is the part of the environment the frame loop drives directly.
type Environment interface {
	SimulateFailure() (model.FailureEvent, bool)
	Snapshot() model.Snapshot
	Flush()
}

// Actor runs one bandit decision cycle.
type Actor interface {
	Action() (bandit.Result, error)
}

// Options describe one simulation run.
type Options struct {
	RunID         string
	Seed          uint64
	Steps         []model.StepKind
	Failure       bool
	Iterations    int
	FrameInterval time.Duration
	Accelerated   bool // ignore FrameInterval and play frames back to back
	RollingWindow int
	SummaryPath   string
}

// Scheduler owns the frame loop and all cron tasks. Every touch of the
// environment happens under mu, so reports and commands never observe a
// half-played frame.
type Scheduler struct {
	Cron     *cron.Cron
	Env      Environment
	Bandit   Actor
	Notifier notifier.Notifier
	Recorder recorder.Recorder
	Metrics  *observability.BanditCollector
	Ctx      context.Context

	opts Options

	mu        sync.Mutex
	iteration int
	rolling   []int
	failures  []model.FailureEvent // not yet reported
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, env Environment, b Actor, n notifier.Notifier, rec recorder.Recorder, m *observability.BanditCollector, opts Options) *Scheduler {
	if opts.RollingWindow <= 0 {
		opts.RollingWindow = 50
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Env:      env,
		Bandit:   b,
		Notifier: n,
		Recorder: rec,
		Metrics:  m,
		Ctx:      ctx,
		opts:     opts,
	}
}

// RegisterAll registers the periodic report task.
func (s *Scheduler) RegisterAll(reportCron string) error {
	if _, err := s.Cron.AddFunc(reportCron, s.reportTask); err != nil {
		return fmt.Errorf("register report task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for a running report to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// Iteration returns how many frames have been played.
func (s *Scheduler) Iteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.iteration
}

// Run plays the configured number of frames, paced by FrameInterval unless
// accelerated, then writes the final report. It returns early when ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.recordRun()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if !s.opts.Accelerated && s.opts.FrameInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(s.opts.FrameInterval), 1)
	}

	var runErr error
	for i := 0; i < s.opts.Iterations; i++ {
		if err := limiter.Wait(ctx); err != nil {
			runErr = ctx.Err()
			break
		}
		if _, err := s.Step(ctx); err != nil {
			runErr = err
			break
		}
	}

	s.finish()
	return runErr
}

// Step plays exactly one frame: the bank-failure check, then one bandit action.
func (s *Scheduler) Step(ctx context.Context) (bandit.Result, error) {
	s.mu.Lock()
	s.iteration++
	iteration := s.iteration

	_, span := observability.StartFrame(ctx, iteration)
	defer span.End()

	evt, failed := s.Env.SimulateFailure()
	if failed {
		s.failures = append(s.failures, evt)
	}

	start := time.Now()
	res, err := s.Bandit.Action()
	elapsed := time.Since(start)
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.Metrics.ObserveFrame(observability.FrameError, elapsed)
		return res, fmt.Errorf("frame %d: %w", iteration, err)
	}
	if !res.Skipped {
		s.rolling = append(s.rolling, res.Outcome.Reward)
		if len(s.rolling) > s.opts.RollingWindow {
			s.rolling = s.rolling[len(s.rolling)-s.opts.RollingWindow:]
		}
	}
	snap := s.Env.Snapshot()
	s.mu.Unlock()

	result := frameResult(res)
	span.SetAttributes(
		attribute.String("bandit.cascade", string(res.Cascade)),
		attribute.Int("bandit.reward", res.Outcome.Reward),
		attribute.String("bandit.result", result),
	)
	s.Metrics.ObserveFrame(result, elapsed)
	s.Metrics.ObserveSnapshot(&snap)

	if failed {
		log.Printf("[WARN] %s", evt.Message)
		s.Metrics.IncFailure(evt)
		if err := s.Recorder.RecordFailure(s.opts.RunID, &evt); err != nil {
			log.Printf("[ERROR] record failure: %v", err)
		}
		s.trySend(notifier.FormatFailure(evt))
	}

	convertedArm := -1
	if !res.Skipped {
		convertedArm = res.Outcome.ConvertedArm
	}
	if err := s.Recorder.RecordIteration(&recorder.IterationEvent{
		RunID:        s.opts.RunID,
		Iteration:    iteration,
		Cascade:      res.Cascade,
		Reward:       res.Outcome.Reward,
		ConvertedArm: convertedArm,
		StepsVisited: res.Outcome.StepsVisited,
		Skipped:      res.Skipped,
	}); err != nil {
		log.Printf("[ERROR] record iteration: %v", err)
	}
	return res, nil
}

// RunReportNow executes the report task immediately.
func (s *Scheduler) RunReportNow() {
	s.reportTask()
}

func (s *Scheduler) reportTask() {
	report := s.buildReport(true)
	s.recordSnapshot(report.Iteration, &report.Snapshot)
	s.trySend(notifier.FormatReport(report))
}

// buildReport captures a consistent view of the experiment. When drain is
// set, pending failure events are handed to this report only.
func (s *Scheduler) buildReport(drain bool) *notifier.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	rolling, err := calculator.RollingConversion(s.rolling, s.opts.RollingWindow)
	if err != nil {
		log.Printf("[WARN] rolling conversion: %v", err)
	}
	failures := append([]model.FailureEvent(nil), s.failures...)
	if drain {
		s.failures = nil
	}
	return &notifier.Report{
		Snapshot:   s.Env.Snapshot(),
		Iteration:  s.iteration,
		Iterations: s.opts.Iterations,
		Rolling:    rolling,
		Failures:   failures,
	}
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	switch strings.ToLower(strings.TrimSpace(command)) {
	case "/report":
		return notifier.FormatReport(s.buildReport(false))
	case "/configs":
		snap := s.snapshot()
		return notifier.FormatConfigs(&snap)
	case "/arms":
		snap := s.snapshot()
		return notifier.FormatArms(&snap)
	case "/flush":
		s.flush()
		return "♻️ Experiment state flushed"
	default:
		return "Available commands:\n• /report\n• /configs\n• /arms\n• /flush"
	}
}

func (s *Scheduler) snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Env.Snapshot()
}

func (s *Scheduler) flush() {
	s.mu.Lock()
	s.Env.Flush()
	s.rolling = nil
	s.failures = nil
	snap := s.Env.Snapshot()
	s.mu.Unlock()

	s.Metrics.ObserveSnapshot(&snap)
	log.Println("[INFO] experiment state flushed")
}

func (s *Scheduler) recordRun() {
	steps := make([]string, len(s.opts.Steps))
	for i, k := range s.opts.Steps {
		steps[i] = string(k)
	}
	if err := s.Recorder.RecordRun(&recorder.Run{
		ID:         s.opts.RunID,
		Seed:       s.opts.Seed,
		Iterations: s.opts.Iterations,
		Steps:      strings.Join(steps, ","),
		Failure:    s.opts.Failure,
		StartedAt:  time.Now(),
	}); err != nil {
		log.Printf("[ERROR] record run: %v", err)
	}
}

func (s *Scheduler) recordSnapshot(iteration int, snap *model.Snapshot) {
	if err := s.Recorder.RecordSnapshot(s.opts.RunID, iteration, snap); err != nil {
		log.Printf("[ERROR] record snapshot: %v", err)
	}
}

// finish persists the final state and sends the closing report.
func (s *Scheduler) finish() {
	report := s.buildReport(true)
	c := report.Snapshot.Counters

	s.recordSnapshot(report.Iteration, &report.Snapshot)
	if err := s.Recorder.FinishRun(s.opts.RunID, c); err != nil {
		log.Printf("[ERROR] finish run: %v", err)
	}

	if s.opts.SummaryPath != "" {
		summary := &recorder.Summary{
			RunID:      s.opts.RunID,
			Seed:       s.opts.Seed,
			Iterations: report.Iteration,
			Conversion: map[string]float64{
				"primary":  calculator.Conversion(c.PrimarySuccess, c.PrimaryPayments),
				"repeated": calculator.Conversion(c.RepeatedSuccess, c.RepeatedPayments),
				"overall":  calculator.Conversion(c.Success, c.Payments),
				"cascade":  calculator.Conversion(c.CascadeSuccess, c.CascadePayments),
			},
			Snapshot: report.Snapshot,
		}
		if err := recorder.SaveSummary(s.opts.SummaryPath, summary); err != nil {
			log.Printf("[ERROR] save summary: %v", err)
		} else {
			log.Printf("[INFO] summary written to %s", s.opts.SummaryPath)
		}
	}

	log.Printf("[INFO] run %s finished after %d frames, cascade conversion %.2f%%",
		s.opts.RunID, report.Iteration, calculator.Conversion(c.CascadeSuccess, c.CascadePayments))
	s.trySend(notifier.FormatReport(report))
}

func (s *Scheduler) trySend(text string) {
	ctx := s.Ctx
	if ctx == nil || ctx.Err() != nil {
		// Closing reports still go out after shutdown starts.
		ctx = context.Background()
	}
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}

func frameResult(res bandit.Result) string {
	switch {
	case res.Skipped:
		return observability.FrameSkipped
	case res.Outcome.Reward == 1:
		return observability.FrameConverted
	default:
		return observability.FrameFailed
	}
}
