package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/jaspreet-dot-casa/vmprov/pkg/plan"
	"github.com/jaspreet-dot-casa/vmprov/pkg/state"
)

// Recorder persists the start and outcome of a run.
type Recorder interface {
	BeginRun(id string, at time.Time) error
	FinishRun(id, status string, at time.Time) error
}

// StepResult is the outcome of a single step.
type StepResult struct {
	ID          string
	Description string
	Outcome     Outcome
	Duration    time.Duration
	Err         error
}

// Result represents the outcome of a run.
type Result struct {
	RunID    string
	DryRun   bool
	Success  bool
	Duration time.Duration
	Steps    []StepResult
	Error    error
}

// Count returns the number of steps with the given outcome.
func (r *Result) Count(o Outcome) int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome == o {
			n++
		}
	}
	return n
}

// Failed returns the failed step, or nil if the run succeeded.
func (r *Result) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Outcome == OutcomeFailed {
			return &r.Steps[i]
		}
	}
	return nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress sets the callback that receives progress events.
func WithProgress(cb ProgressCallback) Option {
	return func(r *Runner) {
		if cb != nil {
			r.progress = cb
		}
	}
}

// WithRecorder records each run's ID, timing and status.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// Runner applies steps in dependency order.
type Runner struct {
	steps    []Step
	progress ProgressCallback
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// New orders steps by their declared requirements. Ties keep the order in
// which steps were given.
func New(steps []Step, opts ...Option) (*Runner, error) {
	nodes := make([]plan.Node, len(steps))
	byID := make(map[string]Step, len(steps))
	for i, s := range steps {
		nodes[i] = plan.Node{ID: s.ID(), Requires: s.Requires()}
		byID[s.ID()] = s
	}

	p, err := plan.New(nodes)
	if err != nil {
		return nil, fmt.Errorf("failed to order steps: %w", err)
	}

	ordered := make([]Step, 0, len(steps))
	for _, id := range p.Order() {
		ordered = append(ordered, byID[id])
	}

	r := &Runner{
		steps:    ordered,
		progress: NoOpProgress,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Steps returns the steps in execution order.
func (r *Runner) Steps() []Step {
	return r.steps
}

// Run checks and applies every step in order. It stops at the first failure;
// the remaining steps are reported as skipped and the failure is returned as
// a *StepError.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	return r.execute(ctx, false)
}

// DryRun checks every step without applying anything.
func (r *Runner) DryRun(ctx context.Context) (*Result, error) {
	return r.execute(ctx, true)
}

func (r *Runner) execute(ctx context.Context, dryRun bool) (*Result, error) {
	start := r.now()
	result := &Result{
		RunID:  r.newID(),
		DryRun: dryRun,
		Steps:  make([]StepResult, 0, len(r.steps)),
	}

	if !dryRun && r.recorder != nil {
		if err := r.recorder.BeginRun(result.RunID, start); err != nil {
			return nil, fmt.Errorf("failed to record run start: %w", err)
		}
	}
	klog.Infof("Run %s started (%d steps, dry-run=%t)", result.RunID, len(r.steps), dryRun)

	var runErr error
	for i, step := range r.steps {
		if runErr != nil {
			result.Steps = append(result.Steps, StepResult{
				ID:          step.ID(),
				Description: step.Describe(),
				Outcome:     OutcomeSkipped,
			})
			r.progress(NewProgressEvent(StageSkipped, step.ID(), "Skipped: "+step.Describe(), r.percent(i+1)))
			continue
		}

		sr := r.runStep(ctx, step, i, dryRun)
		result.Steps = append(result.Steps, sr)
		if sr.Err != nil {
			runErr = &StepError{StepID: step.ID(), Err: sr.Err}
		}
	}

	result.Duration = r.now().Sub(start)
	result.Success = runErr == nil
	result.Error = runErr

	if runErr != nil {
		klog.Errorf("Run %s failed: %v", result.RunID, runErr)
		r.progress(NewErrorEvent("", runErr.Error(), 100))
	} else {
		klog.Infof("Run %s finished in %s", result.RunID, result.Duration.Round(time.Millisecond))
		r.progress(NewProgressEvent(StageComplete, "", "Provisioning complete", 100))
	}

	if !dryRun && r.recorder != nil {
		status := state.RunSucceeded
		if runErr != nil {
			status = state.RunFailed
		}
		if err := r.recorder.FinishRun(result.RunID, status, r.now()); err != nil {
			klog.Warningf("Failed to record run finish: %v", err)
		}
	}

	return result, runErr
}

func (r *Runner) runStep(ctx context.Context, step Step, i int, dryRun bool) StepResult {
	started := r.now()
	sr := StepResult{ID: step.ID(), Description: step.Describe()}
	finish := func(o Outcome, err error) StepResult {
		sr.Outcome = o
		sr.Err = err
		sr.Duration = r.now().Sub(started)
		return sr
	}

	if err := ctx.Err(); err != nil {
		r.progress(NewErrorEvent(step.ID(), err.Error(), r.percent(i)))
		return finish(OutcomeFailed, err)
	}

	r.progress(NewProgressEvent(StageChecking, step.ID(), "Checking "+step.Describe(), r.percent(i)))
	status, err := step.Check(ctx)
	if err != nil {
		err = fmt.Errorf("check: %w", err)
		r.progress(NewErrorEvent(step.ID(), err.Error(), r.percent(i)))
		return finish(OutcomeFailed, err)
	}

	if status == StatusSatisfied {
		if a, ok := step.(Adopter); ok && !dryRun {
			if err := a.Adopt(ctx); err != nil {
				err = fmt.Errorf("adopt: %w", err)
				r.progress(NewErrorEvent(step.ID(), err.Error(), r.percent(i+1)))
				return finish(OutcomeFailed, err)
			}
		}
		klog.V(1).Infof("Step %s already satisfied", step.ID())
		r.progress(NewProgressEvent(StageSatisfied, step.ID(), step.Describe(), r.percent(i+1)))
		return finish(OutcomeSatisfied, nil)
	}

	if dryRun {
		r.progress(NewProgressEvent(StageApplying, step.ID(), "Would apply "+step.Describe(), r.percent(i+1)))
		return finish(OutcomeWouldApply, nil)
	}

	klog.Infof("Applying %s", step.ID())
	r.progress(NewProgressEvent(StageApplying, step.ID(), "Applying "+step.Describe(), r.percent(i)))
	if err := step.Apply(ctx); err != nil {
		r.progress(NewErrorEvent(step.ID(), err.Error(), r.percent(i)))
		return finish(OutcomeFailed, err)
	}

	r.progress(NewProgressEvent(StageApplied, step.ID(), step.Describe(), r.percent(i+1)))
	return finish(OutcomeApplied, nil)
}

func (r *Runner) percent(done int) int {
	if len(r.steps) == 0 {
		return 100
	}
	return done * 100 / len(r.steps)
}
