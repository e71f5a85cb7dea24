package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a single workflow step.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusWaiting Status = "waiting" // blocked on a cross-step dependency
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// StepName identifies a step within a publish workflow.
type StepName string

const (
	StepUpload  StepName = "upload"
	StepPublish StepName = "publish"
)

// Step is one asynchronous side-effecting operation in a workflow. Ready, when
// set, gates execution on an artifact produced by an earlier step; the
// sequencer waits (bounded) until it reports true before invoking Run.
type Step struct {
	Name  StepName
	Run   func(ctx context.Context) error
	Ready func() bool
}

// StepStatus is the externally visible state of one step.
type StepStatus struct {
	Status   Status `json:"status"`
	Disabled bool   `json:"disabled"`
	Error    string `json:"error,omitempty"`
}

// State is a snapshot of a sequencer, shaped for rendering per-step controls.
type State struct {
	Order                       []StepName              `json:"order"`
	Steps                       map[StepName]StepStatus `json:"steps"`
	AutoProgress                bool                    `json:"auto_progress"`
	AutoProgressDisabledByError bool                    `json:"auto_progress_disabled_by_error"`
	Completed                   bool                    `json:"completed"`
}

// Notice is a transient user-facing notification emitted when a step fails.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	At      int64  `json:"at"`
}

// Notifier receives transient notices. Called outside the sequencer lock.
type Notifier func(Notice)

// Options tunes a sequencer. Zero values fall back to defaults.
type Options struct {
	// DependencyPoll and DependencyTimeout bound the wait for a step whose
	// Ready gate is not yet satisfied. The wait is always bounded: a stalled
	// upload surfaces as a step error instead of an unbounded retry loop.
	DependencyPoll    time.Duration
	DependencyTimeout time.Duration

	Notify     Notifier
	OnComplete func()
}

const (
	defaultDependencyPoll    = time.Second
	defaultDependencyTimeout = 30 * time.Second
)

type stepState struct {
	step     Step
	status   Status
	disabled bool
	lastErr  error
}

// Sequencer orders 1..n named steps, tracks per-step status, and optionally
// auto-advances from a completed step to the next. Instances are fully
// isolated; a sequencer owns no state beyond its own steps.
//
// Step failures are never returned from RunStep: they are recorded as step
// Error (retryable) and surfaced through the Notifier. RunStep only errors on
// precondition violations (unknown, disabled, or already-running step).
type Sequencer struct {
	mu                  sync.Mutex
	opts                Options
	order               []StepName
	steps               map[StepName]*stepState
	auto                bool
	autoDisabledByError bool
	completed           bool
	closed              bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New initializes a sequencer over the given steps: the first step starts
// enabled, every later step starts disabled. Only the steps relevant to this
// submission should be passed (omit the upload step when no media is
// attached).
func New(steps []Step, opts Options) (*Sequencer, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("workflow needs at least one step")
	}
	if opts.DependencyPoll <= 0 {
		opts.DependencyPoll = defaultDependencyPoll
	}
	if opts.DependencyTimeout <= 0 {
		opts.DependencyTimeout = defaultDependencyTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		opts:   opts,
		steps:  make(map[StepName]*stepState, len(steps)),
		ctx:    ctx,
		cancel: cancel,
	}
	for i, st := range steps {
		if st.Run == nil {
			cancel()
			return nil, fmt.Errorf("step %q has no run function", st.Name)
		}
		if _, dup := s.steps[st.Name]; dup {
			cancel()
			return nil, fmt.Errorf("duplicate step %q", st.Name)
		}
		s.order = append(s.order, st.Name)
		s.steps[st.Name] = &stepState{
			step:     st,
			status:   StatusIdle,
			disabled: i != 0,
		}
	}
	return s, nil
}

// RunStep executes the named step. Preconditions: the step exists, is not
// disabled, and is not already running. On success the next step (if any) is
// enabled, or the workflow completes. On failure the step is marked Error and
// left enabled for retry; if auto-progression was engaged it is halted with
// the sticky AutoProgressDisabledByError flag.
func (s *Sequencer) RunStep(ctx context.Context, name StepName) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("workflow is closed")
	}
	st, ok := s.steps[name]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown step %q", name)
	}
	if st.disabled {
		s.mu.Unlock()
		return fmt.Errorf("step %q is disabled", name)
	}
	if st.status == StatusLoading || st.status == StatusWaiting {
		s.mu.Unlock()
		return fmt.Errorf("step %q is already running", name)
	}

	// Cross-step dependency gate: wait (bounded) instead of running with a
	// missing artifact.
	if st.step.Ready != nil && !st.step.Ready() {
		st.status = StatusWaiting
		st.disabled = true
		s.mu.Unlock()

		if err := s.awaitDependency(ctx, st.step.Ready); err != nil {
			s.mu.Lock()
			s.failStepLocked(st, err)
			s.mu.Unlock()
			return nil
		}
		s.mu.Lock()
	}

	st.status = StatusLoading
	st.disabled = true
	st.lastErr = nil
	s.mu.Unlock()

	runCtx, cancelRun := s.stepContext(ctx)
	err := st.step.Run(runCtx)
	cancelRun()

	s.mu.Lock()
	if err != nil {
		s.failStepLocked(st, err)
		s.mu.Unlock()
		return nil
	}

	st.status = StatusSuccess
	st.disabled = true

	next := s.nextAfterLocked(name)
	if next == "" {
		s.completed = true
		done := s.opts.OnComplete
		s.mu.Unlock()
		if done != nil {
			done()
		}
		return nil
	}
	ns := s.steps[next]
	ns.status = StatusIdle
	ns.disabled = false
	auto := s.auto
	s.mu.Unlock()

	if auto {
		return s.RunStep(ctx, next)
	}
	return nil
}

// ToggleAutoProgress flips auto-progression and returns the new value. When
// turning it on, the first enabled Idle step is started immediately so the
// user does not have to click twice. A step already in Error is never
// auto-retried here; only ResetAfterError retries failures.
func (s *Sequencer) ToggleAutoProgress(ctx context.Context) bool {
	s.mu.Lock()
	s.auto = !s.auto
	enabled := s.auto
	var start StepName
	if enabled {
		start = s.firstRunnableIdleLocked()
	}
	s.mu.Unlock()

	if start != "" {
		_ = s.RunStep(ctx, start)
	}
	return enabled
}

// ResetAfterError clears the sticky error flag, re-enables auto-progression,
// and retries the earliest-ordered Error step if one exists, else starts the
// earliest enabled Idle step.
func (s *Sequencer) ResetAfterError(ctx context.Context) {
	s.mu.Lock()
	s.autoDisabledByError = false
	s.auto = true

	var target StepName
	for _, name := range s.order {
		if s.steps[name].status == StatusError {
			target = name
			break
		}
	}
	if target == "" {
		target = s.firstRunnableIdleLocked()
	}
	s.mu.Unlock()

	if target != "" {
		_ = s.RunStep(ctx, target)
	}
}

// Snapshot returns a copy of the current workflow state.
func (s *Sequencer) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{
		Order:                       append([]StepName(nil), s.order...),
		Steps:                       make(map[StepName]StepStatus, len(s.steps)),
		AutoProgress:                s.auto,
		AutoProgressDisabledByError: s.autoDisabledByError,
		Completed:                   s.completed,
	}
	for name, st := range s.steps {
		ss := StepStatus{Status: st.status, Disabled: st.disabled}
		if st.lastErr != nil {
			ss.Error = st.lastErr.Error()
		}
		out.Steps[name] = ss
	}
	return out
}

// Completed reports whether every step has succeeded.
func (s *Sequencer) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Closed reports whether the workflow was torn down.
func (s *Sequencer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close cancels any in-progress dependency wait and marks the workflow
// unusable. Called when the owning surface is torn down so no timer keeps
// mutating an abandoned workflow. An in-flight Run call itself is cancelled
// via its context; already-submitted transactions cannot be aborted.
func (s *Sequencer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

// awaitDependency polls the ready gate until it passes, the bounded timeout
// elapses, or either context is cancelled.
func (s *Sequencer) awaitDependency(ctx context.Context, ready func() bool) error {
	ticker := time.NewTicker(s.opts.DependencyPoll)
	defer ticker.Stop()
	deadline := time.NewTimer(s.opts.DependencyTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.C:
			if ready() {
				return nil
			}
		case <-deadline.C:
			return ErrDependencyTimeout
		case <-ctx.Done():
			return ctx.Err()
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

// stepContext derives a run context that is also cancelled when the sequencer
// is closed.
func (s *Sequencer) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	return runCtx, cancel
}

func (s *Sequencer) failStepLocked(st *stepState, err error) {
	st.status = StatusError
	st.disabled = false
	st.lastErr = err
	if s.auto {
		s.auto = false
		s.autoDisabledByError = true
	}
	if IsUserRejection(err) {
		// Rejection must never re-prompt the wallet: make the halt sticky
		// even when the step was run manually while auto was off.
		s.autoDisabledByError = true
	}

	if s.opts.Notify != nil {
		notify := s.opts.Notify
		notice := Notice{Level: "error", Message: err.Error(), At: time.Now().Unix()}
		go notify(notice)
	}
}

func (s *Sequencer) nextAfterLocked(name StepName) StepName {
	for i, n := range s.order {
		if n == name && i+1 < len(s.order) {
			return s.order[i+1]
		}
	}
	return ""
}

func (s *Sequencer) firstRunnableIdleLocked() StepName {
	for _, name := range s.order {
		st := s.steps[name]
		if st.status == StatusIdle && !st.disabled {
			return name
		}
	}
	return ""
}
