package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func twoSteps(t *testing.T, opts Options, runs ...func(ctx context.Context) error) *Sequencer {
	t.Helper()
	if len(runs) != 2 {
		t.Fatalf("twoSteps wants 2 run funcs, got %d", len(runs))
	}
	s, err := New([]Step{
		{Name: StepUpload, Run: runs[0]},
		{Name: StepPublish, Run: runs[1]},
	}, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func ok(ctx context.Context) error { return nil }

func TestNewInitialState(t *testing.T) {
	s := twoSteps(t, Options{}, ok, ok)
	state := s.Snapshot()

	if got := state.Steps[StepUpload]; got.Status != StatusIdle || got.Disabled {
		t.Errorf("first step = %+v, want idle and enabled", got)
	}
	if got := state.Steps[StepPublish]; got.Status != StatusIdle || !got.Disabled {
		t.Errorf("second step = %+v, want idle and disabled", got)
	}
	if state.AutoProgress || state.AutoProgressDisabledByError || state.Completed {
		t.Errorf("fresh workflow carries stale flags: %+v", state)
	}
}

func TestNewRejectsEmptyAndDuplicates(t *testing.T) {
	if _, err := New(nil, Options{}); err == nil {
		t.Error("New accepted an empty step list")
	}
	_, err := New([]Step{
		{Name: StepUpload, Run: ok},
		{Name: StepUpload, Run: ok},
	}, Options{})
	if err == nil {
		t.Error("New accepted duplicate step names")
	}
}

func TestRunStepEnablesExactlyNext(t *testing.T) {
	s := twoSteps(t, Options{}, ok, ok)

	if err := s.RunStep(context.Background(), StepUpload); err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}

	state := s.Snapshot()
	if got := state.Steps[StepUpload]; got.Status != StatusSuccess || !got.Disabled {
		t.Errorf("completed step = %+v, want success and disabled", got)
	}
	if got := state.Steps[StepPublish]; got.Status != StatusIdle || got.Disabled {
		t.Errorf("next step = %+v, want idle and enabled", got)
	}
}

func TestSuccessIsPermanent(t *testing.T) {
	s := twoSteps(t, Options{}, ok, ok)
	ctx := context.Background()

	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("RunStep failed: %v", err)
	}
	// A succeeded step is disabled and must refuse to run again.
	if err := s.RunStep(ctx, StepUpload); err == nil {
		t.Error("re-running a succeeded step did not error")
	}
}

func TestDisabledStepRefusesToRun(t *testing.T) {
	s := twoSteps(t, Options{}, ok, ok)
	if err := s.RunStep(context.Background(), StepPublish); err == nil {
		t.Error("running a disabled step did not error")
	}
}

func TestCompletionFiresOnComplete(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	s := twoSteps(t, Options{OnComplete: func() {
		mu.Lock()
		fired++
		mu.Unlock()
	}}, ok, ok)
	ctx := context.Background()

	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("RunStep upload: %v", err)
	}
	if err := s.RunStep(ctx, StepPublish); err != nil {
		t.Fatalf("RunStep publish: %v", err)
	}

	if !s.Completed() {
		t.Error("workflow not completed after last step")
	}
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Errorf("OnComplete fired %d times, want 1", fired)
	}
}

func TestFailureLeavesStepRetryable(t *testing.T) {
	calls := 0
	s := twoSteps(t, Options{}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("transient network error")
		}
		return nil
	}, ok)
	ctx := context.Background()

	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("RunStep returned the step failure: %v", err)
	}

	state := s.Snapshot()
	if got := state.Steps[StepUpload]; got.Status != StatusError || got.Disabled {
		t.Errorf("failed step = %+v, want error and enabled", got)
	}
	if got := state.Steps[StepPublish]; !got.Disabled {
		t.Errorf("later step enabled after a failure: %+v", got)
	}

	// Retry succeeds and progression resumes.
	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := s.Snapshot().Steps[StepPublish]; got.Disabled {
		t.Errorf("next step still disabled after retry succeeded: %+v", got)
	}
}

func TestAutoProgressRunsThrough(t *testing.T) {
	var order []StepName
	s, err := New([]Step{
		{Name: StepUpload, Run: func(ctx context.Context) error {
			order = append(order, StepUpload)
			return nil
		}},
		{Name: StepPublish, Run: func(ctx context.Context) error {
			order = append(order, StepPublish)
			return nil
		}},
	}, Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if !s.ToggleAutoProgress(context.Background()) {
		t.Fatal("toggle did not enable auto-progression")
	}

	if !s.Completed() {
		t.Error("auto-progression did not run the workflow to completion")
	}
	if len(order) != 2 || order[0] != StepUpload || order[1] != StepPublish {
		t.Errorf("steps ran in order %v", order)
	}
}

func TestFailureDuringAutoSetsStickyFlag(t *testing.T) {
	s := twoSteps(t, Options{}, func(ctx context.Context) error {
		return &UploadError{Err: errors.New("node unreachable")}
	}, ok)

	s.ToggleAutoProgress(context.Background())

	state := s.Snapshot()
	if state.AutoProgress {
		t.Error("auto-progression still on after a failure")
	}
	if !state.AutoProgressDisabledByError {
		t.Error("sticky error flag not set by auto-progression failure")
	}
	if got := state.Steps[StepPublish]; !got.Disabled {
		t.Errorf("publish step enabled despite upload failure: %+v", got)
	}
}

func TestToggleOnNeverRetriesErrorStep(t *testing.T) {
	calls := 0
	s := twoSteps(t, Options{}, func(ctx context.Context) error {
		calls++
		return errors.New("persistent failure")
	}, ok)
	ctx := context.Background()

	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if calls != 1 {
		t.Fatalf("run count = %d, want 1", calls)
	}

	// Turning auto on starts Idle steps only; the Error step stays put.
	s.ToggleAutoProgress(ctx)
	if calls != 1 {
		t.Errorf("toggle auto retried a failed step (run count %d)", calls)
	}
	if got := s.Snapshot().Steps[StepUpload]; got.Status != StatusError {
		t.Errorf("failed step status = %v, want error", got.Status)
	}
}

func TestResetAfterErrorRetriesEarliestFailure(t *testing.T) {
	calls := 0
	s := twoSteps(t, Options{}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	}, ok)
	ctx := context.Background()

	s.ToggleAutoProgress(ctx)
	if got := s.Snapshot(); !got.AutoProgressDisabledByError {
		t.Fatalf("expected sticky flag after auto failure, got %+v", got)
	}

	s.ResetAfterError(ctx)

	state := s.Snapshot()
	if state.AutoProgressDisabledByError {
		t.Error("reset did not clear the sticky flag")
	}
	if calls != 2 {
		t.Errorf("failed step run %d times, want 2 (one retry)", calls)
	}
	// Auto was re-engaged, so the retry should have carried through publish.
	if !state.Completed {
		t.Errorf("reset with auto did not run to completion: %+v", state)
	}
}

func TestResetWithoutErrorStartsEarliestIdle(t *testing.T) {
	calls := 0
	s := twoSteps(t, Options{}, func(ctx context.Context) error {
		calls++
		return nil
	}, ok)

	s.ResetAfterError(context.Background())
	if calls != 1 {
		t.Errorf("reset did not start the earliest idle step (run count %d)", calls)
	}
}

func TestUserRejectionAlwaysSticky(t *testing.T) {
	s := twoSteps(t, Options{}, ok, ok)
	ctx := context.Background()

	if err := s.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("upload: %v", err)
	}

	rejecting, err := New([]Step{
		{Name: StepPublish, Run: func(ctx context.Context) error {
			return ErrUserRejected
		}},
	}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Manual run with auto off: rejection must still set the sticky flag so
	// nothing re-prompts the wallet.
	if err := rejecting.RunStep(ctx, StepPublish); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	state := rejecting.Snapshot()
	if !state.AutoProgressDisabledByError {
		t.Error("user rejection did not set the sticky flag on a manual run")
	}
	if got := state.Steps[StepPublish]; got.Status != StatusError || got.Disabled {
		t.Errorf("rejected step = %+v, want error and enabled", got)
	}
}

func TestDependencyWaitResolves(t *testing.T) {
	var mu sync.Mutex
	readyNow := false

	s, err := New([]Step{
		{
			Name: StepPublish,
			Run:  ok,
			Ready: func() bool {
				mu.Lock()
				defer mu.Unlock()
				return readyNow
			},
		},
	}, Options{DependencyPoll: 10 * time.Millisecond, DependencyTimeout: time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	go func() {
		time.Sleep(30 * time.Millisecond)
		mu.Lock()
		readyNow = true
		mu.Unlock()
	}()

	if err := s.RunStep(context.Background(), StepPublish); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if got := s.Snapshot().Steps[StepPublish]; got.Status != StatusSuccess {
		t.Errorf("step status = %v, want success after dependency resolved", got.Status)
	}
}

func TestDependencyWaitTimesOutBounded(t *testing.T) {
	s, err := New([]Step{
		{
			Name:  StepPublish,
			Run:   ok,
			Ready: func() bool { return false },
		},
	}, Options{DependencyPoll: 5 * time.Millisecond, DependencyTimeout: 25 * time.Millisecond})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	if err := s.RunStep(context.Background(), StepPublish); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("dependency wait not bounded: took %v", elapsed)
	}

	got := s.Snapshot().Steps[StepPublish]
	if got.Status != StatusError {
		t.Errorf("step status = %v, want error after dependency timeout", got.Status)
	}
	if got.Error != ErrDependencyTimeout.Error() {
		t.Errorf("step error = %q, want dependency timeout", got.Error)
	}
}

func TestCloseCancelsDependencyWait(t *testing.T) {
	s, err := New([]Step{
		{
			Name:  StepPublish,
			Run:   ok,
			Ready: func() bool { return false },
		},
	}, Options{DependencyPoll: 5 * time.Millisecond, DependencyTimeout: time.Hour})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.RunStep(context.Background(), StepPublish)
	}()

	time.Sleep(20 * time.Millisecond)
	s.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the dependency wait")
	}
	if !s.Closed() {
		t.Error("Closed() false after Close")
	}
}

func TestNoticesEmittedOnFailure(t *testing.T) {
	notices := make(chan Notice, 1)
	s := twoSteps(t, Options{Notify: func(n Notice) { notices <- n }},
		func(ctx context.Context) error { return errors.New("boom") }, ok)

	if err := s.RunStep(context.Background(), StepUpload); err != nil {
		t.Fatalf("RunStep: %v", err)
	}

	select {
	case n := <-notices:
		if n.Level != "error" || n.Message == "" {
			t.Errorf("notice = %+v", n)
		}
	case <-time.After(time.Second):
		t.Fatal("no notice emitted for step failure")
	}
}

func TestInstancesAreIsolated(t *testing.T) {
	ctx := context.Background()
	a := twoSteps(t, Options{}, func(ctx context.Context) error {
		return errors.New("a fails")
	}, ok)
	b := twoSteps(t, Options{}, ok, ok)

	if err := a.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("a: %v", err)
	}
	if err := b.RunStep(ctx, StepUpload); err != nil {
		t.Fatalf("b: %v", err)
	}

	if got := a.Snapshot().Steps[StepUpload]; got.Status != StatusError {
		t.Errorf("a upload = %v, want error", got.Status)
	}
	if got := b.Snapshot().Steps[StepUpload]; got.Status != StatusSuccess {
		t.Errorf("b upload = %v, want success (leaked state from a?)", got.Status)
	}
}

func TestErrorClassification(t *testing.T) {
	upload := &UploadError{Err: fmt.Errorf("read: %w", errors.New("eof"))}
	if upload.Unwrap() == nil {
		t.Error("UploadError does not unwrap")
	}

	wrapped := fmt.Errorf("submit: %w", ErrUserRejected)
	if !IsUserRejection(wrapped) {
		t.Error("wrapped rejection not classified")
	}
	if IsUserRejection(&SubmissionError{Err: errors.New("network")}) {
		t.Error("submission error misclassified as rejection")
	}

	tf := &TransactionFailure{TransactionID: "0.0.5@1700000000.0", Result: "INVALID_TOPIC_ID"}
	if tf.Error() == "" {
		t.Error("TransactionFailure has empty message")
	}
}
