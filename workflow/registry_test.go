package workflow

import (
	"context"
	"testing"
	"time"
)

func newInstance(t *testing.T) (*Registry, *Instance) {
	t.Helper()
	r := NewRegistry(time.Hour)
	seq, err := New([]Step{{Name: StepPublish, Run: func(ctx context.Context) error { return nil }}}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r, r.Add(seq, "Post")
}

func TestRegistryAddGetRemove(t *testing.T) {
	r, in := newInstance(t)

	if in.ID == "" {
		t.Fatal("instance has no ID")
	}
	if got := r.Get(in.ID); got != in {
		t.Errorf("Get returned %v, want the registered instance", got)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Remove(in.ID)
	if r.Get(in.ID) != nil {
		t.Error("instance still present after Remove")
	}
	if !in.Seq.Closed() {
		t.Error("Remove did not close the sequencer")
	}
}

func TestRegistrySweepsCompleted(t *testing.T) {
	r, in := newInstance(t)

	if err := in.Seq.RunStep(context.Background(), StepPublish); err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	r.sweep()

	if r.Get(in.ID) != nil {
		t.Error("completed workflow survived the sweep")
	}
}

func TestRegistrySweepsExpired(t *testing.T) {
	r := NewRegistry(time.Nanosecond)
	seq, err := New([]Step{{Name: StepPublish, Run: func(ctx context.Context) error { return nil }}}, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	in := r.Add(seq, "Post")

	time.Sleep(time.Millisecond)
	r.sweep()

	if r.Get(in.ID) != nil {
		t.Error("expired workflow survived the sweep")
	}
	if !in.Seq.Closed() {
		t.Error("swept workflow was not closed")
	}
}

func TestRegistryStartStop(t *testing.T) {
	r := NewRegistry(time.Hour)
	if err := r.Start(time.Minute); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := r.Start(time.Minute); err == nil {
		t.Error("second Start did not error")
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Stop(); err == nil {
		t.Error("second Stop did not error")
	}
}

func TestInstanceNoticeBacklog(t *testing.T) {
	_, in := newInstance(t)

	for i := 0; i < noticeBacklog+5; i++ {
		in.AddNotice(Notice{Level: "error", Message: "m"})
	}
	if got := len(in.Notices()); got != noticeBacklog {
		t.Errorf("backlog holds %d notices, want %d", got, noticeBacklog)
	}
}
