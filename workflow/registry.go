package workflow

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

const noticeBacklog = 20

// Instance is one live publish workflow tracked by the registry.
type Instance struct {
	ID        string
	Label     string
	CreatedAt time.Time
	Seq       *Sequencer

	mu      sync.Mutex
	notices []Notice
}

// AddNotice records a transient notification for this instance, keeping only
// a short backlog.
func (in *Instance) AddNotice(n Notice) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.notices = append(in.notices, n)
	if len(in.notices) > noticeBacklog {
		in.notices = in.notices[len(in.notices)-noticeBacklog:]
	}
}

// Notices returns a copy of the recorded notifications.
func (in *Instance) Notices() []Notice {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Notice(nil), in.notices...)
}

// Registry tracks live workflow instances by ID. Instances are independent;
// the registry only provides lookup and teardown of abandoned workflows.
type Registry struct {
	mu    sync.RWMutex
	items map[string]*Instance
	ttl   time.Duration

	isRunning bool
	stopChan  chan bool
}

// NewRegistry creates a registry whose sweeper discards workflows older than
// ttl as well as completed ones.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		items: make(map[string]*Instance),
		ttl:   ttl,
	}
}

// NewID allocates a workflow instance ID.
func NewID() string {
	return uuid.NewString()
}

// Add registers a sequencer under a fresh ID and returns the instance.
func (r *Registry) Add(seq *Sequencer, label string) *Instance {
	in := &Instance{
		ID:        NewID(),
		Label:     label,
		CreatedAt: time.Now(),
		Seq:       seq,
	}
	r.mu.Lock()
	r.items[in.ID] = in
	r.mu.Unlock()
	return in
}

// Get returns the instance for id, or nil.
func (r *Registry) Get(id string) *Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.items[id]
}

// Remove closes and drops the instance for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	in := r.items[id]
	delete(r.items, id)
	r.mu.Unlock()
	if in != nil {
		in.Seq.Close()
	}
}

// Len returns the number of live instances.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Start begins the background sweep loop.
func (r *Registry) Start(interval time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("workflow registry sweeper is already running")
	}
	r.isRunning = true
	r.stopChan = make(chan bool)

	go r.sweepLoop(interval)
	return nil
}

// Stop halts the background sweep loop.
func (r *Registry) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return fmt.Errorf("workflow registry sweeper is not running")
	}
	r.isRunning = false
	close(r.stopChan)
	return nil
}

func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.stopChan:
			return
		}
	}
}

// sweep drops completed, closed, and expired workflows.
func (r *Registry) sweep() {
	cutoff := time.Now().Add(-r.ttl)

	r.mu.Lock()
	var expired []*Instance
	for id, in := range r.items {
		if in.Seq.Completed() || in.Seq.Closed() || in.CreatedAt.Before(cutoff) {
			expired = append(expired, in)
			delete(r.items, id)
		}
	}
	r.mu.Unlock()

	for _, in := range expired {
		in.Seq.Close()
	}
	if len(expired) > 0 {
		log.Printf("Swept %d finished workflows", len(expired))
	}
}
