package upload

import (
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
)

// tracker owns the active UploadTask set. Terminal tasks linger for
// removeAfter so observers can render the final state.
type tracker struct {
	mu          sync.Mutex
	tasks       map[string]*trackedTask
	seq         int
	removeAfter time.Duration
	onUpdate    func(domain.UploadTask)
}

type trackedTask struct {
	task  domain.UploadTask
	order int
}

func newTracker(removeAfter time.Duration, onUpdate func(domain.UploadTask)) *tracker {
	return &tracker{
		tasks:       make(map[string]*trackedTask),
		removeAfter: removeAfter,
		onUpdate:    onUpdate,
	}
}

func (t *tracker) add(task domain.UploadTask) {
	t.mu.Lock()
	t.seq++
	t.tasks[task.ID] = &trackedTask{task: task, order: t.seq}
	t.mu.Unlock()
	t.emit(task)
}

// update applies fn to the task unless it already reached a terminal state.
func (t *tracker) update(id string, fn func(*domain.UploadTask)) {
	t.mu.Lock()
	tt, ok := t.tasks[id]
	if !ok || tt.task.Status.Terminal() {
		t.mu.Unlock()
		return
	}
	before := tt.task
	fn(&tt.task)
	after := tt.task
	terminal := after.Status.Terminal()
	t.mu.Unlock()

	if after == before {
		return
	}
	t.emit(after)
	if terminal {
		time.AfterFunc(t.removeAfter, func() { t.remove(id) })
	}
}

func (t *tracker) remove(id string) {
	t.mu.Lock()
	delete(t.tasks, id)
	t.mu.Unlock()
}

func (t *tracker) snapshot() []domain.UploadTask {
	t.mu.Lock()
	all := make([]*trackedTask, 0, len(t.tasks))
	for _, tt := range t.tasks {
		all = append(all, tt)
	}
	t.mu.Unlock()

	sort.Slice(all, func(i, j int) bool { return all[i].order < all[j].order })
	out := make([]domain.UploadTask, len(all))
	for i, tt := range all {
		out[i] = tt.task
	}
	return out
}

func (t *tracker) emit(task domain.UploadTask) {
	if t.onUpdate != nil {
		t.onUpdate(task)
	}
}
