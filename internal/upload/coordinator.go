package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/gateway"
	"github.com/andresuchdata/tutorstore/internal/namespace"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Mode selects how bytes reach the object store.
type Mode string

const (
	// ModeProxy streams the file through the gateway service.
	ModeProxy Mode = "proxy"
	// ModeGrant asks the gateway for a write grant and sends the file to
	// the store directly.
	ModeGrant Mode = "grant"
)

const (
	DefaultFolder      = "private-storage"
	DefaultRemoveDelay = 1200 * time.Millisecond
	DefaultTick        = 300 * time.Millisecond
)

var (
	ErrFileTooLarge  = errors.New("file exceeds the per-file size limit")
	ErrQuotaExceeded = errors.New("not enough storage space")
)

// ParseMode maps a configuration label to a Mode, defaulting to proxy.
func ParseMode(label string) Mode {
	if Mode(label) == ModeGrant {
		return ModeGrant
	}
	return ModeProxy
}

// Transport is the gateway surface the coordinator talks to.
type Transport interface {
	UploadFile(ctx context.Context, body io.Reader, size int64, fileName, contentType, folder string) (gateway.UploadResult, error)
	RequestUploadGrant(ctx context.Context, fileName, contentType, folder string) (gateway.UploadGrant, error)
	PutToGrant(ctx context.Context, grantURL string, body io.Reader, size int64, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// Registrar records completed uploads and exposes the quota state.
type Registrar interface {
	CreateFile(ctx context.Context, spec namespace.FileSpec) (domain.StorageItem, error)
	Quota() domain.Quota
}

// Rejection is a file refused before any network call.
type Rejection struct {
	FileName string
	Err      error
}

// Failure is an accepted file whose transfer or registration failed.
type Failure struct {
	TaskID   string
	FileName string
	Err      error
}

// BatchResult is the per-file outcome of one Upload call.
type BatchResult struct {
	Created  []domain.StorageItem
	Rejected []Rejection
	Failed   []Failure
}

// Coordinator runs batches of uploads concurrently, enforcing the quota
// before any bytes are sent and registering successes in the namespace.
type Coordinator struct {
	transport Transport
	registrar Registrar
	tracker   *tracker

	mode        Mode
	folder      string
	concurrency int
	tick        time.Duration
	step        func() float64
	newID       func() string

	mu      sync.Mutex
	pending int64
}

type Option func(*Coordinator)

func WithMode(m Mode) Option {
	return func(c *Coordinator) { c.mode = m }
}

func WithFolder(folder string) Option {
	return func(c *Coordinator) {
		if folder != "" {
			c.folder = folder
		}
	}
}

// WithConcurrency limits simultaneous transfers; zero means unlimited.
func WithConcurrency(n int) Option {
	return func(c *Coordinator) { c.concurrency = n }
}

func WithOnTaskUpdate(fn func(domain.UploadTask)) Option {
	return func(c *Coordinator) { c.tracker.onUpdate = fn }
}

func WithRemoveDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.tracker.removeAfter = d }
}

// WithEstimator overrides the tick interval and step of estimated progress.
func WithEstimator(tick time.Duration, step func() float64) Option {
	return func(c *Coordinator) {
		c.tick = tick
		c.step = step
	}
}

func NewCoordinator(transport Transport, registrar Registrar, opts ...Option) *Coordinator {
	c := &Coordinator{
		transport: transport,
		registrar: registrar,
		tracker:   newTracker(DefaultRemoveDelay, nil),
		mode:      ModeProxy,
		folder:    DefaultFolder,
		tick:      DefaultTick,
		step:      randomStep,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Tasks returns the active and recently finished tasks in creation order.
func (c *Coordinator) Tasks() []domain.UploadTask {
	return c.tracker.snapshot()
}

// Upload validates every file against the limits in order, then transfers
// the accepted ones concurrently. A failure of one file never affects the
// others.
func (c *Coordinator) Upload(ctx context.Context, files []LocalFile) BatchResult {
	var res BatchResult

	accepted := c.reserve(files, &res)
	if len(accepted) == 0 {
		return res
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if c.concurrency > 0 {
		g.SetLimit(c.concurrency)
	}
	for _, f := range accepted {
		task := domain.UploadTask{
			ID:        c.newID(),
			FileName:  f.Name,
			SizeBytes: f.Size,
			Status:    domain.TaskQueued,
			Estimated: c.mode == ModeGrant,
		}
		c.tracker.add(task)

		g.Go(func() error {
			item, err := c.run(gctx, task.ID, f)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed = append(res.Failed, Failure{TaskID: task.ID, FileName: f.Name, Err: err})
				return nil
			}
			res.Created = append(res.Created, item)
			return nil
		})
	}
	_ = g.Wait()

	log.Info().
		Int("created", len(res.Created)).
		Int("rejected", len(res.Rejected)).
		Int("failed", len(res.Failed)).
		Str("mode", string(c.mode)).
		Msg("upload batch finished")
	return res
}

// reserve applies the per-file and cumulative quota checks. Bytes of
// accepted files stay reserved until they are registered or their transfer
// fails. Usage is read under c.mu, the same lock register holds while it
// moves bytes from pending into usage.
func (c *Coordinator) reserve(files []LocalFile, res *BatchResult) []LocalFile {
	c.mu.Lock()
	defer c.mu.Unlock()

	q := c.registrar.Quota()
	used := q.UsedBytes + c.pending
	var accepted []LocalFile
	for _, f := range files {
		switch {
		case q.MaxFileBytes > 0 && f.Size > q.MaxFileBytes:
			res.Rejected = append(res.Rejected, Rejection{FileName: f.Name, Err: fmt.Errorf("%s: %w", f.Name, ErrFileTooLarge)})
		case q.LimitBytes > 0 && used+f.Size > q.LimitBytes:
			res.Rejected = append(res.Rejected, Rejection{FileName: f.Name, Err: fmt.Errorf("%s: %w", f.Name, ErrQuotaExceeded)})
		default:
			used += f.Size
			c.pending += f.Size
			accepted = append(accepted, f)
		}
	}
	return accepted
}

func (c *Coordinator) release(size int64) {
	c.mu.Lock()
	c.pending -= size
	c.mu.Unlock()
}

func (c *Coordinator) run(ctx context.Context, taskID string, f LocalFile) (domain.StorageItem, error) {
	c.tracker.update(taskID, func(t *domain.UploadTask) { t.Status = domain.TaskUploading })

	result, err := c.transfer(ctx, taskID, f)
	if err != nil {
		c.release(f.Size)
	} else {
		var item domain.StorageItem
		item, err = c.register(ctx, f, result)
		if err == nil {
			c.tracker.update(taskID, func(t *domain.UploadTask) {
				t.Status = domain.TaskDone
				t.Progress = 100
			})
			return item, nil
		}
		c.discard(ctx, result.Key)
		err = fmt.Errorf("register %s: %w", f.Name, err)
	}

	log.Error().Err(err).Str("file", f.Name).Msg("upload failed")
	c.tracker.update(taskID, func(t *domain.UploadTask) {
		t.Status = domain.TaskError
		t.ErrorMessage = err.Error()
	})
	return domain.StorageItem{}, err
}

// register records the uploaded file and drops its reservation in one
// critical section, so reserve sees the bytes either as pending or as usage.
func (c *Coordinator) register(ctx context.Context, f LocalFile, result gateway.UploadResult) (domain.StorageItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending -= f.Size
	return c.registrar.CreateFile(ctx, namespace.FileSpec{
		ParentID:   f.ParentID,
		Title:      f.Name,
		SizeBytes:  f.Size,
		StorageKey: result.Key,
		StorageURL: result.CanonicalURL,
	})
}

// discard removes an object that reached the store but not the tree.
func (c *Coordinator) discard(ctx context.Context, key string) {
	if err := c.transport.DeleteObject(context.WithoutCancel(ctx), key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("orphaned object left in store")
	}
}

func (c *Coordinator) transfer(ctx context.Context, taskID string, f LocalFile) (gateway.UploadResult, error) {
	if f.Open == nil {
		return gateway.UploadResult{}, fmt.Errorf("%s: no content", f.Name)
	}
	body, err := f.Open()
	if err != nil {
		return gateway.UploadResult{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()

	report := func(p float64) { c.tracker.update(taskID, setProgress(p)) }

	if c.mode == ModeGrant {
		return c.transferWithGrant(ctx, f, body, report)
	}

	counted := &countingReader{r: body, size: f.Size, report: report}
	return c.transport.UploadFile(ctx, counted, f.Size, f.Name, f.ContentType, c.folder)
}

func (c *Coordinator) transferWithGrant(ctx context.Context, f LocalFile, body io.Reader, report func(float64)) (gateway.UploadResult, error) {
	grant, err := c.transport.RequestUploadGrant(ctx, f.Name, f.ContentType, c.folder)
	if err != nil {
		return gateway.UploadResult{}, err
	}

	estCtx, stop := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		estimate(estCtx, c.tick, c.step, report)
	}()

	err = c.transport.PutToGrant(ctx, grant.GrantURL, body, f.Size, f.ContentType)
	stop()
	wg.Wait()
	if err != nil {
		return gateway.UploadResult{}, err
	}
	return gateway.UploadResult{Key: grant.Key, CanonicalURL: grant.CanonicalURL}, nil
}
