package namespace

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
	"github.com/andresuchdata/tutorstore/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ObjectRemover deletes stored objects on behalf of the namespace when files
// are removed from the tree.
type ObjectRemover interface {
	DeleteObject(ctx context.Context, key string) error
}

// FileSpec describes a file that has already been written to the store.
type FileSpec struct {
	ParentID   string
	Title      string
	SizeBytes  int64
	StorageKey string
	StorageURL string
}

// KeyFailure is a stored object that could not be removed.
type KeyFailure struct {
	ItemID string
	Key    string
	Err    error
}

// DeleteResult reports what a cascading delete removed from the tree and
// which remote objects were left behind.
type DeleteResult struct {
	Removed    []string
	Deleted    []string
	Failed     []KeyFailure
	FreedBytes int64
}

// Namespace is the folder/file tree layered over flat storage keys. All
// mutations are serialized and written through to the repository before
// they become visible.
type Namespace struct {
	mu    sync.RWMutex
	items []domain.StorageItem
	usage int64

	repo     repository.Repository
	remover  ObjectRemover
	quota    domain.Quota
	now      func() time.Time
	newID    func() string
	onReload func(domain.Snapshot)

	removeConcurrency int
}

type Option func(*Namespace)

func WithRemover(r ObjectRemover) Option {
	return func(n *Namespace) { n.remover = r }
}

// WithQuota overrides the total and per-file byte limits.
func WithQuota(limitBytes, maxFileBytes int64) Option {
	return func(n *Namespace) {
		if limitBytes > 0 {
			n.quota.LimitBytes = limitBytes
		}
		if maxFileBytes > 0 {
			n.quota.MaxFileBytes = maxFileBytes
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Namespace) { n.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(n *Namespace) { n.newID = gen }
}

// WithReloadHook is called with the fresh snapshot after every reload.
func WithReloadHook(fn func(domain.Snapshot)) Option {
	return func(n *Namespace) { n.onReload = fn }
}

func New(repo repository.Repository, opts ...Option) *Namespace {
	n := &Namespace{
		repo: repo,
		quota: domain.Quota{
			LimitBytes:   domain.DefaultQuotaBytes,
			MaxFileBytes: domain.DefaultMaxFileBytes,
		},
		now:               time.Now,
		newID:             uuid.NewString,
		removeConcurrency: 4,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Load replaces the in-memory tree with the persisted one, deduplicating it
// and recomputing usage when the stored counter is missing or not a number.
func (n *Namespace) Load(ctx context.Context) error {
	snap, err := n.repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load namespace: %w", err)
	}

	items := dedupe(snap.Items, n.newID)
	usage, err := strconv.ParseInt(snap.Usage, 10, 64)
	switch {
	case err != nil || usage < 0:
		usage = computeUsage(items)
		if snap.Usage != "" {
			log.Warn().Str("stored", snap.Usage).Int64("recomputed", usage).Msg("invalid usage counter, recomputed from items")
		}
	case len(items) != len(snap.Items):
		// Dropped duplicates may have been counted.
		usage = computeUsage(items)
	}

	n.mu.Lock()
	n.items = items
	n.usage = usage
	n.mu.Unlock()

	if len(items) != len(snap.Items) {
		log.Info().Int("before", len(snap.Items)).Int("after", len(items)).Msg("dropped duplicate items on load")
	}
	if n.onReload != nil {
		n.onReload(n.Snapshot())
	}
	return nil
}

// Snapshot returns a copy of the current tree and usage counter.
func (n *Namespace) Snapshot() domain.Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return domain.Snapshot{
		Items: cloneItems(n.items),
		Usage: strconv.FormatInt(n.usage, 10),
	}
}

// Quota reports current usage against the configured limits.
func (n *Namespace) Quota() domain.Quota {
	n.mu.RLock()
	defer n.mu.RUnlock()
	q := n.quota
	q.UsedBytes = n.usage
	return q
}

// CreateFolder adds a folder under parentID (empty for the root). Any
// non-empty title is accepted.
func (n *Namespace) CreateFolder(ctx context.Context, parentID, title string) (domain.StorageItem, error) {
	if title == "" {
		return domain.StorageItem{}, ErrInvalidTitle
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkParent(parentID); err != nil {
		return domain.StorageItem{}, err
	}

	folder := domain.StorageItem{
		ID:           n.newID(),
		Title:        title,
		Kind:         domain.KindFolder,
		ParentID:     parentID,
		LastModified: n.now().UTC(),
	}
	if err := n.checkUniqueLocked(folder); err != nil {
		return domain.StorageItem{}, err
	}
	items := append(cloneItems(n.items), folder)
	if err := n.commit(ctx, items, n.usage); err != nil {
		return domain.StorageItem{}, err
	}
	return folder, nil
}

// CreateFile records an uploaded object in the tree and adds its size to the
// usage counter.
func (n *Namespace) CreateFile(ctx context.Context, spec FileSpec) (domain.StorageItem, error) {
	if spec.Title == "" {
		return domain.StorageItem{}, ErrInvalidTitle
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkParent(spec.ParentID); err != nil {
		return domain.StorageItem{}, err
	}

	size, unit := domain.FormatSize(spec.SizeBytes)
	file := domain.StorageItem{
		ID:           n.newID(),
		Title:        spec.Title,
		Kind:         domain.KindFile,
		ParentID:     spec.ParentID,
		Size:         size,
		SizeUnit:     unit,
		SizeBytes:    spec.SizeBytes,
		StorageKey:   spec.StorageKey,
		StorageURL:   spec.StorageURL,
		LastModified: n.now().UTC(),
	}
	if err := n.checkUniqueLocked(file); err != nil {
		return domain.StorageItem{}, err
	}
	items := append(cloneItems(n.items), file)
	if err := n.commit(ctx, items, n.usage+file.UsageBytes()); err != nil {
		return domain.StorageItem{}, err
	}
	return file, nil
}

// Rename sets a trimmed title on id. A blank title leaves the item unchanged.
func (n *Namespace) Rename(ctx context.Context, id, title string) error {
	title = trimTitle(title)
	if title == "" {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	renamed := n.items[idx]
	renamed.Title = title
	if err := n.checkUniqueLocked(renamed); err != nil {
		return err
	}
	items := cloneItems(n.items)
	items[idx].Title = title
	items[idx].LastModified = n.now().UTC()
	return n.commit(ctx, items, n.usage)
}

// Delete removes id and, for folders, every transitive descendant. The tree
// is updated first; stored objects of removed files are then deleted best
// effort and any failures are reported in the result.
func (n *Namespace) Delete(ctx context.Context, id string) (DeleteResult, error) {
	n.mu.Lock()
	idx := n.indexOf(id)
	if idx < 0 {
		n.mu.Unlock()
		return DeleteResult{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	doomed := map[string]struct{}{id: {}}
	for _, d := range n.descendantsLocked(id) {
		doomed[d.ID] = struct{}{}
	}

	var (
		res     DeleteResult
		keep    = make([]domain.StorageItem, 0, len(n.items))
		removed []domain.StorageItem
	)
	for _, it := range n.items {
		if _, ok := doomed[it.ID]; ok {
			removed = append(removed, it)
			res.Removed = append(res.Removed, it.ID)
			res.FreedBytes += it.UsageBytes()
			continue
		}
		keep = append(keep, it)
	}

	usage := n.usage - res.FreedBytes
	if usage < 0 {
		usage = 0
	}
	err := n.commit(ctx, keep, usage)
	n.mu.Unlock()
	if err != nil {
		return DeleteResult{}, err
	}

	n.removeObjects(ctx, removed, &res)
	log.Info().Str("id", id).Int("items", len(res.Removed)).Int("objects_failed", len(res.Failed)).Msg("namespace delete")
	return res, nil
}

func (n *Namespace) removeObjects(ctx context.Context, removed []domain.StorageItem, res *DeleteResult) {
	if n.remover == nil {
		return
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(n.removeConcurrency)
	for _, it := range removed {
		if it.IsFolder() || it.StorageKey == "" {
			continue
		}
		g.Go(func() error {
			err := n.remover.DeleteObject(gctx, it.StorageKey)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("key", it.StorageKey).Msg("failed to delete stored object")
				res.Failed = append(res.Failed, KeyFailure{ItemID: it.ID, Key: it.StorageKey, Err: err})
				return nil
			}
			res.Deleted = append(res.Deleted, it.StorageKey)
			return nil
		})
	}
	_ = g.Wait()
}

// Move reparents id under newParentID (empty for the root).
func (n *Namespace) Move(ctx context.Context, id, newParentID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	idx := n.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err := n.checkParent(newParentID); err != nil {
		return err
	}
	if newParentID == id {
		return ErrCycle
	}
	for _, d := range n.descendantsLocked(id) {
		if d.ID == newParentID {
			return ErrCycle
		}
	}

	moved := n.items[idx]
	moved.ParentID = newParentID
	if err := n.checkUniqueLocked(moved); err != nil {
		return err
	}
	items := cloneItems(n.items)
	items[idx].ParentID = newParentID
	items[idx].LastModified = n.now().UTC()
	return n.commit(ctx, items, n.usage)
}

// Reorder moves id to the position currently held by targetID. Both must
// live in the same container.
func (n *Namespace) Reorder(ctx context.Context, id, targetID string) error {
	if id == targetID {
		return nil
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	from := n.indexOf(id)
	if from < 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	to := n.indexOf(targetID)
	if to < 0 {
		return fmt.Errorf("%s: %w", targetID, ErrNotFound)
	}
	if n.items[from].ParentID != n.items[to].ParentID {
		return ErrNotSibling
	}

	items := cloneItems(n.items)
	moved := items[from]
	items = append(items[:from], items[from+1:]...)
	items = append(items[:to], append([]domain.StorageItem{moved}, items[to:]...)...)
	return n.commit(ctx, items, n.usage)
}

// commit persists the new state and only then makes it visible. Callers
// hold n.mu.
func (n *Namespace) commit(ctx context.Context, items []domain.StorageItem, usage int64) error {
	snap := domain.Snapshot{Items: items, Usage: strconv.FormatInt(usage, 10)}
	if err := n.repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("save namespace: %w", err)
	}
	n.items = items
	n.usage = usage
	return nil
}

func (n *Namespace) checkParent(parentID string) error {
	if parentID == "" {
		return nil
	}
	idx := n.indexOf(parentID)
	if idx < 0 {
		return fmt.Errorf("parent %s: %w", parentID, ErrNotFound)
	}
	if !n.items[idx].IsFolder() {
		return ErrNotFolder
	}
	return nil
}

// checkUniqueLocked rejects candidate when another item in its container has
// the same signature. Callers hold n.mu.
func (n *Namespace) checkUniqueLocked(candidate domain.StorageItem) error {
	sig := candidate.Signature()
	for _, it := range n.items {
		if it.ID != candidate.ID && it.Signature() == sig {
			return fmt.Errorf("%q: %w", candidate.Title, ErrDuplicate)
		}
	}
	return nil
}

func (n *Namespace) indexOf(id string) int {
	for i := range n.items {
		if n.items[i].ID == id {
			return i
		}
	}
	return -1
}

func computeUsage(items []domain.StorageItem) int64 {
	var total int64
	for _, it := range items {
		total += it.UsageBytes()
	}
	return total
}

func cloneItems(items []domain.StorageItem) []domain.StorageItem {
	out := make([]domain.StorageItem, len(items))
	copy(out, items)
	return out
}

// IsNotFound reports whether err means an item id did not resolve.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
