package namespace

import (
	"context"
	"path"
	"sort"
	"strings"

	"github.com/andresuchdata/tutorstore/internal/domain"
)

// Category groups files by extension for filtering.
type Category string

const (
	CategoryAll       Category = "all"
	CategoryImages    Category = "images"
	CategoryDocuments Category = "documents"
	CategoryVideos    Category = "videos"
	CategoryArchives  Category = "archives"
)

var categoryExtensions = map[Category][]string{
	CategoryImages:    {"jpg", "jpeg", "png", "gif", "svg", "webp", "ico"},
	CategoryDocuments: {"pdf", "doc", "docx", "txt", "md", "json", "csv", "xls", "xlsx", "ppt", "pptx"},
	CategoryVideos:    {"mp4", "mov", "avi", "mkv", "flv", "wmv"},
	CategoryArchives:  {"zip", "rar", "7z", "tar", "gz"},
}

// ParseCategory maps a label to a Category; unknown labels mean all.
func ParseCategory(label string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(label)))
	if _, ok := categoryExtensions[c]; ok {
		return c
	}
	return CategoryAll
}

// Matches reports whether item belongs to the category. Folders only match
// CategoryAll.
func (c Category) Matches(item domain.StorageItem) bool {
	if c == CategoryAll || c == "" {
		return true
	}
	if item.IsFolder() {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(item.Title)), ".")
	for _, e := range categoryExtensions[c] {
		if e == ext {
			return true
		}
	}
	return false
}

// List returns the direct children of parentID in stored order. An empty
// parentID lists the root.
func (n *Namespace) List(parentID string) []domain.StorageItem {
	n.mu.RLock()
	defer n.mu.RUnlock()

	var out []domain.StorageItem
	for _, it := range n.items {
		if it.ParentID == parentID {
			out = append(out, it)
		}
	}
	return out
}

func (n *Namespace) Get(id string) (domain.StorageItem, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	idx := n.indexOf(id)
	if idx < 0 {
		return domain.StorageItem{}, false
	}
	return n.items[idx], true
}

// Descendants returns every item below id, breadth first.
func (n *Namespace) Descendants(id string) []domain.StorageItem {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.descendantsLocked(id)
}

func (n *Namespace) descendantsLocked(id string) []domain.StorageItem {
	children := make(map[string][]domain.StorageItem)
	for _, it := range n.items {
		children[it.ParentID] = append(children[it.ParentID], it)
	}

	var out []domain.StorageItem
	seen := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range children[parent] {
			if _, ok := seen[child.ID]; ok {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child)
			if child.IsFolder() {
				queue = append(queue, child.ID)
			}
		}
	}
	return out
}

// FileKeys returns the storage keys of the files directly inside folderID,
// in stored order. Nested folders are not included.
func (n *Namespace) FileKeys(folderID string) []string {
	var keys []string
	for _, it := range n.List(folderID) {
		if !it.IsFolder() && it.StorageKey != "" {
			keys = append(keys, it.StorageKey)
		}
	}
	return keys
}

// Search filters the children of parentID by a case-insensitive title
// substring and a file category.
func (n *Namespace) Search(parentID, query string, category Category) []domain.StorageItem {
	query = strings.ToLower(query)
	var out []domain.StorageItem
	for _, it := range n.List(parentID) {
		if !strings.Contains(strings.ToLower(it.Title), query) {
			continue
		}
		if !category.Matches(it) {
			continue
		}
		out = append(out, it)
	}
	return out
}

// Recent returns up to limit children of parentID, most recently modified
// first.
func (n *Namespace) Recent(parentID string, limit int) []domain.StorageItem {
	items := n.List(parentID)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastModified.After(items[j].LastModified)
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Sort reorders the whole tree with folders first, then by title.
func (n *Namespace) Sort(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	items := cloneItems(n.items)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.IsFolder() != b.IsFolder() {
			return a.IsFolder()
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	return n.commit(ctx, items, n.usage)
}

func trimTitle(title string) string {
	return strings.TrimSpace(title)
}
