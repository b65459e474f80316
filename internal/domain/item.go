package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// ItemKind distinguishes files from folders in the namespace.
type ItemKind string

const (
	KindFile   ItemKind = "file"
	KindFolder ItemKind = "folder"
)

// UnmarshalJSON accepts legacy payloads where files carried their extension
// ("pdf", "png", ...) as the type; anything that is not a folder is a file.
func (k *ItemKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*k = ParseItemKind(raw)
	return nil
}

// ParseItemKind maps a stored type label to an ItemKind.
func ParseItemKind(label string) ItemKind {
	if strings.EqualFold(strings.TrimSpace(label), string(KindFolder)) {
		return KindFolder
	}
	return KindFile
}

// StorageItem is one node of the hierarchy. Folders never carry storage keys.
type StorageItem struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title" db:"title"`
	Kind         ItemKind  `json:"type" db:"kind"`
	ParentID     string    `json:"parentId,omitempty" db:"parent_id"`
	Size         string    `json:"size,omitempty" db:"size"`
	SizeUnit     string    `json:"size_unit,omitempty" db:"size_unit"`
	SizeBytes    int64     `json:"sizeBytes,omitempty" db:"size_bytes"`
	StorageKey   string    `json:"s3Key,omitempty" db:"storage_key"`
	StorageURL   string    `json:"s3Url,omitempty" db:"storage_url"`
	LastModified time.Time `json:"lastModified" db:"last_modified"`
}

// IsFolder reports whether the item is a folder.
func (i StorageItem) IsFolder() bool {
	return i.Kind == KindFolder
}

// UsageBytes is the number of bytes the item counts against the quota.
// Items written before SizeBytes existed fall back to the display size.
func (i StorageItem) UsageBytes() int64 {
	if i.IsFolder() {
		return 0
	}
	if i.SizeBytes > 0 {
		return i.SizeBytes
	}
	return SizeToBytes(i.Size, i.SizeUnit)
}

// Signature identifies an item for duplicate detection within one container.
func (i StorageItem) Signature() string {
	return i.ParentID + "|" + strings.ToLower(i.Title) + "__" + i.Size + "__" + i.SizeUnit
}

// Snapshot is the unit of persistence for a namespace. Usage is kept as the
// raw stored string so that an absent or non-numeric counter can be detected.
type Snapshot struct {
	Items []StorageItem `json:"items"`
	Usage string        `json:"usage,omitempty"`
}
