package domain

const (
	DefaultMaxFileBytes = 200 * MB
	DefaultQuotaBytes   = 300 * MB
)

// Quota is the aggregate byte budget of a namespace.
type Quota struct {
	UsedBytes    int64 `json:"usedBytes"`
	LimitBytes   int64 `json:"limitBytes"`
	MaxFileBytes int64 `json:"maxFileBytes"`
}

// AvailableBytes returns the remaining budget, never negative.
func (q Quota) AvailableBytes() int64 {
	avail := q.LimitBytes - q.UsedBytes
	if avail < 0 {
		return 0
	}
	return avail
}
