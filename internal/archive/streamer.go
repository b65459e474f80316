package archive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/andresuchdata/tutorstore/internal/metrics"
	"github.com/andresuchdata/tutorstore/internal/storage"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog/log"
)

// FailedKeysTrailer names the HTTP trailer listing keys left out of a
// streamed archive.
const FailedKeysTrailer = "X-Archive-Failed-Keys"

// EntryFailure records a key that could not be added to the archive.
type EntryFailure struct {
	Key string
	Err error
}

// Result lists which keys made it into the archive and which were skipped.
type Result struct {
	Succeeded []string
	Failed    []EntryFailure
}

// FailedKeys returns the keys of every skipped entry, in request order.
func (r Result) FailedKeys() []string {
	keys := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		keys = append(keys, f.Key)
	}
	return keys
}

// Streamer builds ZIP archives from stored objects and writes them to the
// destination as they are assembled.
type Streamer struct {
	store   storage.ObjectStore
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewStreamer(store storage.ObjectStore, m *metrics.Metrics) *Streamer {
	return &Streamer{store: store, metrics: m, now: time.Now}
}

// EntryName is the archive path for key: its last path segment.
func EntryName(key string) string {
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		return key[idx+1:]
	}
	return key
}

// BuildArchive fetches every key in order and appends it to a ZIP written to
// w. Keys that cannot be fetched are logged and skipped. Each entry is
// flushed before the next fetch starts, so at most one object is held in
// memory. The returned error is non-nil only when writing to w fails, in
// which case the archive is truncated.
func (s *Streamer) BuildArchive(ctx context.Context, keys []string, w io.Writer) (Result, error) {
	var res Result

	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	log.Info().Int("keys", len(keys)).Msg("building archive")
	for _, key := range keys {
		data, err := s.fetch(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("skipping archive entry")
			res.Failed = append(res.Failed, EntryFailure{Key: key, Err: err})
			s.metrics.RecordArchiveEntry(false, 0)
			continue
		}

		name := EntryName(key)
		if err := s.writeEntry(zw, name, data); err != nil {
			return res, fmt.Errorf("write archive entry %s: %w", name, err)
		}
		res.Succeeded = append(res.Succeeded, key)
		s.metrics.RecordArchiveEntry(true, int64(len(data)))
		log.Debug().Str("entry", name).Int("bytes", len(data)).Msg("added archive entry")
	}

	if err := zw.Close(); err != nil {
		return res, fmt.Errorf("finalize archive: %w", err)
	}
	log.Info().Int("added", len(res.Succeeded)).Int("skipped", len(res.Failed)).Msg("archive finalized")
	return res, nil
}

func (s *Streamer) fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := s.store.GetObject(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

func (s *Streamer) writeEntry(zw *zip.Writer, name string, data []byte) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: s.now(),
	})
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	return zw.Flush()
}

// EncodeFailedKeys renders keys as a comma separated list of query-escaped
// values, suitable for a header or trailer.
func EncodeFailedKeys(keys []string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		escaped[i] = url.QueryEscape(k)
	}
	return strings.Join(escaped, ",")
}

// DecodeFailedKeys parses an EncodeFailedKeys value.
func DecodeFailedKeys(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	keys := make([]string, 0, len(parts))
	for _, p := range parts {
		k, err := url.QueryUnescape(p)
		if err != nil {
			k = p
		}
		keys = append(keys, k)
	}
	return keys
}
