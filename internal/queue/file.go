package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"cfpbot/internal/dates"
	"cfpbot/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.queue.json    (day key -> ordered message list)
//   - <prefix>.lastday.json  (last-processed-day marker)
//
// Every mutation rewrites the whole file via tmp + rename, so a flushed
// state change survives a crash between mutations.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	queuePath string
	lastPath  string

	q    map[dates.DayKey][]Message
	last dates.DayKey
}

type lastDayRecord struct {
	Value dates.DayKey `json:"value"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("queue.path is required for file driver")
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:       log,
		queuePath: prefix + ".queue.json",
		lastPath:  prefix + ".lastday.json",
		q:         map[dates.DayKey][]Message{},
	}

	// Missing or corrupt state is not fatal; it degrades to empty defaults.
	if err := loadJSON(s.queuePath, &s.q); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("queue state unreadable, starting empty", logx.String("path", s.queuePath), logx.Err(err))
		}
		s.q = map[dates.DayKey][]Message{}
	}
	var rec lastDayRecord
	if err := loadJSON(s.lastPath, &rec); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn("last-day marker unreadable, starting empty", logx.String("path", s.lastPath), logx.Err(err))
		}
	} else {
		s.last = rec.Value
	}

	return s, nil
}

func (s *fileStore) Close() error { return nil }

func (s *fileStore) Day(ctx context.Context, day dates.DayKey) ([]Message, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.q[day]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *fileStore) Append(ctx context.Context, day dates.DayKey, msg Message) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.q[day] = append(s.q[day], msg)
	return s.saveQueueLocked()
}

func (s *fileStore) MarkSent(ctx context.Context, day dates.DayKey, idx int) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.q[day]
	if idx < 0 || idx >= len(msgs) {
		return errors.New("message index out of range")
	}
	if msgs[idx].Sent {
		return nil
	}
	msgs[idx].Sent = true
	return s.saveQueueLocked()
}

func (s *fileStore) LastRun(ctx context.Context) (dates.DayKey, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == "" {
		return "", false, nil
	}
	return s.last, true, nil
}

func (s *fileStore) SetLastRun(ctx context.Context, day dates.DayKey) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = day
	return writeJSON(s.lastPath, lastDayRecord{Value: day})
}

func (s *fileStore) saveQueueLocked() error {
	return writeJSON(s.queuePath, s.q)
}

func loadJSON(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}

// writeJSON rewrites path atomically (tmp + rename).
func writeJSON(path string, v any) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", " ")
	if err := enc.Encode(v); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
