package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/adalliance/tracker/internal/visit"
)

// LogSink appends events as NDJSON to a file, or to stdout when the
// destination is "stdout".
type LogSink struct {
	dst string

	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

func NewLogSink() *LogSink {
	dst := os.Getenv("LOG_PATH")
	if dst == "" {
		dst = "ndjson.log"
	}
	return &LogSink{dst: dst}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Start(ctx context.Context) error {
	if s.dst == "stdout" {
		s.w = bufio.NewWriter(os.Stdout)
		return nil
	}
	if dir := filepath.Dir(s.dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.OpenFile(s.dst, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log sink %s: %w", s.dst, err)
	}
	s.f = f
	s.w = bufio.NewWriter(f)
	return nil
}

func (s *LogSink) Enqueue(e visit.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return fmt.Errorf("log sink not started")
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w != nil {
		_ = s.w.Flush()
	}
	if s.f != nil {
		return s.f.Close()
	}
	return nil
}
