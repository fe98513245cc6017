package qr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/jackielii/heritage/internal/metrics"
)

// ErrNotReady is returned when no image has been produced.
var ErrNotReady = errors.New("qr: image not ready")

// DownloadFilename is the name offered when the image is saved.
const DownloadFilename = "tatarstan-qr.png"

// DownloadWidths are the extra sizes the code can be downloaded at,
// besides the configured one.
var DownloadWidths = []int{512, 1024}

// ErrUnsupportedWidth is returned by Render for a width outside
// DownloadWidths.
var ErrUnsupportedWidth = errors.New("qr: unsupported width")

type Status int

const (
	Pending Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

var tracer = otel.Tracer("github.com/jackielii/heritage/internal/qr")

// Slot runs a single encode in the background and holds its outcome. The
// result is written exactly once; a failure is logged and never retried.
// The slot records its own encode outcome, so enc should not be a
// CachedEncoder.
type Slot struct {
	ID uuid.UUID

	enc    Encoder
	text   string
	opts   Options
	logger *slog.Logger

	start sync.Once
	done  chan struct{}

	mu     sync.RWMutex
	status Status
	data   []byte
	err    error
}

func NewSlot(enc Encoder, text string, opts Options, logger *slog.Logger) *Slot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slot{
		ID:     uuid.New(),
		enc:    enc,
		text:   text,
		opts:   opts,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start launches the encode. Later calls do nothing.
func (s *Slot) Start(ctx context.Context) {
	s.start.Do(func() {
		go s.run(ctx)
	})
}

func (s *Slot) run(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "qr.encode")
	defer span.End()
	span.SetAttributes(
		attribute.String("qr.job", s.ID.String()),
		attribute.String("qr.text", s.text),
		attribute.Int("qr.width", s.opts.Width),
	)

	data, err := s.enc.Encode(ctx, s.text, s.opts)

	s.mu.Lock()
	if err != nil {
		s.status, s.err = Failed, err
	} else {
		s.status, s.data = Ready, data
	}
	s.mu.Unlock()
	close(s.done)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		metrics.RecordQREncode("error")
		s.logger.Error("qr encode failed", "job", s.ID, "text", s.text, "error", err)
		return
	}
	metrics.RecordQREncode("ok")
	s.logger.Info("qr encoded", "job", s.ID, "bytes", len(data))
}

// Status reports the current state.
func (s *Slot) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Bytes returns the image once Ready, ErrNotReady otherwise.
func (s *Slot) Bytes() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != Ready {
		return nil, ErrNotReady
	}
	return s.data, nil
}

// Err returns the encode failure, if any.
func (s *Slot) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Done is closed once the encode has finished either way.
func (s *Slot) Done() <-chan struct{} {
	return s.done
}

// Text is the encoded URL.
func (s *Slot) Text() string { return s.text }

// Options are the options the slot encodes with.
func (s *Slot) Options() Options { return s.opts }

// Render returns the code at the given width. The configured width is
// served from the slot; other sizes are encoded with enc, and only once the
// slot itself is Ready, so a failed or pending code stays unavailable.
func (s *Slot) Render(ctx context.Context, enc Encoder, width int) ([]byte, error) {
	data, err := s.Bytes()
	if err != nil || width == s.opts.Width {
		return data, err
	}
	if !slices.Contains(DownloadWidths, width) {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedWidth, width)
	}
	opts := s.opts
	opts.Width = width
	return enc.Encode(ctx, s.text, opts)
}
