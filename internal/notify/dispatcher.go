package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/AnmolBhardwaj/StockWatcher/pkg/models"
)

var (
	// ErrDispatchFailure means at least one chunk was rejected in both the
	// rich and the plain attempt.
	ErrDispatchFailure = errors.New("notify: report not fully delivered")
	// ErrEmptyReport is returned when there is nothing to send.
	ErrEmptyReport = errors.New("notify: empty report")
)

// Parse modes understood by the transport.
const (
	ParseModeHTML  = "HTML"
	ParseModePlain = ""
)

// DefaultChunkDelay spaces consecutive sends for flood control.
const DefaultChunkDelay = 1200 * time.Millisecond

// Message is one transport send.
type Message struct {
	ChatID    string
	Text      string
	ParseMode string
}

// Transport delivers a single message.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// Delivery modes recorded per chunk.
const (
	ModeRich   = "rich"
	ModePlain  = "plain"
	ModeFailed = "failed"
)

// ChunkResult is the delivery outcome of one chunk.
type ChunkResult struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Mode  string `json:"mode"`
	Err   error  `json:"-"`
}

// Result summarises a Dispatch call.
type Result struct {
	Chunks    []ChunkResult `json:"chunks"`
	Delivered int           `json:"delivered"`
	Fallbacks int           `json:"fallbacks"`
	Failed    int           `json:"failed"`
}

// Options configures a Dispatcher.
type Options struct {
	ChatID     string
	ChunkLimit int
	Delay      time.Duration
}

// Dispatcher sends reports chunk by chunk, strictly in order.
type Dispatcher struct {
	transport Transport
	opts      Options
	logger    *zap.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher. A zero chunk limit takes the default.
func NewDispatcher(t Transport, opts Options, logger *zap.Logger) *Dispatcher {
	if opts.ChunkLimit <= 0 {
		opts.ChunkLimit = DefaultChunkLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{transport: t, opts: opts, logger: logger, sleep: sleepCtx}
}

// Dispatch chunks report and sends every chunk. Each chunk gets a rich
// attempt and, if that fails, one plain attempt. A failed chunk does not
// stop later ones. Line endings are normalised to LF first so both
// attempts carry the same text.
func (d *Dispatcher) Dispatch(ctx context.Context, report string) (Result, error) {
	chunks := Split(NormalizeNewlines(report), d.opts.ChunkLimit)
	if len(chunks) == 0 {
		return Result{}, ErrEmptyReport
	}

	total := len(chunks)
	res := Result{Chunks: make([]ChunkResult, 0, total)}
	var errs []error

	for _, c := range chunks {
		idx := c.Index
		cr := ChunkResult{Index: idx, Total: total}

		if err := ctx.Err(); err != nil {
			cr.Mode, cr.Err = ModeFailed, err
		} else {
			cr.Mode, cr.Err = d.sendChunk(ctx, c)
		}

		switch cr.Mode {
		case ModeRich:
			res.Delivered++
		case ModePlain:
			res.Delivered++
			res.Fallbacks++
		default:
			res.Failed++
			errs = append(errs, fmt.Errorf("chunk %d/%d: %w", idx, total, cr.Err))
			d.logger.Error("chunk not delivered",
				zap.Int("chunk", idx), zap.Int("total", total), zap.Error(cr.Err))
		}
		res.Chunks = append(res.Chunks, cr)

		if idx < total && d.opts.Delay > 0 && ctx.Err() == nil {
			if err := d.sleep(ctx, d.opts.Delay); err != nil {
				d.logger.Warn("inter-chunk delay interrupted", zap.Error(err))
			}
		}
	}

	d.logger.Info("report dispatched",
		zap.Int("chunks", total),
		zap.Int("delivered", res.Delivered),
		zap.Int("fallbacks", res.Fallbacks),
		zap.Int("failed", res.Failed))

	if res.Failed > 0 {
		return res, fmt.Errorf("%w: %d of %d chunks failed: %w",
			ErrDispatchFailure, res.Failed, total, errors.Join(errs...))
	}
	return res, nil
}

func (d *Dispatcher) sendChunk(ctx context.Context, c models.MessageChunk) (string, error) {
	richErr := d.transport.Send(ctx, Message{
		ChatID:    d.opts.ChatID,
		Text:      Wrap(c.Body, c.Index, c.Total),
		ParseMode: ParseModeHTML,
	})
	if richErr == nil {
		return ModeRich, nil
	}
	d.logger.Warn("rich send rejected, retrying as plain text",
		zap.Int("chunk", c.Index), zap.Error(richErr))

	plainErr := d.transport.Send(ctx, Message{
		ChatID:    d.opts.ChatID,
		Text:      WrapPlain(c.Body, c.Index, c.Total),
		ParseMode: ParseModePlain,
	})
	if plainErr == nil {
		return ModePlain, nil
	}
	return ModeFailed, errors.Join(richErr, plainErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
