package cantrace

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/kstaniek/bxcan/internal/canmetrics"
)

var ErrTxOverflow = errors.New("cantrace: tx overflow")

// Writer funnels all trace writes through one goroutine, following the same
// single-writer idiom as internal/transport.AsyncTx, specialised to Record
// instead of can.Frame since a trace line carries more than a frame.
type Writer struct {
	mu     sync.Mutex
	ch     chan Record
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	port   Port
	codec  Codec
	closed atomic.Bool
}

// NewWriter starts a Writer with a buffered channel of size buf, writing
// encoded Records to port.
func NewWriter(parent context.Context, port Port, buf int) *Writer {
	ctx, cancel := context.WithCancel(parent)
	w := &Writer{ch: make(chan Record, buf), ctx: ctx, cancel: cancel, port: port}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case rec, ok := <-w.ch:
			if !ok {
				return
			}
			if _, err := w.port.Write(w.codec.Encode(rec)); err != nil {
				canmetrics.IncError(canmetrics.ErrTraceWrite)
				canlog.Component("cantrace").Warn("write_error", "error", err)
			}
		case <-w.ctx.Done():
			return
		}
	}
}

// Send queues a Record for asynchronous serial output, dropping with
// ErrTxOverflow if the buffer is full.
func (w *Writer) Send(rec Record) error {
	if w.closed.Load() {
		return ErrTxOverflow
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed.Load() {
		return ErrTxOverflow
	}
	select {
	case w.ch <- rec:
		return nil
	default:
		canmetrics.IncError(canmetrics.ErrTraceWrite)
		return ErrTxOverflow
	}
}

// Close stops the writer goroutine and closes the underlying port.
func (w *Writer) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	w.cancel()
	w.mu.Lock()
	close(w.ch)
	w.mu.Unlock()
	w.wg.Wait()
	return w.port.Close()
}
