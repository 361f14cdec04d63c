package cansocketbridge

import (
	"context"
	"errors"

	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/kstaniek/bxcan/internal/canmetrics"
	"github.com/kstaniek/bxcan/internal/transport"
)

var ErrTxOverflow = errors.New("cansocketbridge: tx overflow")

// Dev is the minimal interface the bridge needs from a SocketCAN device,
// implemented by *Device on linux and by fakes in tests.
type Dev interface {
	ReadFrame(*can.Frame) error
	WriteFrame(can.Frame) error
	Close() error
}

// TXWriter funnels all writes to the SocketCAN interface through a single
// goroutine.
type TXWriter struct{ base *transport.AsyncTx }

func NewTXWriter(parent context.Context, dev Dev, buf int) *TXWriter {
	send := func(fr can.Frame) error { return dev.WriteFrame(fr) }
	hooks := transport.Hooks{
		OnError: func(err error) {
			canmetrics.IncError(canmetrics.ErrSocketBridgeTX)
			canlog.Component("socketbridge").Error("write_error", "error", err)
		},
		OnDrop: func() error {
			canmetrics.IncError(canmetrics.ErrSocketBridgeTX)
			return ErrTxOverflow
		},
	}
	return &TXWriter{base: transport.NewAsyncTx(parent, buf, send, hooks)}
}

func (w *TXWriter) SendFrame(fr can.Frame) error { return w.base.SendFrame(fr) }
func (w *TXWriter) Close()                       { w.base.Close() }
