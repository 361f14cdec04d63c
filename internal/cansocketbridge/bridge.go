package cansocketbridge

import (
	"context"
	"errors"
	"sync"

	"github.com/kstaniek/bxcan"
	"github.com/kstaniek/bxcan/internal/can"
	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/kstaniek/bxcan/internal/canmetrics"
)

var bridgelog = canlog.Component("socketbridge")

// Bridge relays frames between a bxcan.Device and a Dev in both directions:
// frames the device receives on fifo are written out to dev, and frames read
// from dev are handed back to the device's Transmit path so a loopback
// device delivers them to its own RX FIFO as if they had arrived over the
// air.
type Bridge struct {
	device *bxcan.Device
	dev    Dev
	fifo   bxcan.FIFO
	buf    int
	tx     *TXWriter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds a Bridge. buf sizes the outbound (device -> dev) write queue.
func New(device *bxcan.Device, dev Dev, fifo bxcan.FIFO, buf int) *Bridge {
	return &Bridge{device: device, dev: dev, fifo: fifo, buf: buf}
}

// Start launches the two forwarding goroutines. Cancel ctx or call Close to
// stop them.
func (b *Bridge) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.tx = NewTXWriter(ctx, b.dev, b.buf)

	b.wg.Add(2)
	go b.deviceToSocket(ctx)
	go b.socketToDevice(ctx)
}

func (b *Bridge) deviceToSocket(ctx context.Context) {
	defer b.wg.Done()
	for {
		fr, err := b.device.Receive(ctx, b.fifo)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			canmetrics.IncError(canmetrics.ErrSocketBridgeTX)
			continue
		}
		if err := b.tx.SendFrame(fr); err != nil && !errors.Is(err, ErrTxOverflow) {
			bridgelog.Warn("send_frame_error", "error", err)
		}
	}
}

func (b *Bridge) socketToDevice(ctx context.Context) {
	defer b.wg.Done()
	var fr can.Frame
	for {
		if err := b.dev.ReadFrame(&fr); err != nil {
			if ctx.Err() != nil {
				return
			}
			canmetrics.IncError(canmetrics.ErrSocketBridgeRX)
			bridgelog.Warn("read_frame_error", "error", err)
			continue
		}
		if _, err := b.device.Transmit(ctx, fr); err != nil {
			if ctx.Err() != nil {
				return
			}
			canmetrics.IncError(canmetrics.ErrSocketBridgeRX)
		}
	}
}

// Close stops both forwarding goroutines and the outbound writer, then
// closes the underlying SocketCAN device.
func (b *Bridge) Close() error {
	if b.cancel != nil {
		b.cancel()
	}
	if b.tx != nil {
		b.tx.Close()
	}
	b.wg.Wait()
	return b.dev.Close()
}
