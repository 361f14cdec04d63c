package canhw_test

import (
	"context"
	"testing"
	"time"

	"github.com/kstaniek/bxcan"
	"github.com/kstaniek/bxcan/internal/canhw"
	"github.com/kstaniek/bxcan/internal/canreg"
)

func newLoopbackDevice(t *testing.T, sample bxcan.SamplePoint, rflm bool) *bxcan.Device {
	t.Helper()
	canhw.ResetControllerForTest()
	platform := bxcan.NewSimPlatform()
	cfg := bxcan.Config{
		Number:      bxcan.CAN1,
		BitRate:     bxcan.BitRate500,
		SamplePoint: sample,
		Options: bxcan.ModeOptions{
			LBKM: true,
			RFLM: rflm,
		},
	}
	dev, err := bxcan.Create(cfg, 72_000_000, platform)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

func passAllFilter(fifo bxcan.FIFO) bxcan.RxFilter {
	return bxcan.RxFilter{
		Index: 0,
		FIFO:  fifo,
		Mode:  bxcan.FilterModeMask,
		Scale: bxcan.FilterScale32Bit,
		Values: bxcan.FilterValues{
			ID32:   [2]uint32{0, 0},
			Mask32: 0,
		},
	}
}

// S1 — standard frame loopback at 500 kbit/s, CANopen sample point.
func TestScenarioS1StandardLoopback(t *testing.T) {
	dev := newLoopbackDevice(t, bxcan.SamplePointCANopen, false)
	if err := dev.SetReceiveFilter(passAllFilter(bxcan.FIFO0)); err != nil {
		t.Fatalf("SetReceiveFilter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sent := bxcan.NewFrame(0x123, false, false, []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88})
	ok, err := dev.Transmit(ctx, sent)
	if err != nil || !ok {
		t.Fatalf("Transmit: ok=%v err=%v", ok, err)
	}

	got, err := dev.Receive(ctx, bxcan.FIFO0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if !got.Equal(sent) {
		t.Fatalf("got %v, want %v", got, sent)
	}
}

// S2 — extended frame loopback.
func TestScenarioS2ExtendedLoopback(t *testing.T) {
	dev := newLoopbackDevice(t, bxcan.SamplePointCANopen, false)
	if err := dev.SetReceiveFilter(passAllFilter(bxcan.FIFO0)); err != nil {
		t.Fatalf("SetReceiveFilter: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	sent := bxcan.NewFrame(0x1ABCDEF0, true, false, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	ok, err := dev.Transmit(ctx, sent)
	if err != nil || !ok {
		t.Fatalf("Transmit: ok=%v err=%v", ok, err)
	}

	got, err := dev.Receive(ctx, bxcan.FIFO0)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.ID != sent.ID || !got.Extended || got.DLC != sent.DLC {
		t.Fatalf("got %v, want id=%v ext dlc=%d", got, sent.ID, sent.DLC)
	}
}

// S3 — TX backpressure: with all three mailboxes held busy, a fourth
// Transmit blocks until one is freed, exercised directly against TxEngine
// so nothing auto-completes a mailbox the way SimBus.Arbitrate would.
func TestScenarioS3Backpressure(t *testing.T) {
	regs := canreg.NewPeripheral()
	irqs := canhw.NewSimInterruptController()
	engine := canhw.NewTxEngine(regs, irqs.Resource("TX"), nil)
	engine.Enable()

	frame := bxcan.NewFrame(0x1, false, false, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := engine.Transmit(ctx, frame)
		if err != nil || !ok {
			t.Fatalf("Transmit[%d]: ok=%v err=%v", i, ok, err)
		}
	}

	rctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()
	if _, err := engine.Transmit(rctx, frame); err == nil {
		t.Fatalf("expected fourth Transmit to block with no mailbox completion")
	}

	// Hardware completes mailbox 0; the TX ISR should free exactly one permit.
	regs.TSR.SetCompletion(0, true, false, false)
	irqs.Fire("TX")

	rctx2, cancel2 := context.WithTimeout(ctx, time.Second)
	defer cancel2()
	ok, err := engine.Transmit(rctx2, frame)
	if err != nil || !ok {
		t.Fatalf("Transmit after completion: ok=%v err=%v", ok, err)
	}
}

// S4 — RX overrun, locked: the fourth frame is dropped, and a fourth
// Receive blocks.
func TestScenarioS4OverrunLocked(t *testing.T) {
	dev := newLoopbackDevice(t, bxcan.SamplePointCANopen, true)
	if err := dev.SetReceiveFilter(passAllFilter(bxcan.FIFO0)); err != nil {
		t.Fatalf("SetReceiveFilter: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f := bxcan.NewFrame(bxcan.Identifier(i+1), false, false, nil)
		if ok, err := dev.Transmit(ctx, f); err != nil || !ok {
			t.Fatalf("Transmit[%d]: ok=%v err=%v", i, ok, err)
		}
	}

	for i := 0; i < 3; i++ {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		got, err := dev.Receive(rctx, bxcan.FIFO0)
		cancel()
		if err != nil {
			t.Fatalf("Receive[%d]: %v", i, err)
		}
		if got.ID != bxcan.Identifier(i+1) {
			t.Fatalf("Receive[%d] = id %v, want %v", i, got.ID, i+1)
		}
	}

	rctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	if _, err := dev.Receive(rctx, bxcan.FIFO0); err == nil {
		t.Fatalf("expected fourth Receive to block/time out")
	}
}

// S5 — RX overrun, unlocked: oldest entry is overwritten, so frames 2,3,4
// survive.
func TestScenarioS5OverrunUnlocked(t *testing.T) {
	dev := newLoopbackDevice(t, bxcan.SamplePointCANopen, false)
	if err := dev.SetReceiveFilter(passAllFilter(bxcan.FIFO0)); err != nil {
		t.Fatalf("SetReceiveFilter: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		f := bxcan.NewFrame(bxcan.Identifier(i+1), false, false, nil)
		if ok, err := dev.Transmit(ctx, f); err != nil || !ok {
			t.Fatalf("Transmit[%d]: ok=%v err=%v", i, ok, err)
		}
	}

	want := []bxcan.Identifier{2, 3, 4}
	for i, w := range want {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		got, err := dev.Receive(rctx, bxcan.FIFO0)
		cancel()
		if err != nil {
			t.Fatalf("Receive[%d]: %v", i, err)
		}
		if got.ID != w {
			t.Fatalf("Receive[%d] = id %v, want %v", i, got.ID, w)
		}
	}
}

// S6 — filter rejection: only an exact-id match is delivered.
func TestScenarioS6FilterRejection(t *testing.T) {
	dev := newLoopbackDevice(t, bxcan.SamplePointCANopen, false)
	exact := bxcan.RxFilter{
		Index: 0,
		FIFO:  bxcan.FIFO0,
		Mode:  bxcan.FilterModeMask,
		Scale: bxcan.FilterScale32Bit,
		Values: bxcan.FilterValues{
			ID32:   [2]uint32{uint32(0x100) << 21, 0},
			Mask32: 0x7FF << 21,
		},
	}
	if err := dev.SetReceiveFilter(exact); err != nil {
		t.Fatalf("SetReceiveFilter: %v", err)
	}

	ctx := context.Background()
	if ok, err := dev.Transmit(ctx, bxcan.NewFrame(0x100, false, false, nil)); err != nil || !ok {
		t.Fatalf("Transmit(0x100): ok=%v err=%v", ok, err)
	}
	if ok, err := dev.Transmit(ctx, bxcan.NewFrame(0x101, false, false, nil)); err != nil || !ok {
		t.Fatalf("Transmit(0x101): ok=%v err=%v", ok, err)
	}

	rctx, cancel := context.WithTimeout(ctx, time.Second)
	got, err := dev.Receive(rctx, bxcan.FIFO0)
	cancel()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if got.ID != 0x100 {
		t.Fatalf("got id %v, want 0x100", got.ID)
	}

	rctx2, cancel2 := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel2()
	if _, err := dev.Receive(rctx2, bxcan.FIFO0); err == nil {
		t.Fatalf("expected second Receive to block/time out")
	}
}
