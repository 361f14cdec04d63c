// Command bxcan-sim runs the bxCAN driver against its built-in simulated
// peripheral: a loopback bus a bench technician can drive without real
// silicon, optionally bridged onto a SocketCAN interface and/or traced to a
// serial console.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/bxcan"
	"github.com/kstaniek/bxcan/internal/cansocketbridge"
	"github.com/kstaniek/bxcan/internal/cantrace"
	"github.com/kstaniek/bxcan/internal/canmetrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func samplePointFor(name string) bxcan.SamplePoint {
	if name == "arinc825" {
		return bxcan.SamplePointARINC825
	}
	return bxcan.SamplePointCANopen
}

func bitRateFor(hz int) bxcan.BitRate {
	switch {
	case hz >= 1000000:
		return bxcan.BitRate1000
	case hz >= 800000:
		return bxcan.BitRate800
	case hz >= 500000:
		return bxcan.BitRate500
	case hz >= 250000:
		return bxcan.BitRate250
	case hz >= 125000:
		return bxcan.BitRate125
	case hz >= 100000:
		return bxcan.BitRate100
	case hz >= 50000:
		return bxcan.BitRate50
	case hz >= 20000:
		return bxcan.BitRate20
	default:
		return bxcan.BitRate10
	}
}

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("bxcan-sim %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	platform := bxcan.NewSimPlatform()
	devCfg := bxcan.Config{
		Number:      bxcan.CAN1,
		BitRate:     bitRateFor(cfg.bitrate),
		SamplePoint: samplePointFor(cfg.samplePoint),
		Options: bxcan.ModeOptions{
			LBKM: cfg.loopback,
			SILM: cfg.silent,
			RFLM: cfg.rflm,
		},
	}
	device, err := bxcan.Create(devCfg, 72_000_000, platform)
	if err != nil {
		l.Error("device_create_error", "error", err)
		os.Exit(1)
	}
	l.Info("device_ready", "bitrate", cfg.bitrate, "sample_point", cfg.samplePoint, "loopback", cfg.loopback, "silent", cfg.silent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup

	var bridge *cansocketbridge.Bridge
	if cfg.bridgeEnable {
		dev, err := cansocketbridge.Open(cfg.canIf)
		if err != nil {
			l.Error("socketbridge_open_error", "error", err, "interface", cfg.canIf)
		} else {
			bridge = cansocketbridge.New(device, dev, bxcan.FIFO0, cfg.bridgeBuffer)
			bridge.Start(ctx)
			l.Info("socketbridge_started", "interface", cfg.canIf)
		}
	}

	var traceWriter *cantrace.Writer
	if cfg.traceDev != "" {
		port, err := cantrace.Open(cfg.traceDev, cfg.traceBaud)
		if err != nil {
			l.Error("trace_open_error", "error", err, "device", cfg.traceDev)
		} else {
			traceWriter = cantrace.NewWriter(ctx, port, 128)
			device.SetTracer(traceWriter)
			l.Info("trace_started", "device", cfg.traceDev, "baud", cfg.traceBaud)
		}
	}

	metricsPort := 0
	if cfg.metricsAddr != "" {
		srvHTTP := canmetrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		if _, p, err := net.SplitHostPort(cfg.metricsAddr); err == nil {
			if pn, perr := strconv.Atoi(p); perr == nil {
				metricsPort = pn
			}
		}
	}
	canmetrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })

	if cfg.mdnsEnable && metricsPort != 0 {
		cleanupMDNS, err := startMDNS(ctx, cfg, metricsPort)
		if err != nil {
			l.Warn("mdns_start_failed", "error", err)
		} else {
			l.Info("mdns_started", "service", mdnsServiceType, "port", metricsPort)
			defer cleanupMDNS()
		}
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	cancel()
	if bridge != nil {
		_ = bridge.Close()
	}
	if traceWriter != nil {
		_ = traceWriter.Close()
	}
	_ = device.Close()
	wg.Wait()
}
