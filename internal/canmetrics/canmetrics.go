// Package canmetrics is the driver's Prometheus instrumentation: per-mailbox
// TX outcome counters, per-FIFO RX/drop counters, bus-health gauges, and a
// /metrics + /ready HTTP endpoint, using promauto with a local mirrored
// counter snapshot for callers that want values without scraping.
package canmetrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/bxcan/internal/canlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TxCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_tx_completed_total",
		Help: "Successful TX completions (TXOK=1) per mailbox.",
	}, []string{"mailbox"})
	TxAborted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_tx_aborted_total",
		Help: "TX completions with TXOK=0 (arbitration loss or bus error) per mailbox.",
	}, []string{"mailbox"})
	TxErrorCounter = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bxcan_tx_error_counter",
		Help: "Current saturating per-mailbox TX error counter.",
	}, []string{"mailbox"})
	MailboxWaiters = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bxcan_tx_mailbox_waiters",
		Help: "Goroutines currently blocked acquiring a free TX mailbox.",
	})

	RxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_rx_frames_total",
		Help: "Frames delivered to a receiver per FIFO.",
	}, []string{"fifo"})
	RxDroppedLocked = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_rx_dropped_locked_total",
		Help: "Frames dropped because the software queue was full in locked (RFLM) mode.",
	}, []string{"fifo"})
	RxOverwritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_rx_overwritten_total",
		Help: "Queued frames overwritten by a newer arrival in unlocked mode.",
	}, []string{"fifo"})
	RxQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "bxcan_rx_queue_depth",
		Help: "Current software overflow queue depth per FIFO.",
	}, []string{"fifo"})

	BusOff = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bxcan_bus_off",
		Help: "1 if the controller is currently in bus-off state.",
	})
	ErrorPassive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bxcan_error_passive",
		Help: "1 if the controller is currently error-passive.",
	})
	ErrorWarning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bxcan_error_warning",
		Help: "1 if the controller has crossed the error-warning threshold.",
	})
	LastErrorCode = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bxcan_last_error_code",
		Help: "ESR.LEC value from the most recent status-change-error event.",
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bxcan_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants: a bounded label set keeps the errors_total series
// from exploding into one series per distinct error string.
const (
	ErrInit           = "init"
	ErrFilterProgram  = "filter_program"
	ErrTransmit       = "transmit"
	ErrReceive        = "receive"
	ErrSocketBridgeRX = "socketbridge_rx"
	ErrSocketBridgeTX = "socketbridge_tx"
	ErrTraceWrite     = "trace_write"
)

// StartHTTP serves Prometheus metrics at /metrics and a readiness probe at
// /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		canlog.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			canlog.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters, readable in-process without scraping /metrics.
var (
	localTxCompleted uint64
	localTxAborted   uint64
	localRxFrames    uint64
	localRxDropped   uint64
	localErrors      uint64
)

type Snapshot struct {
	TxCompleted uint64
	TxAborted   uint64
	RxFrames    uint64
	RxDropped   uint64
	Errors      uint64
}

func Snap() Snapshot {
	return Snapshot{
		TxCompleted: atomic.LoadUint64(&localTxCompleted),
		TxAborted:   atomic.LoadUint64(&localTxAborted),
		RxFrames:    atomic.LoadUint64(&localRxFrames),
		RxDropped:   atomic.LoadUint64(&localRxDropped),
		Errors:      atomic.LoadUint64(&localErrors),
	}
}

func IncTxCompleted(mailbox string) {
	TxCompleted.WithLabelValues(mailbox).Inc()
	atomic.AddUint64(&localTxCompleted, 1)
}

func IncTxAborted(mailbox string) {
	TxAborted.WithLabelValues(mailbox).Inc()
	atomic.AddUint64(&localTxAborted, 1)
}

func SetTxErrorCounter(mailbox string, n uint32) {
	TxErrorCounter.WithLabelValues(mailbox).Set(float64(n))
}

func IncRxFrame(fifo string) {
	RxFrames.WithLabelValues(fifo).Inc()
	atomic.AddUint64(&localRxFrames, 1)
}

func IncRxDroppedLocked(fifo string) {
	RxDroppedLocked.WithLabelValues(fifo).Inc()
	atomic.AddUint64(&localRxDropped, 1)
}

func IncRxOverwritten(fifo string) {
	RxOverwritten.WithLabelValues(fifo).Inc()
	atomic.AddUint64(&localRxDropped, 1)
}

func SetRxQueueDepth(fifo string, depth int) {
	RxQueueDepth.WithLabelValues(fifo).Set(float64(depth))
}

func SetBusHealth(busOff, errorPassive, errorWarning bool, lec uint8) {
	BusOff.Set(b2f(busOff))
	ErrorPassive.Set(b2f(errorPassive))
	ErrorWarning.Set(b2f(errorWarning))
	LastErrorCode.Set(float64(lec))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func b2f(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady invokes the registered readiness function, defaulting to ready
// when none has been set yet so the metrics endpoint does not flap during
// startup.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
