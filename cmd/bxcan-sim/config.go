package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type appConfig struct {
	bitrate       int
	samplePoint   string
	loopback      bool
	silent        bool
	rflm          bool
	logFormat     string
	logLevel      string
	metricsAddr   string
	canIf         string
	bridgeEnable  bool
	bridgeBuffer  int
	traceDev      string
	traceBaud     int
	mdnsEnable    bool
	mdnsName      string
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	bitrate := flag.Int("bitrate", 500000, "Simulated bus bit rate (10000..1000000)")
	samplePoint := flag.String("sample-point", "canopen", "Sample point profile: canopen|arinc825")
	loopback := flag.Bool("loopback", true, "Enable LBKM loopback mode")
	silent := flag.Bool("silent", false, "Enable SILM silent mode")
	rflm := flag.Bool("rflm", false, "Lock RX FIFOs on overrun instead of overwriting the oldest entry")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	canIf := flag.String("can-if", "", "SocketCAN interface to bridge loopback traffic onto; empty disables the bridge")
	bridgeBuffer := flag.Int("bridge-buffer", 64, "SocketCAN bridge outbound queue depth")
	traceDev := flag.String("trace-dev", "", "Serial device for the UART trace sink; empty disables tracing")
	traceBaud := flag.Int("trace-baud", 115200, "Trace serial baud rate")
	mdnsEnable := flag.Bool("mdns-enable", false, "Enable mDNS advertisement of the diagnostics port")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default bxcan-sim-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.bitrate = *bitrate
	cfg.samplePoint = *samplePoint
	cfg.loopback = *loopback
	cfg.silent = *silent
	cfg.rflm = *rflm
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.canIf = *canIf
	cfg.bridgeEnable = cfg.canIf != ""
	cfg.bridgeBuffer = *bridgeBuffer
	cfg.traceDev = *traceDev
	cfg.traceBaud = *traceBaud
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.samplePoint {
	case "canopen", "arinc825":
	default:
		return fmt.Errorf("invalid sample-point: %s", c.samplePoint)
	}
	if c.bitrate <= 0 {
		return fmt.Errorf("bitrate must be > 0 (got %d)", c.bitrate)
	}
	if c.bridgeBuffer <= 0 {
		return fmt.Errorf("bridge-buffer must be > 0 (got %d)", c.bridgeBuffer)
	}
	if c.traceDev != "" && c.traceBaud <= 0 {
		return fmt.Errorf("trace-baud must be > 0 (got %d)", c.traceBaud)
	}
	return nil
}

// applyEnvOverrides maps BXCAN_SIM_* environment variables to config fields
// unless a corresponding flag was explicitly set. Flag wins over env.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["bitrate"]; !ok {
		if v, ok := get("BXCAN_SIM_BITRATE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.bitrate = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid BXCAN_SIM_BITRATE: %w", err)
			}
		}
	}
	if _, ok := set["sample-point"]; !ok {
		if v, ok := get("BXCAN_SIM_SAMPLE_POINT"); ok && v != "" {
			c.samplePoint = v
		}
	}
	if _, ok := set["loopback"]; !ok {
		if v, ok := get("BXCAN_SIM_LOOPBACK"); ok && v != "" {
			c.loopback = parseBool(v, c.loopback)
		}
	}
	if _, ok := set["silent"]; !ok {
		if v, ok := get("BXCAN_SIM_SILENT"); ok && v != "" {
			c.silent = parseBool(v, c.silent)
		}
	}
	if _, ok := set["rflm"]; !ok {
		if v, ok := get("BXCAN_SIM_RFLM"); ok && v != "" {
			c.rflm = parseBool(v, c.rflm)
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("BXCAN_SIM_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("BXCAN_SIM_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("BXCAN_SIM_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["can-if"]; !ok {
		if v, ok := get("BXCAN_SIM_CAN_IF"); ok && v != "" {
			c.canIf = v
			c.bridgeEnable = true
		}
	}
	if _, ok := set["bridge-buffer"]; !ok {
		if v, ok := get("BXCAN_SIM_BRIDGE_BUFFER"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.bridgeBuffer = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid BXCAN_SIM_BRIDGE_BUFFER: %w", err)
			}
		}
	}
	if _, ok := set["trace-dev"]; !ok {
		if v, ok := get("BXCAN_SIM_TRACE_DEV"); ok && v != "" {
			c.traceDev = v
		}
	}
	if _, ok := set["trace-baud"]; !ok {
		if v, ok := get("BXCAN_SIM_TRACE_BAUD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.traceBaud = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid BXCAN_SIM_TRACE_BAUD: %w", err)
			}
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("BXCAN_SIM_MDNS_ENABLE"); ok && v != "" {
			c.mdnsEnable = parseBool(v, c.mdnsEnable)
		}
	}
	if _, ok := set["mdns-name"]; !ok {
		if v, ok := get("BXCAN_SIM_MDNS_NAME"); ok && v != "" {
			c.mdnsName = v
		}
	}
	return firstErr
}

func parseBool(v string, cur bool) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return cur
	}
}
