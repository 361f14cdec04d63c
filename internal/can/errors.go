package can

import "errors"

// Sentinel errors, wrapped with fmt.Errorf("%w: ...") at call sites and
// matched with errors.Is by callers.
var (
	ErrUnsupportedController = errors.New("bxcan: unsupported controller number")
	ErrUnsupportedClock      = errors.New("bxcan: unsupported cpu clock")
	ErrInvalidBitRate        = errors.New("bxcan: invalid bit rate selector")
	ErrInvalidSamplePoint    = errors.New("bxcan: invalid sample point selector")
	ErrInitTimeout           = errors.New("bxcan: timed out waiting for INAK")
	ErrInvalidFilterIndex    = errors.New("bxcan: filter bank index out of range")
	ErrNotNormalMode         = errors.New("bxcan: device is not in normal mode")
	ErrDeviceClosed          = errors.New("bxcan: device is closed")
	ErrControllerInUse       = errors.New("bxcan: controller already vended a device")
)
