package can

import (
	"errors"
	"testing"
)

func validConfig() Config {
	return Config{
		Number:      CAN1,
		BitRate:     BitRate500,
		SamplePoint: SamplePointCANopen,
	}
}

func TestConfigValidateOK(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		want error
	}{
		{"can2Rejected", func(c *Config) { c.Number = CAN2 }, ErrUnsupportedController},
		{"bitRateTooLow", func(c *Config) { c.BitRate = BitRate(-1) }, ErrInvalidBitRate},
		{"bitRateTooHigh", func(c *Config) { c.BitRate = BitRate(numBitRates) }, ErrInvalidBitRate},
		{"samplePointInvalid", func(c *Config) { c.SamplePoint = SamplePoint(99) }, ErrInvalidSamplePoint},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mod(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want wrapping %v", err, tc.want)
			}
		})
	}
}
