package can

import (
	"errors"
	"testing"
)

func TestRxFilterValidateOK(t *testing.T) {
	f := RxFilter{Index: 0, FIFO: FIFO0, Mode: FilterModeMask, Scale: FilterScale32Bit}
	if err := f.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	f.Index = NumFilterBanks - 1
	if err := f.Validate(); err != nil {
		t.Fatalf("expected ok for last bank, got %v", err)
	}
}

func TestRxFilterValidateIndexOutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		index int
	}{
		{"negative", -1},
		{"atBankCount", NumFilterBanks},
		{"wellBeyond", NumFilterBanks + 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := RxFilter{Index: tc.index}
			err := f.Validate()
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !errors.Is(err, ErrInvalidFilterIndex) {
				t.Fatalf("err = %v, want wrapping %v", err, ErrInvalidFilterIndex)
			}
		})
	}
}
