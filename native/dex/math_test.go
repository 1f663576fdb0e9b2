package dex

import (
	"errors"
	"math/big"
	"testing"
)

func TestCalculateSwapOutputNoFee(t *testing.T) {
	// 100 in against 1000/1000 reserves: floor(100*1000/1100) = 90.
	out, err := CalculateSwapOutput(big.NewInt(100), big.NewInt(1_000), big.NewInt(1_000), 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("out = %s, want 90", out)
	}
}

func TestCalculateSwapOutputWithFee(t *testing.T) {
	// 0.3% fee: in*9970 = 997000; floor(997000*1000 / (1000*10000+997000)) = 90.
	out, err := CalculateSwapOutput(big.NewInt(100), big.NewInt(1_000), big.NewInt(1_000), 30)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(big.NewInt(90)) != 0 {
		t.Fatalf("out = %s, want 90", out)
	}
	// Bigger reserves make the fee visible.
	out, err = CalculateSwapOutput(big.NewInt(10_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 30)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	noFee, err := CalculateSwapOutput(big.NewInt(10_000), big.NewInt(1_000_000), big.NewInt(1_000_000), 0)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if out.Cmp(noFee) >= 0 {
		t.Fatalf("fee-adjusted out %s should be below no-fee out %s", out, noFee)
	}
}

func TestCalculateSwapOutputRejectsBadInputs(t *testing.T) {
	if _, err := CalculateSwapOutput(big.NewInt(0), big.NewInt(10), big.NewInt(10), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("zero input: %v, want ErrInvalidInput", err)
	}
	if _, err := CalculateSwapOutput(big.NewInt(-5), big.NewInt(10), big.NewInt(10), 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("negative input: %v, want ErrInvalidInput", err)
	}
	if _, err := CalculateSwapOutput(big.NewInt(5), big.NewInt(0), big.NewInt(10), 0); !errors.Is(err, ErrInvalidReserves) {
		t.Fatalf("zero reserve in: %v, want ErrInvalidReserves", err)
	}
	if _, err := CalculateSwapOutput(big.NewInt(5), big.NewInt(10), big.NewInt(0), 0); !errors.Is(err, ErrInvalidReserves) {
		t.Fatalf("zero reserve out: %v, want ErrInvalidReserves", err)
	}
}

func TestCalculateSwapOutputNeverDrainsPool(t *testing.T) {
	reserveIn := big.NewInt(1_000)
	reserveOut := big.NewInt(1_000)
	for _, in := range []int64{1, 999, 1_000, 1_000_000, 1_000_000_000} {
		out, err := CalculateSwapOutput(big.NewInt(in), reserveIn, reserveOut, 30)
		if err != nil {
			t.Fatalf("quote %d: %v", in, err)
		}
		if out.Cmp(reserveOut) >= 0 {
			t.Fatalf("in %d drained the pool: out = %s", in, out)
		}
		if out.Sign() < 0 {
			t.Fatalf("in %d produced negative out %s", in, out)
		}
	}
}

func TestCalculateSwapOutputMonotonic(t *testing.T) {
	reserveIn := big.NewInt(10_000)
	reserveOut := big.NewInt(10_000)
	prev := big.NewInt(-1)
	for in := int64(1); in <= 5_000; in += 137 {
		out, err := CalculateSwapOutput(big.NewInt(in), reserveIn, reserveOut, 30)
		if err != nil {
			t.Fatalf("quote %d: %v", in, err)
		}
		if out.Cmp(prev) < 0 {
			t.Fatalf("output decreased at in=%d: %s < %s", in, out, prev)
		}
		prev = out
	}
}
