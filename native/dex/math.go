package dex

import (
	"errors"
	"math/big"
)

var (
	// ErrInvalidInput is returned when a swap is quoted with a zero input.
	ErrInvalidInput = errors.New("dex: swap input must be positive")
	// ErrInvalidReserves is returned when either reserve of the quoted pair
	// is zero.
	ErrInvalidReserves = errors.New("dex: reserves must be positive")
)

const feeDenominator = 10_000

// CalculateSwapOutput quotes the fee-adjusted constant-product formula:
//
//	out = floor(in*(1-fee) * reserveOut / (reserveIn + in*(1-fee)))
//
// with the fee expressed in basis points. The output is strictly below
// reserveOut, so a pool can never be fully drained, and strictly increasing
// in amountIn.
func CalculateSwapOutput(amountIn, reserveIn, reserveOut *big.Int, feeBps uint64) (*big.Int, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidInput
	}
	if reserveIn == nil || reserveIn.Sign() <= 0 || reserveOut == nil || reserveOut.Sign() <= 0 {
		return nil, ErrInvalidReserves
	}
	if feeBps >= feeDenominator {
		return nil, ErrInvalidInput
	}
	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(feeDenominator-int64(feeBps)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(feeDenominator))
	denominator.Add(denominator, inWithFee)
	return numerator.Div(numerator, denominator), nil
}
