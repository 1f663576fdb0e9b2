package dex

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"piggyvault/core/types"
)

const (
	EventTypeAssetAdded        = "dex.asset_added"
	EventTypeLiquidityAdded    = "dex.liquidity_added"
	EventTypeLiquidityRemoved  = "dex.liquidity_removed"
	EventTypeSwap              = "dex.swap"
	EventTypeFeeUpdated        = "dex.fee_updated"
	EventTypePaused            = "dex.paused"
	EventTypeUnpaused          = "dex.unpaused"
	EventTypeEmergencyWithdraw = "dex.emergency_withdraw"
)

// NewAssetAddedEvent returns the payload emitted when a pool entry is
// created.
func NewAssetAddedEvent(pool *Pool) *types.Event {
	return &types.Event{Type: EventTypeAssetAdded, Attributes: poolAttrs(pool)}
}

// NewLiquidityAddedEvent returns the payload for a liquidity provision.
func NewLiquidityAddedEvent(pool *Pool, provider [20]byte, baseAmount, tokenAmount, shares *big.Int) *types.Event {
	attrs := poolAttrs(pool)
	attrs["provider"] = hex.EncodeToString(provider[:])
	attrs["baseAmount"] = amountString(baseAmount)
	attrs["tokenAmount"] = amountString(tokenAmount)
	attrs["shares"] = amountString(shares)
	return &types.Event{Type: EventTypeLiquidityAdded, Attributes: attrs}
}

// NewLiquidityRemovedEvent returns the payload for a proportional share burn.
func NewLiquidityRemovedEvent(pool *Pool, provider [20]byte, baseOut, tokenOut, shares *big.Int) *types.Event {
	attrs := poolAttrs(pool)
	attrs["provider"] = hex.EncodeToString(provider[:])
	attrs["baseOut"] = amountString(baseOut)
	attrs["tokenOut"] = amountString(tokenOut)
	attrs["shares"] = amountString(shares)
	return &types.Event{Type: EventTypeLiquidityRemoved, Attributes: attrs}
}

// NewSwapEvent returns the payload for an executed swap, including routed
// token-to-token trades.
func NewSwapEvent(caller [20]byte, assetIn, assetOut types.Asset, amountIn, amountOut *big.Int) *types.Event {
	attrs := map[string]string{
		"caller":    hex.EncodeToString(caller[:]),
		"assetIn":   assetIn.String(),
		"assetOut":  assetOut.String(),
		"amountIn":  amountString(amountIn),
		"amountOut": amountString(amountOut),
	}
	return &types.Event{Type: EventTypeSwap, Attributes: attrs}
}

// NewFeeUpdatedEvent returns the payload for a fee change.
func NewFeeUpdatedEvent(rateBps uint64) *types.Event {
	return &types.Event{Type: EventTypeFeeUpdated, Attributes: map[string]string{
		"feeBps": strconv.FormatUint(rateBps, 10),
	}}
}

// NewPausedEvent returns the circuit-breaker payload for both directions.
func NewPausedEvent(paused bool) *types.Event {
	eventType := EventTypeUnpaused
	if paused {
		eventType = EventTypePaused
	}
	return &types.Event{Type: eventType, Attributes: map[string]string{}}
}

// NewEmergencyWithdrawEvent returns the payload for an admin reserve sweep.
func NewEmergencyWithdrawEvent(asset types.Asset, caller [20]byte, baseOut, tokenOut *big.Int) *types.Event {
	attrs := map[string]string{
		"asset":    asset.String(),
		"caller":   hex.EncodeToString(caller[:]),
		"baseOut":  amountString(baseOut),
		"tokenOut": amountString(tokenOut),
	}
	return &types.Event{Type: EventTypeEmergencyWithdraw, Attributes: attrs}
}

func poolAttrs(pool *Pool) map[string]string {
	attrs := make(map[string]string)
	if pool == nil {
		return attrs
	}
	attrs["asset"] = pool.Asset.String()
	attrs["reserveBase"] = amountString(pool.ReserveBase)
	attrs["reserveToken"] = amountString(pool.ReserveToken)
	attrs["totalShares"] = amountString(pool.TotalShares)
	return attrs
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
