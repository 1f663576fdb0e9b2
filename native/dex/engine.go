package dex

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"piggyvault/core/events"
	"piggyvault/core/types"
	"piggyvault/native/common"
)

var (
	errNilState = errors.New("dex engine: state not configured")

	// ErrUnauthorized is returned when a non-admin caller invokes an
	// admin-only operation.
	ErrUnauthorized = errors.New("dex: unauthorized caller")
	// ErrUnsupportedAsset is returned when no pool entry exists for the
	// asset.
	ErrUnsupportedAsset = errors.New("dex: asset not supported")
	// ErrUnknownAsset is returned when an admin adds a pool for an asset
	// the registry does not whitelist.
	ErrUnknownAsset = errors.New("dex: asset not whitelisted")
	// ErrFeeTooHigh is returned when the fee rate exceeds MaxFeeBps.
	ErrFeeTooHigh = errors.New("dex: fee too high")
	// ErrPaused is returned for value-moving operations while the circuit
	// breaker is engaged.
	ErrPaused = errors.New("dex: paused")
	// ErrSlippage is returned when a swap's realized output falls below the
	// caller's minimum.
	ErrSlippage = errors.New("dex: output below minimum")
	// ErrInsufficientShares is returned when a provider burns more shares
	// than they hold.
	ErrInsufficientShares = errors.New("dex: insufficient shares")
	// ErrInsufficientFunds is returned when the caller cannot cover both
	// legs of a liquidity add.
	ErrInsufficientFunds = errors.New("dex: insufficient funds")
)

const (
	// ModuleName keys the pause switch for the circuit breaker.
	ModuleName = "dex"
	// DefaultFeeBps is the genesis swap fee: 0.3%.
	DefaultFeeBps uint64 = 30
	// MaxFeeBps is the admin-settable fee ceiling: 0.5%.
	MaxFeeBps uint64 = 50
)

// vaultAddress holds all pool reserves. It is derived deterministically so
// every node agrees on it without configuration.
var vaultAddress = func() [20]byte {
	hash := ethcrypto.Keccak256([]byte("piggyvault/dex/vault"))
	var addr [20]byte
	copy(addr[:], hash[12:])
	return addr
}()

type engineState interface {
	PoolPut(*Pool) error
	PoolGet(asset types.Asset) (*Pool, bool, error)
	PoolDelete(asset types.Asset) error
	PoolAssets() ([]types.Asset, error)
	DexFeeBps() (uint64, bool, error)
	DexSetFeeBps(uint64) error
	SetPaused(module string, paused bool) error
	IsPaused(module string) bool
	RegistryAssetActive(asset types.Asset) (bool, error)
	Balance(addr [20]byte, asset types.Asset) (*big.Int, error)
	Transfer(from, to [20]byte, asset types.Asset, amount *big.Int) error
}

type dexEvent struct {
	evt *types.Event
}

func (e dexEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e dexEvent) Event() *types.Event { return e.evt }

// Engine executes liquidity provisioning and constant-product swaps against
// the per-asset reserve pairs. Reserves live on a deterministic vault
// address; the pool records are the authoritative share ledger.
type Engine struct {
	state   engineState
	emitter events.Emitter
	admin   [20]byte
	nowFn   func() int64
}

// NewEngine creates a dex engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetAdmin configures the address allowed to manage pools, fees and the
// circuit breaker.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(dexEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if e.admin == ([20]byte{}) || caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) guard() error {
	if err := common.Guard(e.state, ModuleName); err != nil {
		return ErrPaused
	}
	return nil
}

func (e *Engine) feeBps() (uint64, error) {
	fee, ok, err := e.state.DexFeeBps()
	if err != nil {
		return 0, err
	}
	if !ok {
		return DefaultFeeBps, nil
	}
	return fee, nil
}

func (e *Engine) loadPool(asset types.Asset) (*Pool, error) {
	pool, ok, err := e.state.PoolGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnsupportedAsset
	}
	return pool, nil
}

// AddSupportedAsset creates an empty pool entry for a whitelisted token
// asset. Admin only.
func (e *Engine) AddSupportedAsset(caller [20]byte, asset types.Asset) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if asset.IsNative() {
		return fmt.Errorf("dex: native currency is the base leg, not a pool asset")
	}
	active, err := e.state.RegistryAssetActive(asset)
	if err != nil {
		return err
	}
	if !active {
		return ErrUnknownAsset
	}
	if _, ok, err := e.state.PoolGet(asset); err != nil {
		return err
	} else if ok {
		return nil
	}
	pool := &Pool{
		Asset:        asset,
		ReserveBase:  big.NewInt(0),
		ReserveToken: big.NewInt(0),
		TotalShares:  big.NewInt(0),
		CreatedAt:    e.now(),
	}
	if err := e.state.PoolPut(pool); err != nil {
		return err
	}
	e.emit(NewAssetAddedEvent(pool))
	return nil
}

// AddLiquidity supplies both legs explicitly. The first provider sets the
// pool ratio and receives shares equal to the base leg; later providers must
// match the current ratio and are credited pro rata against the base
// reserve.
func (e *Engine) AddLiquidity(caller [20]byte, asset types.Asset, baseAmount, tokenAmount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	if baseAmount == nil || baseAmount.Sign() <= 0 || tokenAmount == nil || tokenAmount.Sign() <= 0 {
		return nil, ErrInvalidInput
	}
	var minted *big.Int
	if pool.TotalShares.Sign() == 0 {
		minted = new(big.Int).Set(baseAmount)
	} else {
		// Token leg must match the pool ratio exactly; callers quote the
		// required amount from the pool read first.
		required := new(big.Int).Mul(baseAmount, pool.ReserveToken)
		required.Div(required, pool.ReserveBase)
		if required.Sign() == 0 {
			required = big.NewInt(1)
		}
		if tokenAmount.Cmp(required) != 0 {
			return nil, fmt.Errorf("%w: token leg must be %s for base %s", ErrInvalidInput, required, baseAmount)
		}
		minted = new(big.Int).Mul(pool.TotalShares, baseAmount)
		minted.Div(minted, pool.ReserveBase)
		if minted.Sign() == 0 {
			return nil, fmt.Errorf("%w: base amount too small to mint shares", ErrInvalidInput)
		}
	}
	// Both legs leave the caller. Check both balances before moving either
	// so a short token leg cannot strand the base leg in the vault.
	baseBal, err := e.state.Balance(caller, types.NativeAsset)
	if err != nil {
		return nil, err
	}
	tokenBal, err := e.state.Balance(caller, asset)
	if err != nil {
		return nil, err
	}
	if baseBal.Cmp(baseAmount) < 0 || tokenBal.Cmp(tokenAmount) < 0 {
		return nil, ErrInsufficientFunds
	}
	if err := e.state.Transfer(caller, vaultAddress, types.NativeAsset, baseAmount); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(caller, vaultAddress, asset, tokenAmount); err != nil {
		return nil, err
	}
	pool.ReserveBase = new(big.Int).Add(pool.ReserveBase, baseAmount)
	pool.ReserveToken = new(big.Int).Add(pool.ReserveToken, tokenAmount)
	pool.TotalShares = new(big.Int).Add(pool.TotalShares, minted)
	ps := pool.provider(caller)
	if ps == nil {
		pool.Providers = append(pool.Providers, ProviderShare{Provider: caller, Shares: new(big.Int).Set(minted)})
	} else {
		ps.Shares = new(big.Int).Add(ps.Shares, minted)
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(NewLiquidityAddedEvent(pool, caller, baseAmount, tokenAmount, minted))
	return minted, nil
}

// RemoveLiquidity burns shares and returns the proportional fraction of both
// reserves. The pool record is updated and persisted before either payout
// transfer. A pool whose total shares reach zero is deleted.
func (e *Engine) RemoveLiquidity(caller [20]byte, asset types.Asset, shares *big.Int) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, nil, err
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, nil, err
	}
	if shares == nil || shares.Sign() <= 0 {
		return nil, nil, ErrInvalidInput
	}
	ps := pool.provider(caller)
	if ps == nil || ps.Shares.Cmp(shares) < 0 {
		return nil, nil, ErrInsufficientShares
	}
	baseOut := new(big.Int).Mul(pool.ReserveBase, shares)
	baseOut.Div(baseOut, pool.TotalShares)
	tokenOut := new(big.Int).Mul(pool.ReserveToken, shares)
	tokenOut.Div(tokenOut, pool.TotalShares)

	ps.Shares = new(big.Int).Sub(ps.Shares, shares)
	if ps.Shares.Sign() == 0 {
		for i := range pool.Providers {
			if pool.Providers[i].Provider == caller {
				pool.Providers = append(pool.Providers[:i], pool.Providers[i+1:]...)
				break
			}
		}
	}
	pool.TotalShares = new(big.Int).Sub(pool.TotalShares, shares)
	pool.ReserveBase = new(big.Int).Sub(pool.ReserveBase, baseOut)
	pool.ReserveToken = new(big.Int).Sub(pool.ReserveToken, tokenOut)
	if pool.TotalShares.Sign() == 0 {
		if err := e.state.PoolDelete(asset); err != nil {
			return nil, nil, err
		}
	} else {
		if err := e.state.PoolPut(pool); err != nil {
			return nil, nil, err
		}
	}
	if baseOut.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, caller, types.NativeAsset, baseOut); err != nil {
			return nil, nil, err
		}
	}
	if tokenOut.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, caller, asset, tokenOut); err != nil {
			return nil, nil, err
		}
	}
	e.emit(NewLiquidityRemovedEvent(pool, caller, baseOut, tokenOut, shares))
	return baseOut, tokenOut, nil
}

// SwapBaseForToken trades amountIn of the native currency for the pool's
// token leg.
func (e *Engine) SwapBaseForToken(caller [20]byte, asset types.Asset, amountIn, minOut *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	fee, err := e.feeBps()
	if err != nil {
		return nil, err
	}
	out, err := CalculateSwapOutput(amountIn, pool.ReserveBase, pool.ReserveToken, fee)
	if err != nil {
		return nil, err
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrSlippage
	}
	if err := e.state.Transfer(caller, vaultAddress, types.NativeAsset, amountIn); err != nil {
		return nil, err
	}
	pool.ReserveBase = new(big.Int).Add(pool.ReserveBase, amountIn)
	pool.ReserveToken = new(big.Int).Sub(pool.ReserveToken, out)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(vaultAddress, caller, asset, out); err != nil {
		return nil, err
	}
	e.emit(NewSwapEvent(caller, types.NativeAsset, asset, amountIn, out))
	return out, nil
}

// SwapTokenForBase trades amountIn of the pool's token for the native
// currency.
func (e *Engine) SwapTokenForBase(caller [20]byte, asset types.Asset, amountIn, minOut *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	fee, err := e.feeBps()
	if err != nil {
		return nil, err
	}
	out, err := CalculateSwapOutput(amountIn, pool.ReserveToken, pool.ReserveBase, fee)
	if err != nil {
		return nil, err
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrSlippage
	}
	if err := e.state.Transfer(caller, vaultAddress, asset, amountIn); err != nil {
		return nil, err
	}
	pool.ReserveToken = new(big.Int).Add(pool.ReserveToken, amountIn)
	pool.ReserveBase = new(big.Int).Sub(pool.ReserveBase, out)
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(vaultAddress, caller, types.NativeAsset, out); err != nil {
		return nil, err
	}
	e.emit(NewSwapEvent(caller, asset, types.NativeAsset, amountIn, out))
	return out, nil
}

// SwapTokenForToken routes two legs through the base currency: token in to
// base on the first pool, base to token out on the second. Both quotes are
// validated before either pool is touched so the swap is all-or-nothing.
func (e *Engine) SwapTokenForToken(caller [20]byte, assetIn, assetOut types.Asset, amountIn, minOut *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := e.guard(); err != nil {
		return nil, err
	}
	if assetIn == assetOut {
		return nil, fmt.Errorf("%w: identical swap legs", ErrInvalidInput)
	}
	poolIn, err := e.loadPool(assetIn)
	if err != nil {
		return nil, err
	}
	poolOut, err := e.loadPool(assetOut)
	if err != nil {
		return nil, err
	}
	fee, err := e.feeBps()
	if err != nil {
		return nil, err
	}
	baseOut, err := CalculateSwapOutput(amountIn, poolIn.ReserveToken, poolIn.ReserveBase, fee)
	if err != nil {
		return nil, err
	}
	out, err := CalculateSwapOutput(baseOut, poolOut.ReserveBase, poolOut.ReserveToken, fee)
	if err != nil {
		return nil, err
	}
	if minOut != nil && out.Cmp(minOut) < 0 {
		return nil, ErrSlippage
	}
	if err := e.state.Transfer(caller, vaultAddress, assetIn, amountIn); err != nil {
		return nil, err
	}
	poolIn.ReserveToken = new(big.Int).Add(poolIn.ReserveToken, amountIn)
	poolIn.ReserveBase = new(big.Int).Sub(poolIn.ReserveBase, baseOut)
	poolOut.ReserveBase = new(big.Int).Add(poolOut.ReserveBase, baseOut)
	poolOut.ReserveToken = new(big.Int).Sub(poolOut.ReserveToken, out)
	if err := e.state.PoolPut(poolIn); err != nil {
		return nil, err
	}
	if err := e.state.PoolPut(poolOut); err != nil {
		return nil, err
	}
	if err := e.state.Transfer(vaultAddress, caller, assetOut, out); err != nil {
		return nil, err
	}
	e.emit(NewSwapEvent(caller, assetIn, assetOut, amountIn, out))
	return out, nil
}

// SetSwapFee replaces the process-wide fee rate. Admin only; rates above
// MaxFeeBps are rejected.
func (e *Engine) SetSwapFee(caller [20]byte, rateBps uint64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if rateBps > MaxFeeBps {
		return ErrFeeTooHigh
	}
	if err := e.state.DexSetFeeBps(rateBps); err != nil {
		return err
	}
	e.emit(NewFeeUpdatedEvent(rateBps))
	return nil
}

// SwapFee returns the fee rate currently applied to swaps.
func (e *Engine) SwapFee() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.feeBps()
}

// Pause engages the circuit breaker. While paused every value-moving
// operation fails; reads stay available.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.SetPaused(ModuleName, true); err != nil {
		return err
	}
	e.emit(NewPausedEvent(true))
	return nil
}

// Unpause releases the circuit breaker.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if err := e.state.SetPaused(ModuleName, false); err != nil {
		return err
	}
	e.emit(NewPausedEvent(false))
	return nil
}

// EmergencyWithdraw sweeps both reserves of an asset's pool to the admin,
// bypassing share accounting. The pool and every share record on it are
// deleted. Break-glass control, not a user-facing guarantee.
func (e *Engine) EmergencyWithdraw(caller [20]byte, asset types.Asset) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return nil, nil, err
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, nil, err
	}
	baseOut := cloneBigInt(pool.ReserveBase)
	tokenOut := cloneBigInt(pool.ReserveToken)
	if err := e.state.PoolDelete(asset); err != nil {
		return nil, nil, err
	}
	if baseOut.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, e.admin, types.NativeAsset, baseOut); err != nil {
			return nil, nil, err
		}
	}
	if tokenOut.Sign() > 0 {
		if err := e.state.Transfer(vaultAddress, e.admin, asset, tokenOut); err != nil {
			return nil, nil, err
		}
	}
	e.emit(NewEmergencyWithdrawEvent(asset, caller, baseOut, tokenOut))
	return baseOut, tokenOut, nil
}

// Pool returns a copy of the pool record for the asset.
func (e *Engine) Pool(asset types.Asset) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	pool, err := e.loadPool(asset)
	if err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// SupportedAssets lists every asset with a pool entry.
func (e *Engine) SupportedAssets() ([]types.Asset, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.PoolAssets()
}

// Paused reports whether the circuit breaker is engaged. Reads stay
// available while paused.
func (e *Engine) Paused() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.IsPaused(ModuleName)
}
