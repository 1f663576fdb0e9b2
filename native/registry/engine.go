package registry

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"piggyvault/core/events"
	"piggyvault/core/types"
)

var (
	errNilState   = errors.New("registry engine: state not configured")
	errNilFactory = errors.New("registry engine: account factory not configured")

	// ErrUnauthorized is returned when a caller other than the registry
	// admin invokes an admin-only operation.
	ErrUnauthorized = errors.New("registry: unauthorized caller")
	// ErrUnknownAsset is returned when an account references an asset that
	// is not whitelisted or has been blacklisted.
	ErrUnknownAsset = errors.New("registry: unknown asset")
	// ErrInvalidQuorum is returned when a group account's approval
	// requirement falls outside [1, len(participants)] or the participant
	// set itself is unusable.
	ErrInvalidQuorum = errors.New("registry: invalid quorum")
)

type engineState interface {
	RegistryAssetPut(*AssetInfo) error
	RegistryAssetGet(asset types.Asset) (*AssetInfo, bool, error)
	RegistryAccountPut(*AccountRecord) error
	RegistryAccountGet(addr [20]byte) (*AccountRecord, bool, error)
	RegistryAccountsByCreator(creator [20]byte) ([][20]byte, error)
	RegistryCreatorAppend(creator [20]byte, addr [20]byte) error
	RegistryNonce() (uint64, error)
	RegistrySetNonce(uint64) error
	RegistryLastCreated() ([20]byte, bool, error)
	RegistrySetLastCreated(addr [20]byte) error
}

// AccountFactory instantiates the escrow account variants on behalf of the
// registry once construction parameters have been validated.
type AccountFactory interface {
	CreateIndividual(addr, owner [20]byte, asset types.Asset, target *big.Int, lockEnd int64, cap *big.Int, now int64) error
	CreateGroup(addr, creator [20]byte, name string, participants [][20]byte, required uint32, asset types.Asset, target *big.Int, lockEnd int64, cap *big.Int, now int64) error
}

// Engine wires the token whitelist and account factory with external state
// and event emitters. The admin address owns the whitelist; account creation
// is permissionless once an asset is active.
type Engine struct {
	state   engineState
	factory AccountFactory
	emitter events.Emitter
	admin   [20]byte
	nowFn   func() int64
}

// NewEngine creates a registry engine with a no-op emitter. Callers can
// override the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetFactory configures the account factory invoked after validation.
func (e *Engine) SetFactory(factory AccountFactory) { e.factory = factory }

// SetAdmin configures the address allowed to mutate the whitelist.
func (e *Engine) SetAdmin(addr [20]byte) { e.admin = addr }

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	e.emitter.Emit(registryEvent{evt: event})
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

// Bootstrap whitelists the native currency with an unbounded cap. It is
// invoked once at genesis and is idempotent.
func (e *Engine) Bootstrap() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.RegistryAssetGet(types.NativeAsset); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.RegistryAssetPut(&AssetInfo{Asset: types.NativeAsset, Active: true})
}

// WhitelistAsset activates the asset with the supplied per-account cap. A nil
// or zero cap means unbounded. Re-whitelisting an existing entry updates the
// cap and reactivates it.
func (e *Engine) WhitelistAsset(caller [20]byte, asset types.Asset, maxAmount *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	info := &AssetInfo{Asset: asset, Active: true}
	if maxAmount != nil && maxAmount.Sign() > 0 {
		info.MaxAmount = new(big.Int).Set(maxAmount)
	} else if maxAmount != nil && maxAmount.Sign() < 0 {
		return fmt.Errorf("registry: asset cap must not be negative")
	}
	if err := e.state.RegistryAssetPut(info); err != nil {
		return err
	}
	e.emit(NewAssetWhitelistedEvent(info))
	return nil
}

// BlacklistAsset deactivates the asset. Already-created accounts keep their
// snapshotted cap and continue to operate.
func (e *Engine) BlacklistAsset(caller [20]byte, asset types.Asset) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	info, ok, err := e.state.RegistryAssetGet(asset)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownAsset
	}
	if !info.Active {
		return nil
	}
	info.Active = false
	if err := e.state.RegistryAssetPut(info); err != nil {
		return err
	}
	e.emit(NewAssetBlacklistedEvent(info))
	return nil
}

func (e *Engine) activeAsset(asset types.Asset) (*AssetInfo, error) {
	info, ok, err := e.state.RegistryAssetGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok || !info.Active {
		return nil, ErrUnknownAsset
	}
	return info, nil
}

func (e *Engine) nextAddress(creator [20]byte) ([20]byte, error) {
	nonce, err := e.state.RegistryNonce()
	if err != nil {
		return [20]byte{}, err
	}
	var nonceBytes [8]byte
	for i := 0; i < 8; i++ {
		nonceBytes[7-i] = byte(nonce >> (8 * i))
	}
	hash := ethcrypto.Keccak256(creator[:], nonceBytes[:])
	var addr [20]byte
	copy(addr[:], hash[12:])
	if err := e.state.RegistrySetNonce(nonce + 1); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

func (e *Engine) record(addr, creator [20]byte, kind AccountKind, now int64) error {
	rec := &AccountRecord{Address: addr, Creator: creator, Kind: kind, CreatedAt: now}
	if err := e.state.RegistryAccountPut(rec); err != nil {
		return err
	}
	if err := e.state.RegistryCreatorAppend(creator, addr); err != nil {
		return err
	}
	if err := e.state.RegistrySetLastCreated(addr); err != nil {
		return err
	}
	e.emit(NewAccountCreatedEvent(rec))
	return nil
}

// CreateIndividual validates the construction parameters against the
// whitelist and mints a single-owner escrow account for the caller. The new
// account's address is returned and also carried on the emitted creation
// event, which is the discovery channel for external callers.
func (e *Engine) CreateIndividual(creator [20]byte, asset types.Asset, target *big.Int, lockDuration int64) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	if e.factory == nil {
		return [20]byte{}, errNilFactory
	}
	info, err := e.activeAsset(asset)
	if err != nil {
		return [20]byte{}, err
	}
	if lockDuration < 0 {
		return [20]byte{}, fmt.Errorf("registry: lock duration must not be negative")
	}
	now := e.now()
	addr, err := e.nextAddress(creator)
	if err != nil {
		return [20]byte{}, err
	}
	if err := e.factory.CreateIndividual(addr, creator, asset, target, now+lockDuration, info.MaxAmount, now); err != nil {
		return [20]byte{}, err
	}
	if err := e.record(addr, creator, KindIndividual, now); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

// CreateGroup validates the quorum configuration and participant set, then
// mints a multi-party escrow account.
func (e *Engine) CreateGroup(creator [20]byte, name string, participants [][20]byte, requiredApprovals uint32, asset types.Asset, target *big.Int, lockDuration int64) ([20]byte, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, errNilState
	}
	if e.factory == nil {
		return [20]byte{}, errNilFactory
	}
	if len(participants) == 0 {
		return [20]byte{}, ErrInvalidQuorum
	}
	seen := make(map[[20]byte]struct{}, len(participants))
	for _, p := range participants {
		if _, dup := seen[p]; dup {
			return [20]byte{}, ErrInvalidQuorum
		}
		seen[p] = struct{}{}
	}
	if requiredApprovals < 1 || int(requiredApprovals) > len(participants) {
		return [20]byte{}, ErrInvalidQuorum
	}
	info, err := e.activeAsset(asset)
	if err != nil {
		return [20]byte{}, err
	}
	if lockDuration < 0 {
		return [20]byte{}, fmt.Errorf("registry: lock duration must not be negative")
	}
	now := e.now()
	addr, err := e.nextAddress(creator)
	if err != nil {
		return [20]byte{}, err
	}
	if err := e.factory.CreateGroup(addr, creator, name, participants, requiredApprovals, asset, target, now+lockDuration, info.MaxAmount, now); err != nil {
		return [20]byte{}, err
	}
	if err := e.record(addr, creator, KindGroup, now); err != nil {
		return [20]byte{}, err
	}
	return addr, nil
}

// IsAccount reports whether the address was minted by this registry.
func (e *Engine) IsAccount(addr [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	_, ok, err := e.state.RegistryAccountGet(addr)
	return ok, err
}

// Account returns the membership record for a created account.
func (e *Engine) Account(addr [20]byte) (*AccountRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.RegistryAccountGet(addr)
}

// AccountsOf lists the addresses of every account created by the supplied
// address, in creation order.
func (e *Engine) AccountsOf(creator [20]byte) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.state.RegistryAccountsByCreator(creator)
}

// LastCreated returns the most recently minted account address.
func (e *Engine) LastCreated() ([20]byte, bool, error) {
	if e == nil || e.state == nil {
		return [20]byte{}, false, errNilState
	}
	return e.state.RegistryLastCreated()
}

// Asset returns the whitelist entry for the supplied asset.
func (e *Engine) Asset(asset types.Asset) (*AssetInfo, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	info, ok, err := e.state.RegistryAssetGet(asset)
	if err != nil || !ok {
		return nil, ok, err
	}
	return info.Clone(), true, nil
}
