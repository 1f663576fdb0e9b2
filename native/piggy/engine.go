package piggy

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"piggyvault/core/events"
	"piggyvault/core/types"
)

var (
	errNilState       = errors.New("piggy engine: state not configured")
	errNilTreasury    = errors.New("piggy engine: penalty treasury not configured")
	errAccountExists  = errors.New("piggy engine: account address already in use")
	ErrAccountNotFound = errors.New("piggy: account not found")

	// ErrUnauthorized is returned when the caller is neither the account
	// owner nor, for group operations, a participant or the group creator.
	ErrUnauthorized = errors.New("piggy: unauthorized caller")
	// ErrStillLocked is returned for normal withdrawals before lock expiry.
	ErrStillLocked = errors.New("piggy: still locked")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the
	// account balance.
	ErrInsufficientBalance = errors.New("piggy: insufficient balance")
	// ErrCapExceeded is returned when a deposit would push the balance
	// above the asset cap snapshotted at account creation.
	ErrCapExceeded = errors.New("piggy: deposit cap exceeded")
)

// penaltyBps is the fixed emergency-withdrawal penalty: 10%.
const penaltyBps = 1_000

type engineState interface {
	PiggyPut(*Account) error
	PiggyGet(addr [20]byte) (*Account, bool, error)
	GroupPut(*GroupAccount) error
	GroupGet(addr [20]byte) (*GroupAccount, bool, error)
	Transfer(from, to [20]byte, asset types.Asset, amount *big.Int) error
}

type piggyEvent struct {
	evt *types.Event
}

func (e piggyEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e piggyEvent) Event() *types.Event { return e.evt }

// Engine executes the escrow account transitions for both the individual and
// group variants. Each account's own address doubles as its vault: deposits
// move value onto the account address, withdrawals move it out after the
// record balance has been updated.
type Engine struct {
	state    engineState
	emitter  events.Emitter
	treasury [20]byte
	nowFn    func() int64
}

// NewEngine creates a piggy engine with a no-op emitter. Callers can override
// the emitter via SetEmitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetTreasury configures the address receiving emergency-withdrawal penalties
// and distribution dust.
func (e *Engine) SetTreasury(addr [20]byte) { e.treasury = addr }

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
	e.emitter.Emit(piggyEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ensureTreasuryConfigured() error {
	if e == nil || e.treasury == ([20]byte{}) {
		return errNilTreasury
	}
	return nil
}

// CreateIndividual instantiates a single-owner account record. It is invoked
// by the registry after parameter validation; the address must be fresh.
func (e *Engine) CreateIndividual(addr, owner [20]byte, asset types.Asset, target *big.Int, lockEnd int64, cap *big.Int, now int64) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if _, ok, err := e.state.PiggyGet(addr); err != nil {
		return err
	} else if ok {
		return errAccountExists
	}
	acct := &Account{
		Address:   addr,
		Owner:     owner,
		Asset:     asset,
		Target:    cloneBigInt(target),
		LockEnd:   lockEnd,
		Balance:   big.NewInt(0),
		CreatedAt: now,
	}
	if cap != nil && cap.Sign() > 0 {
		acct.Cap = new(big.Int).Set(cap)
	}
	return e.state.PiggyPut(acct)
}

func (e *Engine) loadAccount(addr [20]byte) (*Account, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	acct, ok, err := e.state.PiggyGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// Deposit moves amount of the account's asset from the owner into the
// account. Deposits are allowed in any lock state.
func (e *Engine) Deposit(addr, caller [20]byte, amount *big.Int) error {
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if caller != acct.Owner {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("piggy: deposit amount must be positive")
	}
	next := new(big.Int).Add(acct.Balance, amount)
	if acct.Cap != nil && next.Cmp(acct.Cap) > 0 {
		return ErrCapExceeded
	}
	if err := e.state.Transfer(caller, acct.Address, acct.Asset, amount); err != nil {
		return err
	}
	acct.Balance = next
	if err := e.state.PiggyPut(acct); err != nil {
		return err
	}
	e.emit(NewDepositEvent(acct, caller, amount))
	return nil
}

// Withdraw pays amount back to the owner once the lock window has elapsed.
// The record balance is reduced and persisted before the outbound transfer.
func (e *Engine) Withdraw(addr, caller [20]byte, amount *big.Int) error {
	acct, err := e.loadAccount(addr)
	if err != nil {
		return err
	}
	if caller != acct.Owner {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("piggy: withdraw amount must be positive")
	}
	if !acct.Unlocked(e.now()) {
		return ErrStillLocked
	}
	if acct.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	acct.Balance = new(big.Int).Sub(acct.Balance, amount)
	if err := e.state.PiggyPut(acct); err != nil {
		return err
	}
	if err := e.state.Transfer(acct.Address, acct.Owner, acct.Asset, amount); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(acct, caller, amount))
	return nil
}

// EmergencyWithdraw drains the entire balance regardless of the lock state,
// paying 90% to the owner and sweeping the 10% penalty to the treasury.
func (e *Engine) EmergencyWithdraw(addr, caller [20]byte) (*big.Int, error) {
	acct, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	if caller != acct.Owner {
		return nil, ErrUnauthorized
	}
	if err := e.ensureTreasuryConfigured(); err != nil {
		return nil, err
	}
	total := cloneBigInt(acct.Balance)
	if total.Sign() <= 0 {
		return nil, ErrInsufficientBalance
	}
	penalty := new(big.Int).Mul(total, big.NewInt(penaltyBps))
	penalty.Div(penalty, big.NewInt(10_000))
	payout := new(big.Int).Sub(total, penalty)
	acct.Balance = big.NewInt(0)
	if err := e.state.PiggyPut(acct); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		if err := e.state.Transfer(acct.Address, acct.Owner, acct.Asset, payout); err != nil {
			return nil, err
		}
	}
	if penalty.Sign() > 0 {
		if err := e.state.Transfer(acct.Address, e.treasury, acct.Asset, penalty); err != nil {
			return nil, err
		}
	}
	e.emit(NewEmergencyWithdrawEvent(acct, caller, payout, penalty))
	return payout, nil
}

// Progress returns the current balance and the informational target amount.
func (e *Engine) Progress(addr [20]byte) (*big.Int, *big.Int, error) {
	acct, err := e.loadAccount(addr)
	if err != nil {
		return nil, nil, err
	}
	return cloneBigInt(acct.Balance), cloneBigInt(acct.Target), nil
}

// Get returns a copy of the individual account record.
func (e *Engine) Get(addr [20]byte) (*Account, error) {
	acct, err := e.loadAccount(addr)
	if err != nil {
		return nil, err
	}
	return acct.Clone(), nil
}
