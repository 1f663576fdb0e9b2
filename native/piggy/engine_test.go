package piggy

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"piggyvault/core/types"
)

type mockState struct {
	accounts map[[20]byte]*Account
	groups   map[[20]byte]*GroupAccount
	balances map[[20]byte]map[types.Asset]*big.Int
}

func newMockState() *mockState {
	return &mockState{
		accounts: make(map[[20]byte]*Account),
		groups:   make(map[[20]byte]*GroupAccount),
		balances: make(map[[20]byte]map[types.Asset]*big.Int),
	}
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func (m *mockState) PiggyPut(acct *Account) error {
	m.accounts[acct.Address] = acct.Clone()
	return nil
}

func (m *mockState) PiggyGet(addr [20]byte) (*Account, bool, error) {
	acct, ok := m.accounts[addr]
	if !ok {
		return nil, false, nil
	}
	return acct.Clone(), true, nil
}

func (m *mockState) GroupPut(group *GroupAccount) error {
	m.groups[group.Address] = group.Clone()
	return nil
}

func (m *mockState) GroupGet(addr [20]byte) (*GroupAccount, bool, error) {
	group, ok := m.groups[addr]
	if !ok {
		return nil, false, nil
	}
	return group.Clone(), true, nil
}

func (m *mockState) balance(addr [20]byte, asset types.Asset) *big.Int {
	if byAsset, ok := m.balances[addr]; ok {
		if bal, ok := byAsset[asset]; ok {
			return bal
		}
	}
	return big.NewInt(0)
}

func (m *mockState) fund(addr [20]byte, asset types.Asset, amount int64) {
	if m.balances[addr] == nil {
		m.balances[addr] = make(map[types.Asset]*big.Int)
	}
	m.balances[addr][asset] = big.NewInt(amount)
}

func (m *mockState) Transfer(from, to [20]byte, asset types.Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	src := m.balance(from, asset)
	if src.Cmp(amount) < 0 {
		return errors.New("insufficient funds")
	}
	if m.balances[from] == nil {
		m.balances[from] = make(map[types.Asset]*big.Int)
	}
	if m.balances[to] == nil {
		m.balances[to] = make(map[types.Asset]*big.Int)
	}
	m.balances[from][asset] = new(big.Int).Sub(src, amount)
	m.balances[to][asset] = new(big.Int).Add(m.balance(to, asset), amount)
	return nil
}

type testEnv struct {
	engine   *Engine
	state    *mockState
	treasury [20]byte
	now      int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		treasury: newTestAddress(0xFE),
		now:      1_000,
	}
	env.engine = NewEngine()
	env.engine.SetState(env.state)
	env.engine.SetTreasury(env.treasury)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) createIndividual(t *testing.T, owner [20]byte, lockEnd int64, cap int64) [20]byte {
	t.Helper()
	addr := newTestAddress(0x01)
	var capAmount *big.Int
	if cap > 0 {
		capAmount = big.NewInt(cap)
	}
	if err := env.engine.CreateIndividual(addr, owner, types.NativeAsset, big.NewInt(1_000), lockEnd, capAmount, env.now); err != nil {
		t.Fatalf("create individual: %v", err)
	}
	return addr
}

func TestDepositAndWithdrawAfterUnlock(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+100, 0)
	env.state.fund(owner, types.NativeAsset, 500)

	if err := env.engine.Deposit(addr, owner, big.NewInt(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := env.state.balance(addr, types.NativeAsset); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("vault balance = %s, want 300", got)
	}

	if err := env.engine.Withdraw(addr, owner, big.NewInt(100)); !errors.Is(err, ErrStillLocked) {
		t.Fatalf("withdraw before unlock: %v, want ErrStillLocked", err)
	}

	env.now += 101
	if err := env.engine.Withdraw(addr, owner, big.NewInt(100)); err != nil {
		t.Fatalf("withdraw after unlock: %v", err)
	}
	if got := env.state.balance(owner, types.NativeAsset); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("owner balance = %s, want 300", got)
	}
	balance, target, err := env.engine.Progress(addr)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if balance.Cmp(big.NewInt(200)) != 0 || target.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("progress = %s/%s, want 200/1000", balance, target)
	}
}

func TestDepositRejectsNonOwner(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	stranger := newTestAddress(0x22)
	addr := env.createIndividual(t, owner, env.now+100, 0)
	env.state.fund(stranger, types.NativeAsset, 500)

	if err := env.engine.Deposit(addr, stranger, big.NewInt(100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("deposit by stranger: %v, want ErrUnauthorized", err)
	}
}

func TestDepositCapEnforced(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+100, 250)
	env.state.fund(owner, types.NativeAsset, 500)

	if err := env.engine.Deposit(addr, owner, big.NewInt(200)); err != nil {
		t.Fatalf("deposit under cap: %v", err)
	}
	if err := env.engine.Deposit(addr, owner, big.NewInt(100)); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("deposit over cap: %v, want ErrCapExceeded", err)
	}
	// Topping up exactly to the cap is allowed.
	if err := env.engine.Deposit(addr, owner, big.NewInt(50)); err != nil {
		t.Fatalf("deposit to cap: %v", err)
	}
}

func TestWithdrawInsufficientBalance(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now-1, 0)
	env.state.fund(owner, types.NativeAsset, 100)

	if err := env.engine.Deposit(addr, owner, big.NewInt(100)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.Withdraw(addr, owner, big.NewInt(101)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: %v, want ErrInsufficientBalance", err)
	}
}

func TestEmergencyWithdrawTakesTenPercent(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+1_000_000, 0)
	env.state.fund(owner, types.NativeAsset, 1_000)

	if err := env.engine.Deposit(addr, owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	payout, err := env.engine.EmergencyWithdraw(addr, owner)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if payout.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("payout = %s, want 900", payout)
	}
	if got := env.state.balance(owner, types.NativeAsset); got.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("owner balance = %s, want 900", got)
	}
	if got := env.state.balance(env.treasury, types.NativeAsset); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("treasury balance = %s, want 100", got)
	}
	if got := env.state.balance(addr, types.NativeAsset); got.Sign() != 0 {
		t.Fatalf("vault balance = %s, want 0", got)
	}
	acct, err := env.engine.Get(addr)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acct.Balance.Sign() != 0 {
		t.Fatalf("record balance = %s, want 0", acct.Balance)
	}
}

func TestEmergencyWithdrawEmptyAccount(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+100, 0)

	if _, err := env.engine.EmergencyWithdraw(addr, owner); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("emergency withdraw empty: %v, want ErrInsufficientBalance", err)
	}
}

func TestEmergencyWithdrawPenaltyRoundsDown(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+100, 0)
	env.state.fund(owner, types.NativeAsset, 15)

	if err := env.engine.Deposit(addr, owner, big.NewInt(15)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// 10% of 15 truncates to 1; the owner keeps 14.
	payout, err := env.engine.EmergencyWithdraw(addr, owner)
	if err != nil {
		t.Fatalf("emergency withdraw: %v", err)
	}
	if payout.Cmp(big.NewInt(14)) != 0 {
		t.Fatalf("payout = %s, want 14", payout)
	}
	if got := env.state.balance(env.treasury, types.NativeAsset); got.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("treasury balance = %s, want 1", got)
	}
}

func TestAccountNotFound(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.Deposit(newTestAddress(0x99), newTestAddress(0x11), big.NewInt(1)); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("deposit unknown account: %v, want ErrAccountNotFound", err)
	}
}

func TestCreateIndividualRejectsReusedAddress(t *testing.T) {
	env := newTestEnv(t)
	owner := newTestAddress(0x11)
	addr := env.createIndividual(t, owner, env.now+100, 0)

	err := env.engine.CreateIndividual(addr, owner, types.NativeAsset, big.NewInt(1), env.now+100, nil, env.now)
	if err == nil {
		t.Fatal("expected error reusing address")
	}
}
