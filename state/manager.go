package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"piggyvault/core/types"
	"piggyvault/storage"
)

var (
	// ErrInsufficientFunds is returned when a transfer debits more than the
	// source address holds.
	ErrInsufficientFunds = errors.New("state: insufficient funds")
)

var (
	accountPrefix       = []byte("acct/")
	tokenBalancePrefix  = []byte("tok/")
	registryAssetPrefix = []byte("registry/asset/")
	registryAcctPrefix  = []byte("registry/account/")
	registryByCreator   = []byte("registry/creator/")
	registryNonceKey    = []byte("registry/nonce")
	registryLastKey     = []byte("registry/last")
	piggyPrefix         = []byte("piggy/individual/")
	groupPrefix         = []byte("piggy/group/")
	poolPrefix          = []byte("dex/pool/")
	poolIndexKey        = []byte("dex/pools")
	dexFeeKey           = []byte("dex/fee")
	pausePrefix         = []byte("pause/")
)

// Manager is the single state backend shared by every native engine. The
// internal mutex guards individual balance moves; engine operations span
// several reads and writes against the same keys, so whoever dispatches them
// must hold the call lock (Begin/End) for the whole call. With the call lock
// held, execution is strictly serial: one call fully completes before the
// next begins.
type Manager struct {
	callMu sync.Mutex
	mu     sync.Mutex
	db     storage.Database
}

// Begin takes the call lock. Engine operations are multi-step
// read-modify-write sequences, so the dispatcher holds the lock across the
// whole operation; interleaved calls would lose updates.
func (m *Manager) Begin() { m.callMu.Lock() }

// End releases the call lock taken by Begin.
func (m *Manager) End() { m.callMu.Unlock() }

// NewManager wraps the supplied key-value store.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func key(prefix []byte, suffix []byte) []byte {
	buf := make([]byte, len(prefix)+len(suffix))
	copy(buf, prefix)
	copy(buf[len(prefix):], suffix)
	return buf
}

func (m *Manager) kvGet(k []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(k)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", k, err)
	}
	return true, nil
}

func (m *Manager) kvPut(k []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", k, err)
	}
	return m.db.Put(k, encoded)
}

func parseAmount(raw string) (*big.Int, error) {
	if raw == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid amount %q", raw)
	}
	return v, nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// --- accounts and balances ---

type storedAccount struct {
	Nonce   uint64
	Balance string
}

// GetAccount returns the ledger entry for the address, an empty account when
// none is stored yet.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.kvGet(key(accountPrefix, addr[:]), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	balance, err := parseAmount(stored.Balance)
	if err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: balance}, nil
}

// PutAccount persists the ledger entry for the address.
func (m *Manager) PutAccount(addr [20]byte, acct *types.Account) error {
	if acct == nil {
		return fmt.Errorf("state: nil account")
	}
	return m.kvPut(key(accountPrefix, addr[:]), storedAccount{
		Nonce:   acct.Nonce,
		Balance: amountString(acct.Balance),
	})
}

func tokenKey(addr [20]byte, asset types.Asset) []byte {
	suffix := make([]byte, 0, 41)
	suffix = append(suffix, addr[:]...)
	suffix = append(suffix, '/')
	suffix = append(suffix, asset[:]...)
	return key(tokenBalancePrefix, suffix)
}

// Balance returns the address's holding of the asset.
func (m *Manager) Balance(addr [20]byte, asset types.Asset) (*big.Int, error) {
	if asset.IsNative() {
		acct, err := m.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		return acct.Balance, nil
	}
	var stored string
	ok, err := m.kvGet(tokenKey(addr, asset), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored)
}

func (m *Manager) setBalance(addr [20]byte, asset types.Asset, amount *big.Int) error {
	if asset.IsNative() {
		acct, err := m.GetAccount(addr)
		if err != nil {
			return err
		}
		acct.Balance = amount
		return m.PutAccount(addr, acct)
	}
	return m.kvPut(tokenKey(addr, asset), amountString(amount))
}

// Mint credits freshly issued value to the address. Used by genesis funding
// and tests.
func (m *Manager) Mint(addr [20]byte, asset types.Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: mint amount must be non-negative")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, err := m.Balance(addr, asset)
	if err != nil {
		return err
	}
	return m.setBalance(addr, asset, new(big.Int).Add(current, amount))
}

// Transfer moves amount of the asset between addresses, failing without any
// mutation when the source balance is insufficient.
//
// The debit and credit are two separate puts with no write batch between
// them. The store is assumed not to fail a put once validation has passed;
// a storage fault between the two puts loses the credited leg. A per-call
// leveldb.Batch flushed once per engine call would close that window.
// TODO: thread a storage batch through setBalance.
func (m *Manager) Transfer(from, to [20]byte, asset types.Asset, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("state: negative transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	fromBal, err := m.Balance(from, asset)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	toBal, err := m.Balance(to, asset)
	if err != nil {
		return err
	}
	if err := m.setBalance(from, asset, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	return m.setBalance(to, asset, new(big.Int).Add(toBal, amount))
}
