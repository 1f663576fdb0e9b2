package state

import (
	"fmt"

	"piggyvault/core/types"
	"piggyvault/native/dex"
)

type storedProviderShare struct {
	Provider [20]byte
	Shares   string
}

type storedPool struct {
	Asset        [20]byte
	ReserveBase  string
	ReserveToken string
	TotalShares  string
	Providers    []storedProviderShare
	CreatedAt    uint64
}

// PoolPut persists a liquidity pool, maintaining the pool index.
func (m *Manager) PoolPut(pool *dex.Pool) error {
	if pool == nil {
		return fmt.Errorf("state: nil pool")
	}
	stored := storedPool{
		Asset:        pool.Asset,
		ReserveBase:  amountString(pool.ReserveBase),
		ReserveToken: amountString(pool.ReserveToken),
		TotalShares:  amountString(pool.TotalShares),
		CreatedAt:    toUint64(pool.CreatedAt),
	}
	stored.Providers = make([]storedProviderShare, len(pool.Providers))
	for i, ps := range pool.Providers {
		stored.Providers[i] = storedProviderShare{Provider: ps.Provider, Shares: amountString(ps.Shares)}
	}
	if err := m.kvPut(key(poolPrefix, pool.Asset[:]), stored); err != nil {
		return err
	}
	return m.poolIndexAdd(pool.Asset)
}

// PoolGet loads a liquidity pool.
func (m *Manager) PoolGet(asset types.Asset) (*dex.Pool, bool, error) {
	var stored storedPool
	ok, err := m.kvGet(key(poolPrefix, asset[:]), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	reserveBase, err := parseAmount(stored.ReserveBase)
	if err != nil {
		return nil, false, err
	}
	reserveToken, err := parseAmount(stored.ReserveToken)
	if err != nil {
		return nil, false, err
	}
	totalShares, err := parseAmount(stored.TotalShares)
	if err != nil {
		return nil, false, err
	}
	pool := &dex.Pool{
		Asset:        types.Asset(stored.Asset),
		ReserveBase:  reserveBase,
		ReserveToken: reserveToken,
		TotalShares:  totalShares,
		CreatedAt:    int64(stored.CreatedAt),
	}
	pool.Providers = make([]dex.ProviderShare, len(stored.Providers))
	for i, ps := range stored.Providers {
		shares, err := parseAmount(ps.Shares)
		if err != nil {
			return nil, false, err
		}
		pool.Providers[i] = dex.ProviderShare{Provider: ps.Provider, Shares: shares}
	}
	return pool, true, nil
}

// PoolDelete removes a pool and its index entry.
func (m *Manager) PoolDelete(asset types.Asset) error {
	if err := m.db.Delete(key(poolPrefix, asset[:])); err != nil {
		return err
	}
	return m.poolIndexRemove(asset)
}

// PoolAssets lists every asset with a pool entry, in creation order.
func (m *Manager) PoolAssets() ([]types.Asset, error) {
	var list storedAddressList
	if _, err := m.kvGet(poolIndexKey, &list); err != nil {
		return nil, err
	}
	assets := make([]types.Asset, len(list.Addresses))
	for i, a := range list.Addresses {
		assets[i] = types.Asset(a)
	}
	return assets, nil
}

func (m *Manager) poolIndexAdd(asset types.Asset) error {
	var list storedAddressList
	if _, err := m.kvGet(poolIndexKey, &list); err != nil {
		return err
	}
	for _, a := range list.Addresses {
		if a == asset {
			return nil
		}
	}
	list.Addresses = append(list.Addresses, asset)
	return m.kvPut(poolIndexKey, list)
}

func (m *Manager) poolIndexRemove(asset types.Asset) error {
	var list storedAddressList
	if _, err := m.kvGet(poolIndexKey, &list); err != nil {
		return err
	}
	for i, a := range list.Addresses {
		if a == asset {
			list.Addresses = append(list.Addresses[:i], list.Addresses[i+1:]...)
			return m.kvPut(poolIndexKey, list)
		}
	}
	return nil
}

// DexFeeBps returns the configured swap fee, reporting whether one is set.
func (m *Manager) DexFeeBps() (uint64, bool, error) {
	var fee uint64
	ok, err := m.kvGet(dexFeeKey, &fee)
	return fee, ok, err
}

// DexSetFeeBps persists the swap fee.
func (m *Manager) DexSetFeeBps(fee uint64) error {
	return m.kvPut(dexFeeKey, fee)
}

// SetPaused toggles a module's circuit breaker.
func (m *Manager) SetPaused(module string, paused bool) error {
	return m.kvPut(key(pausePrefix, []byte(module)), paused)
}

// IsPaused reports whether a module's circuit breaker is engaged. It
// implements the common.PauseView interface; lookup errors read as not
// paused.
func (m *Manager) IsPaused(module string) bool {
	var paused bool
	ok, err := m.kvGet(key(pausePrefix, []byte(module)), &paused)
	if err != nil || !ok {
		return false
	}
	return paused
}
