package state

import (
	"fmt"

	"piggyvault/core/types"
	"piggyvault/native/registry"
)

type storedAssetInfo struct {
	Asset     [20]byte
	MaxAmount string
	Active    bool
}

type storedAccountRecord struct {
	Address   [20]byte
	Creator   [20]byte
	Kind      uint8
	CreatedAt uint64
}

type storedAddressList struct {
	Addresses [][20]byte
}

// RegistryAssetPut persists a whitelist entry.
func (m *Manager) RegistryAssetPut(info *registry.AssetInfo) error {
	if info == nil {
		return fmt.Errorf("state: nil asset info")
	}
	stored := storedAssetInfo{Asset: info.Asset, Active: info.Active}
	if info.MaxAmount != nil {
		stored.MaxAmount = info.MaxAmount.String()
	}
	return m.kvPut(key(registryAssetPrefix, info.Asset[:]), stored)
}

// RegistryAssetGet loads a whitelist entry.
func (m *Manager) RegistryAssetGet(asset types.Asset) (*registry.AssetInfo, bool, error) {
	var stored storedAssetInfo
	ok, err := m.kvGet(key(registryAssetPrefix, asset[:]), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	info := &registry.AssetInfo{Asset: stored.Asset, Active: stored.Active}
	if stored.MaxAmount != "" {
		cap, err := parseAmount(stored.MaxAmount)
		if err != nil {
			return nil, false, err
		}
		info.MaxAmount = cap
	}
	return info, true, nil
}

// RegistryAssetActive reports whether the asset is whitelisted and active.
func (m *Manager) RegistryAssetActive(asset types.Asset) (bool, error) {
	info, ok, err := m.RegistryAssetGet(asset)
	if err != nil || !ok {
		return false, err
	}
	return info.Active, nil
}

// RegistryAccountPut persists a factory membership record.
func (m *Manager) RegistryAccountPut(rec *registry.AccountRecord) error {
	if rec == nil {
		return fmt.Errorf("state: nil account record")
	}
	return m.kvPut(key(registryAcctPrefix, rec.Address[:]), storedAccountRecord{
		Address:   rec.Address,
		Creator:   rec.Creator,
		Kind:      uint8(rec.Kind),
		CreatedAt: toUint64(rec.CreatedAt),
	})
}

// RegistryAccountGet loads a factory membership record.
func (m *Manager) RegistryAccountGet(addr [20]byte) (*registry.AccountRecord, bool, error) {
	var stored storedAccountRecord
	ok, err := m.kvGet(key(registryAcctPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &registry.AccountRecord{
		Address:   stored.Address,
		Creator:   stored.Creator,
		Kind:      registry.AccountKind(stored.Kind),
		CreatedAt: int64(stored.CreatedAt),
	}, true, nil
}

// RegistryCreatorAppend records addr under the creator's account list.
func (m *Manager) RegistryCreatorAppend(creator [20]byte, addr [20]byte) error {
	k := key(registryByCreator, creator[:])
	var list storedAddressList
	if _, err := m.kvGet(k, &list); err != nil {
		return err
	}
	list.Addresses = append(list.Addresses, addr)
	return m.kvPut(k, list)
}

// RegistryAccountsByCreator lists the creator's accounts in creation order.
func (m *Manager) RegistryAccountsByCreator(creator [20]byte) ([][20]byte, error) {
	var list storedAddressList
	if _, err := m.kvGet(key(registryByCreator, creator[:]), &list); err != nil {
		return nil, err
	}
	return list.Addresses, nil
}

// RegistryNonce returns the factory's monotonic creation counter.
func (m *Manager) RegistryNonce() (uint64, error) {
	var nonce uint64
	if _, err := m.kvGet(registryNonceKey, &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

// RegistrySetNonce persists the factory's creation counter.
func (m *Manager) RegistrySetNonce(nonce uint64) error {
	return m.kvPut(registryNonceKey, nonce)
}

// RegistryLastCreated returns the most recently minted account address.
func (m *Manager) RegistryLastCreated() ([20]byte, bool, error) {
	var addr [20]byte
	ok, err := m.kvGet(registryLastKey, &addr)
	return addr, ok, err
}

// RegistrySetLastCreated persists the most recently minted account address.
func (m *Manager) RegistrySetLastCreated(addr [20]byte) error {
	return m.kvPut(registryLastKey, addr)
}

func toUint64(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
