package dex

import (
	"math/big"

	"piggyvault/core/types"
)

// ProviderShare records one liquidity provider's proportional claim on a
// pool's reserves.
type ProviderShare struct {
	Provider [20]byte
	Shares   *big.Int
}

// Pool is the per-asset reserve pair: the base (native currency) leg against
// the token leg. Shares are conserved across add/remove; a pool with zero
// total shares is deleted so no dangling claims can exist.
type Pool struct {
	Asset        types.Asset
	ReserveBase  *big.Int
	ReserveToken *big.Int
	TotalShares  *big.Int
	Providers    []ProviderShare
	CreatedAt    int64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.ReserveBase = cloneBigInt(p.ReserveBase)
	clone.ReserveToken = cloneBigInt(p.ReserveToken)
	clone.TotalShares = cloneBigInt(p.TotalShares)
	clone.Providers = make([]ProviderShare, len(p.Providers))
	for i, ps := range p.Providers {
		clone.Providers[i] = ProviderShare{Provider: ps.Provider, Shares: cloneBigInt(ps.Shares)}
	}
	return &clone
}

func (p *Pool) provider(addr [20]byte) *ProviderShare {
	if p == nil {
		return nil
	}
	for i := range p.Providers {
		if p.Providers[i].Provider == addr {
			return &p.Providers[i]
		}
	}
	return nil
}

// SharesOf returns the provider's current share balance, zero when unknown.
func (p *Pool) SharesOf(addr [20]byte) *big.Int {
	ps := p.provider(addr)
	if ps == nil {
		return big.NewInt(0)
	}
	return cloneBigInt(ps.Shares)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
