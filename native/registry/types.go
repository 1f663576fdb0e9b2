package registry

import (
	"math/big"

	"piggyvault/core/types"
)

// AccountKind distinguishes the two escrow account variants minted by the
// factory.
type AccountKind uint8

const (
	KindIndividual AccountKind = iota + 1
	KindGroup
)

// Valid reports whether the kind value is within the supported range.
func (k AccountKind) Valid() bool {
	return k == KindIndividual || k == KindGroup
}

func (k AccountKind) String() string {
	switch k {
	case KindIndividual:
		return "individual"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// AssetInfo is the whitelist entry for a single asset. MaxAmount caps the
// balance of any single escrow account holding the asset; a nil cap means
// unbounded. Entries are never deleted, only deactivated.
type AssetInfo struct {
	Asset     types.Asset
	MaxAmount *big.Int
	Active    bool
}

// Clone returns a deep copy of the asset entry.
func (a *AssetInfo) Clone() *AssetInfo {
	if a == nil {
		return nil
	}
	clone := *a
	if a.MaxAmount != nil {
		clone.MaxAmount = new(big.Int).Set(a.MaxAmount)
	}
	return &clone
}

// AccountRecord is the factory's authoritative membership entry for a created
// escrow account.
type AccountRecord struct {
	Address   [20]byte
	Creator   [20]byte
	Kind      AccountKind
	CreatedAt int64
}
