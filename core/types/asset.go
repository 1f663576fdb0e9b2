package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Asset identifies a depositable value kind: the zero value is the native
// currency sentinel, any other value is a 20-byte token contract address.
type Asset [20]byte

// NativeAsset is the sentinel for the chain's native currency.
var NativeAsset = Asset{}

// IsNative reports whether the asset is the native currency sentinel.
func (a Asset) IsNative() bool { return a == NativeAsset }

// String renders the asset for logs and event attributes.
func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return "0x" + hex.EncodeToString(a[:])
}

// ParseAsset decodes the wire representation produced by String. The literal
// "native" (and the empty string) map to the native sentinel.
func ParseAsset(raw string) (Asset, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || strings.EqualFold(trimmed, "native") {
		return NativeAsset, nil
	}
	trimmed = strings.TrimPrefix(strings.TrimPrefix(trimmed, "0x"), "0X")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return Asset{}, fmt.Errorf("invalid asset %q: %w", raw, err)
	}
	if len(decoded) != 20 {
		return Asset{}, fmt.Errorf("invalid asset %q: expected 20 bytes, got %d", raw, len(decoded))
	}
	var asset Asset
	copy(asset[:], decoded)
	return asset, nil
}
