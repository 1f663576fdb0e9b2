package registry

import (
	"encoding/hex"
	"strconv"

	"piggyvault/core/types"
)

const (
	EventTypeAssetWhitelisted = "registry.asset_whitelisted"
	EventTypeAssetBlacklisted = "registry.asset_blacklisted"
	EventTypeAccountCreated   = "registry.account_created"
)

type registryEvent struct {
	evt *types.Event
}

func (e registryEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e registryEvent) Event() *types.Event { return e.evt }

// NewAssetWhitelistedEvent returns the canonical payload for a whitelist
// activation or cap update.
func NewAssetWhitelistedEvent(info *AssetInfo) *types.Event {
	return newAssetEvent(EventTypeAssetWhitelisted, info)
}

// NewAssetBlacklistedEvent returns the canonical payload emitted when an
// asset is deactivated.
func NewAssetBlacklistedEvent(info *AssetInfo) *types.Event {
	return newAssetEvent(EventTypeAssetBlacklisted, info)
}

// NewAccountCreatedEvent returns the canonical payload carrying a freshly
// minted account address and its creator. This event is the only channel by
// which external callers discover the address.
func NewAccountCreatedEvent(rec *AccountRecord) *types.Event {
	attrs := make(map[string]string)
	if rec == nil {
		return &types.Event{Type: EventTypeAccountCreated, Attributes: attrs}
	}
	attrs["account"] = hex.EncodeToString(rec.Address[:])
	attrs["creator"] = hex.EncodeToString(rec.Creator[:])
	attrs["kind"] = rec.Kind.String()
	attrs["createdAt"] = strconv.FormatInt(rec.CreatedAt, 10)
	return &types.Event{Type: EventTypeAccountCreated, Attributes: attrs}
}

func newAssetEvent(eventType string, info *AssetInfo) *types.Event {
	attrs := make(map[string]string)
	if info == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["asset"] = info.Asset.String()
	if info.MaxAmount != nil {
		attrs["maxAmount"] = info.MaxAmount.String()
	}
	attrs["active"] = strconv.FormatBool(info.Active)
	return &types.Event{Type: eventType, Attributes: attrs}
}
