package ledger

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeUser AccountScope = iota
	AccountScopeSystem
	AccountScopeExternal
)

// AccountSubType represents the account purpose
type AccountSubType uint8

const (
	// User sub-types
	SubTypeCollateral AccountSubType = iota
	SubTypeStable
	SubTypeReward

	// System sub-types
	SubTypeSystemReservePool
	SubTypeSystemStabilityPool
	SubTypeSystemStableSupply

	// External sub-types
	SubTypeExternalDeposits
	SubTypeExternalWithdrawals
	SubTypeExternalCirculation
)

// AssetID maps asset strings to numeric IDs for performance
type AssetID uint16

var (
	assetToID = map[string]AssetID{
		"ADA":  1,
		"sUSD": 2,
	}
	idToAsset = map[AssetID]string{
		1: "ADA",
		2: "sUSD",
	}
)

func GetAssetID(asset string) (AssetID, bool) {
	id, ok := assetToID[asset]
	return id, ok
}

func GetAssetName(id AssetID) (string, bool) {
	name, ok := idToAsset[id]
	return name, ok
}

// AccountKey is the in-memory key for balance tracking (20 bytes, cache-friendly)
type AccountKey struct {
	Scope    AccountScope
	EntityID [16]byte // UUID for users, name bytes for system accounts
	SubType  AccountSubType
	AssetID  AssetID
}

// NewUserAccountKey creates a key for user accounts
func NewUserAccountKey(userID uuid.UUID, subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:    AccountScopeUser,
		EntityID: userID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewSystemAccountKey creates a key for system accounts
func NewSystemAccountKey(name string, subType AccountSubType, assetID AssetID) AccountKey {
	var entityID [16]byte
	copy(entityID[:], []byte(name))
	return AccountKey{
		Scope:    AccountScopeSystem,
		EntityID: entityID,
		SubType:  subType,
		AssetID:  assetID,
	}
}

// NewExternalAccountKey creates a key for external boundary accounts
func NewExternalAccountKey(subType AccountSubType, assetID AssetID) AccountKey {
	return AccountKey{
		Scope:   AccountScopeExternal,
		SubType: subType,
		AssetID: assetID,
	}
}

// Well-known system accounts. The reserve pool holds locked collateral, the
// stability pool holds staked pegged tokens, and stable_supply carries the
// issuance liability so minting stays zero-sum.
func ReservePoolAccount(assetID AssetID) AccountKey {
	return NewSystemAccountKey("reserve", SubTypeSystemReservePool, assetID)
}

func StabilityPoolAccount(assetID AssetID) AccountKey {
	return NewSystemAccountKey("stability", SubTypeSystemStabilityPool, assetID)
}

func StableSupplyAccount(assetID AssetID) AccountKey {
	return NewSystemAccountKey("supply", SubTypeSystemStableSupply, assetID)
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	assetName, _ := GetAssetName(k.AssetID)

	switch k.Scope {
	case AccountScopeUser:
		uid := uuid.UUID(k.EntityID)
		return fmt.Sprintf("user:%s:%s:%s", uid.String(), k.subTypeName(), assetName)
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.subTypeName(), assetName)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.subTypeName(), assetName)
	}
	return "unknown"
}

// ParseAccountPath reverses AccountPath. Used when restoring balances from
// string-keyed snapshot data. Unknown paths return the zero key.
func ParseAccountPath(path string) AccountKey {
	parts := strings.Split(path, ":")

	switch {
	case len(parts) == 4 && parts[0] == "user":
		uid, err := uuid.Parse(parts[1])
		if err != nil {
			return AccountKey{}
		}
		subType, ok := subTypeFromName(parts[2])
		if !ok {
			return AccountKey{}
		}
		assetID, ok := GetAssetID(parts[3])
		if !ok {
			return AccountKey{}
		}
		return NewUserAccountKey(uid, subType, assetID)

	case len(parts) == 3 && parts[0] == "system":
		subType, ok := subTypeFromName(parts[1])
		if !ok {
			return AccountKey{}
		}
		assetID, ok := GetAssetID(parts[2])
		if !ok {
			return AccountKey{}
		}
		switch subType {
		case SubTypeSystemReservePool:
			return ReservePoolAccount(assetID)
		case SubTypeSystemStabilityPool:
			return StabilityPoolAccount(assetID)
		case SubTypeSystemStableSupply:
			return StableSupplyAccount(assetID)
		}
		return AccountKey{}

	case len(parts) == 3 && parts[0] == "external":
		subType, ok := subTypeFromName(parts[1])
		if !ok {
			return AccountKey{}
		}
		assetID, ok := GetAssetID(parts[2])
		if !ok {
			return AccountKey{}
		}
		return NewExternalAccountKey(subType, assetID)
	}

	return AccountKey{}
}

func subTypeFromName(name string) (AccountSubType, bool) {
	switch name {
	case "collateral":
		return SubTypeCollateral, true
	case "stable":
		return SubTypeStable, true
	case "reward":
		return SubTypeReward, true
	case "reserve_pool":
		return SubTypeSystemReservePool, true
	case "stability_pool":
		return SubTypeSystemStabilityPool, true
	case "stable_supply":
		return SubTypeSystemStableSupply, true
	case "deposits":
		return SubTypeExternalDeposits, true
	case "withdrawals":
		return SubTypeExternalWithdrawals, true
	case "circulation":
		return SubTypeExternalCirculation, true
	}
	return 0, false
}

func (k AccountKey) subTypeName() string {
	switch k.SubType {
	case SubTypeCollateral:
		return "collateral"
	case SubTypeStable:
		return "stable"
	case SubTypeReward:
		return "reward"
	case SubTypeSystemReservePool:
		return "reserve_pool"
	case SubTypeSystemStabilityPool:
		return "stability_pool"
	case SubTypeSystemStableSupply:
		return "stable_supply"
	case SubTypeExternalDeposits:
		return "deposits"
	case SubTypeExternalWithdrawals:
		return "withdrawals"
	case SubTypeExternalCirculation:
		return "circulation"
	default:
		return "unknown"
	}
}
