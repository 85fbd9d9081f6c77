package models

import "gorm.io/datatypes"

// BulkWithdraw represents one gateway withdraw link covering the aggregate
// funded amount of two or more cards. While a bulk withdraw is pending every
// member card carries LockedByBulkWithdraw=true.
type BulkWithdraw struct {
	ID string `gorm:"primaryKey;type:text"`

	Created int64 `gorm:"not null"` // Unix timestamp.
	Amount  int64 `gorm:"not null"` // Aggregate amount in sats.

	CardHashes datatypes.JSONSlice[string] // Member card hashes.

	WithdrawID string `gorm:"type:text"` // Gateway withdraw link id.
	LnurlW     string `gorm:"type:text"` // Encoded withdraw link handed to the user.

	Withdrawn *int64 // Unix timestamp of redemption.
	Deleted   *int64 // Unix timestamp of revocation.
}
