package cards

import "errors"

// Funding state errors. Callers match these with errors.Is; the HTTP boundary
// maps them to stable response codes.
var (
	// ErrCardNotFound indicates a card hash with no stored record.
	ErrCardNotFound = errors.New("card not found")
	// ErrSetNotFound indicates a set id with no stored record.
	ErrSetNotFound = errors.New("set not found")
	// ErrCardNotFunded indicates no funding path of the card has been paid.
	ErrCardNotFunded = errors.New("card not funded")
	// ErrCardWithdrawn indicates the card was already redeemed and is terminal.
	ErrCardWithdrawn = errors.New("card already withdrawn")
	// ErrAlreadyFunded indicates the card already carries a paid funding path.
	ErrAlreadyFunded = errors.New("card already funded")
	// ErrFundingConflict indicates a different funding path is already attached.
	ErrFundingConflict = errors.New("another funding path is already attached")
	// ErrAmountMismatch indicates an existing funding path with a different amount.
	ErrAmountMismatch = errors.New("funding path exists with a different amount")
	// ErrNoFundingPath indicates an operation that requires an attached funding path.
	ErrNoFundingPath = errors.New("card has no funding path")
	// ErrSetBelongsToAnotherUser indicates a set owned by a different user.
	ErrSetBelongsToAnotherUser = errors.New("set belongs to another user")
	// ErrCardLocked indicates the card is held by a pending bulk withdraw.
	ErrCardLocked = errors.New("card is locked by a bulk withdraw")
	// ErrWithdrawUsed indicates a withdraw link that has already been spent.
	ErrWithdrawUsed = errors.New("withdraw link has already been used")
)
