package reconcile

import "errors"

// Engine errors. Gateway failures are wrapped so the boundary can
// distinguish "could not create" from "could not check status".
var (
	// ErrInvalidAmount indicates a funding amount below the configured minimum.
	ErrInvalidAmount = errors.New("amount below minimum")
	// ErrNoCardIndices indicates a set invoice request without card indices.
	ErrNoCardIndices = errors.New("no card indices given")
	// ErrSetAlreadyFunded indicates the set invoice has already been paid.
	ErrSetAlreadyFunded = errors.New("set is already funded")
	// ErrSetInvoiceExists indicates an unpaid set invoice already exists.
	ErrSetInvoiceExists = errors.New("set invoice already exists")
	// ErrSetLnurlpExists indicates an unpaid set pay link already exists.
	ErrSetLnurlpExists = errors.New("set pay link already exists")
	// ErrCannotDeleteFundedSet indicates a delete attempt on a funded set.
	ErrCannotDeleteFundedSet = errors.New("funded set cannot be deleted")
	// ErrNotSharedFunding indicates a finish call on a card without a shared
	// pull-payment link.
	ErrNotSharedFunding = errors.New("card has no shared funding link")

	// ErrCreateInvoice indicates the gateway rejected or failed invoice creation.
	ErrCreateInvoice = errors.New("unable to create invoice at gateway")
	// ErrCheckInvoiceStatus indicates the invoice status could not be determined.
	ErrCheckInvoiceStatus = errors.New("unable to check invoice status at gateway")
	// ErrCreateLnurlp indicates the gateway failed pull-payment link creation.
	ErrCreateLnurlp = errors.New("unable to create lnurlp link at gateway")
	// ErrCheckLnurlpStatus indicates pull-payment status could not be determined.
	ErrCheckLnurlpStatus = errors.New("unable to check lnurlp status at gateway")
	// ErrCreateWithdraw indicates the gateway failed withdraw link creation.
	ErrCreateWithdraw = errors.New("unable to create withdraw link at gateway")
	// ErrCheckWithdrawStatus indicates withdraw status could not be determined.
	ErrCheckWithdrawStatus = errors.New("unable to check withdraw status at gateway")
	// ErrDeleteWithdraw indicates the gateway failed to remove a withdraw link.
	ErrDeleteWithdraw = errors.New("unable to delete withdraw link at gateway")
)
