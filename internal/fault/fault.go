// Package fault defines the error taxonomy of the accounting core.
// Every failed transition wraps exactly one of these sentinels so callers
// can classify rejections with errors.Is without parsing messages.
package fault

import "errors"

var (
	// ErrPrecondition covers duplicate ids, missing positions or stakes,
	// stale or tampered commitment hashes, wrong coin types, and repay
	// amounts exceeding the stored debt.
	ErrPrecondition = errors.New("precondition violation")

	// ErrAuthorization is returned when the calling principal does not
	// match the owner recorded on the position or stake.
	ErrAuthorization = errors.New("authorization failure")

	// ErrSolvency covers amounts exceeding the borrow limit or withdrawable
	// collateral, a health factor below 1, and insufficient pool liquidity.
	ErrSolvency = errors.New("solvency violation")

	// ErrArithmetic is returned when a division witness is inconsistent or
	// the divisor is zero.
	ErrArithmetic = errors.New("arithmetic fault")
)
