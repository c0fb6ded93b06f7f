package accounts

import "errors"

var (
	// ErrDuplicateCode indicates the (outlet, code) pair already exists.
	ErrDuplicateCode = errors.New("accounts: code already exists for outlet")
	// ErrNotFound indicates the account does not exist.
	ErrNotFound = errors.New("accounts: account not found")
	// ErrInactive indicates the account is deactivated.
	ErrInactive = errors.New("accounts: account inactive")
	// ErrHasPostings indicates the account is referenced by voucher lines.
	ErrHasPostings = errors.New("accounts: account has postings and cannot be deleted")
	// ErrSystemAccount indicates a seeded account that must not be removed.
	ErrSystemAccount = errors.New("accounts: system account cannot be deleted")
	// ErrBalanceDivergence indicates the cached balance does not match the
	// recomputed voucher-line sum. This is detected corruption, never healed
	// silently.
	ErrBalanceDivergence = errors.New("accounts: cached balance diverges from voucher stream")
)
