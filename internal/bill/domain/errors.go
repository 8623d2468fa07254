package domain

import "errors"

// Error kinds surfaced by the lifecycle service. Concrete causes wrap
// one of these so call sites can branch on kind with errors.Is.
var (
	ErrInvalidBillData   = errors.New("invalid_bill_data")
	ErrEmptyBill         = errors.New("empty_bill")
	ErrInvalidBillStatus = errors.New("invalid_bill_status")
	ErrBillNotFound      = errors.New("bill_not_found")
	ErrItemNotFound      = errors.New("bill_item_not_found")
)

// Validation causes, each a kind of ErrInvalidBillData.
var (
	ErrInvalidProductID   = wrapInvalid("product id must be non-blank and at most 20 characters")
	ErrInvalidProductName = wrapInvalid("product name must be non-blank and at most 255 characters")
	ErrInvalidQuantity    = wrapInvalid("quantity must be between 1 and 999999")
	ErrInvalidRemark      = wrapInvalid("remark exceeds maximum length")
	ErrInvalidTitle       = wrapInvalid("title exceeds maximum length")
	ErrMissingBillID      = wrapInvalid("bill id is required")
)

func wrapInvalid(msg string) error {
	return &invalidDataError{msg: msg}
}

type invalidDataError struct {
	msg string
}

func (e *invalidDataError) Error() string { return e.msg }

func (e *invalidDataError) Unwrap() error { return ErrInvalidBillData }
