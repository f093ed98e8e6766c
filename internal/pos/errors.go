package pos

import (
	"errors"

	"cafepos/internal/cart"
	"cafepos/internal/database"
	"cafepos/internal/outbox"
	"cafepos/internal/stock"
	"cafepos/internal/tables"
)

var (
	ErrEmptyOrder       = errors.New("order has no items")
	ErrTableOrder       = errors.New("table orders are settled through billing")
	ErrSeated           = errors.New("order is seated at a table")
	ErrNotBilling       = errors.New("table is not in billing")
	ErrPaymentRequired  = errors.New("payment method is required")
	ErrIngredientExists = errors.New("ingredient already exists")
)

// ValidationError is bad input rejected before any state changed
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

var validationErrors = []error{
	cart.ErrInvalidQuantity,
	cart.ErrInvalidAmount,
	cart.ErrInvalidOrderType,
	cart.ErrMenuItemUnavailable,
	cart.ErrVariationNotFound,
	cart.ErrAddonNotFound,
	stock.ErrInvalidQuantity,
	stock.ErrReasonRequired,
	tables.ErrNameRequired,
	tables.ErrOrderRequired,
	ErrEmptyOrder,
	ErrPaymentRequired,
}

var notFoundErrors = []error{
	cart.ErrOrderNotFound,
	cart.ErrLineItemNotFound,
	cart.ErrMenuItemNotFound,
	tables.ErrTableNotFound,
	stock.ErrIngredientNotFound,
	database.ErrNotFound,
	outbox.ErrEntryNotFound,
}

var conflictErrors = []error{
	tables.ErrInvalidTransition,
	tables.ErrTableExists,
	cart.ErrOrderHeld,
	ErrTableOrder,
	ErrSeated,
	ErrNotBilling,
	ErrIngredientExists,
	outbox.ErrNotFailed,
	outbox.ErrSuperseded,
	database.ErrOrderClosed,
}

// classify marks the known input errors of the domain packages as validation errors
func classify(err error) error {
	if err == nil {
		return nil
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return err
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return invalid(err)
		}
	}
	return err
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation reports input errors
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports references to records that do not exist
func IsNotFound(err error) bool {
	return matchesAny(err, notFoundErrors)
}

// IsConflict reports commands that are not allowed in the current state
func IsConflict(err error) bool {
	return matchesAny(err, conflictErrors)
}
