package service

import "fmt"

// ValidationError rejects malformed input before anything is written.
type ValidationError struct{ Reason string }

func (e *ValidationError) Error() string { return e.Reason }

// NotFoundError reports a missing order, line, menu item or user.
type NotFoundError struct{ Reason string }

func (e *NotFoundError) Error() string { return e.Reason }

// ClosedOrderError rejects mutations of paid or cancelled orders.
type ClosedOrderError struct{ Reason string }

func (e *ClosedOrderError) Error() string { return e.Reason }

// AuthorizationError reports a failed role or PIN check.
type AuthorizationError struct{ Reason string }

func (e *AuthorizationError) Error() string { return e.Reason }

// LimitExceededError reports overpayment, over-refund or a refund cap violation.
type LimitExceededError struct{ Reason string }

func (e *LimitExceededError) Error() string { return e.Reason }

// ConflictError reports a state change that lost a race or no longer applies.
type ConflictError struct{ Reason string }

func (e *ConflictError) Error() string { return e.Reason }

// Errors returned by the order and payment services.
var (
	ErrEmptyItems         = &ValidationError{"items are required"}
	ErrInvalidOrderType   = &ValidationError{"invalid order_type"}
	ErrInvalidQuantity    = &ValidationError{"quantity must be > 0"}
	ErrInvalidGuest       = &ValidationError{"guest must be between 1 and 20"}
	ErrInvalidMenuItemID  = &ValidationError{"invalid menu_item_id"}
	ErrInvalidLineID      = &ValidationError{"invalid line_id"}
	ErrInvalidTableID     = &ValidationError{"invalid table_id"}
	ErrTableRequired      = &ValidationError{"table_id is required for dine_in orders"}
	ErrInvalidDiscount    = &ValidationError{"invalid discount"}
	ErrInvalidStatus      = &ValidationError{"invalid status"}
	ErrInvalidAmount      = &ValidationError{"invalid amount"}
	ErrNegativeAmount     = &ValidationError{"amount must not be negative"}
	ErrZeroAmount         = &ValidationError{"amount must be greater than zero"}
	ErrInvalidMethod      = &ValidationError{"invalid payment method"}
	ErrAutoLineImmutable  = &ValidationError{"rule-added lines cannot be edited"}
	ErrOrderNotFound      = &NotFoundError{"order not found"}
	ErrLineNotFound       = &NotFoundError{"order line not found"}
	ErrMenuItemNotFound   = &NotFoundError{"menu item not found"}
	ErrOrderClosed        = &ClosedOrderError{"order is paid or cancelled"}
	ErrElevatedRole       = &AuthorizationError{"manager or admin role required"}
	ErrAdminRole          = &AuthorizationError{"admin role required"}
	ErrInvalidPIN         = &AuthorizationError{"invalid manager PIN"}
	ErrStatusConflict     = &ConflictError{"order status changed concurrently"}
	ErrNotDeletable       = &ConflictError{"only paid or cancelled orders can be deleted"}
)

func invalidTransition(from, to string) error {
	return &ValidationError{fmt.Sprintf("invalid status transition from %s to %s", from, to)}
}
