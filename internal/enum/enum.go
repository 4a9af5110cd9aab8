package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusOpen          = "open"
	OrderStatusSentToKitchen = "sent_to_kitchen"
	OrderStatusInProgress    = "in_progress"
	OrderStatusReady         = "ready"
	OrderStatusServed        = "served"
	OrderStatusPaid          = "paid"
	OrderStatusCancelled     = "cancelled"
)

const (
	PaymentKindPayment = "payment"
	PaymentKindRefund  = "refund"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "admin"
	UserRoleManager = "manager"
	UserRoleCashier = "cashier"
	UserRoleWaiter  = "waiter"
	UserRoleKitchen = "kitchen"
)

const (
	OrderTypeDineIn   = "dine_in"
	OrderTypeTakeaway = "takeaway"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	DiscountTypePercent = "percent"
	DiscountTypeFixed   = "fixed"
)

const (
	RuleApplyStack = "stack"
	RuleApplyFirst = "first"
)

const (
	RuleMatchAll = "all"
	RuleMatchAny = "any"
)

const (
	TargetItem     = "item"
	TargetCategory = "category"
)

const (
	DiscountScopeOrder    = "order"
	DiscountScopeCategory = "category"
	DiscountScopeItem     = "item"
)

// ElevatedRole reports whether role may refund, cancel with PIN, or soft delete.
func ElevatedRole(role string) bool {
	return role == UserRoleAdmin || role == UserRoleManager
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusOpen, OrderStatusSentToKitchen, OrderStatusInProgress, OrderStatusReady,
		OrderStatusServed, OrderStatusPaid, OrderStatusCancelled:
		return true
	}
	return false
}

// ValidUserRole reports whether s is a known user role.
func ValidUserRole(s string) bool {
	switch s {
	case UserRoleAdmin, UserRoleManager, UserRoleCashier, UserRoleWaiter, UserRoleKitchen:
		return true
	}
	return false
}
