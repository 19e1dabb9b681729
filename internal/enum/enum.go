package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	PaymentStatusSucceeded      = "SUCCEEDED"
	PaymentStatusProcessing     = "PROCESSING"
	PaymentStatusRequiresAction = "REQUIRES_ACTION"
	PaymentStatusFailed         = "FAILED"
)

// ── Borderline (CHECK constrained in DB) ──

const (
	OrderTypePickup   = "PICKUP"
	OrderTypeDelivery = "DELIVERY"
)

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleKitchen = "KITCHEN"
)

// ── Event types pushed over the change feed (no DB constraint) ──

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)
