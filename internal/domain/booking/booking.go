package booking

// Booking is the slice of the booking record this core reads and writes.
// The booking subsystem itself is an external collaborator; we treat it as
// an opaque store keyed by booking id.
type Booking struct {
	ID            string
	TenantID      int64
	Status        string
	PaymentStatus string
}

// Status values written back on payment transitions.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"

	PaymentStatusUnpaid   = "unpaid"
	PaymentStatusPaid     = "paid"
	PaymentStatusRefunded = "refunded"
)

// BelongsTo reports whether the booking is owned by the given tenant.
func (b *Booking) BelongsTo(tenantID int64) bool {
	return b.TenantID == tenantID
}
