package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"bookpay/internal/domain/booking"
	"bookpay/internal/store/repositories"
)

// BookingStore reads and writes the slice of the booking record this core
// owns. The rest of the booking schema belongs to the booking subsystem.
type BookingStore struct {
	db querier
}

// NewBookingStore creates a pool-backed store.
func NewBookingStore(db querier) *BookingStore {
	return &BookingStore{db: db}
}

func (s *BookingStore) Find(ctx context.Context, bookingID string) (*booking.Booking, error) {
	var b booking.Booking
	err := s.db.QueryRow(ctx, `
		SELECT id, tenant_id, status, payment_status
		FROM bookings
		WHERE id = $1`, bookingID).
		Scan(&b.ID, &b.TenantID, &b.Status, &b.PaymentStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (s *BookingStore) UpdatePaymentStatus(ctx context.Context, bookingID, paymentStatus, status string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE bookings
		SET payment_status = $1, status = $2, updated_at = now()
		WHERE id = $3`, paymentStatus, status, bookingID)
	return err
}
