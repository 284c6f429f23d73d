package memory

import (
	"context"
	"sync"

	"bookpay/internal/domain/booking"
	"bookpay/internal/store/repositories"
)

// BookingStore is the in-process booking collaborator.
type BookingStore struct {
	mu   sync.RWMutex
	rows map[string]*booking.Booking
}

// NewBookingStore creates an empty store.
func NewBookingStore() *BookingStore {
	return &BookingStore{rows: make(map[string]*booking.Booking)}
}

// Put seeds a booking.
func (s *BookingStore) Put(b booking.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.ID] = &b
}

func (s *BookingStore) Find(_ context.Context, bookingID string) (*booking.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.rows[bookingID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *BookingStore) UpdatePaymentStatus(_ context.Context, bookingID, paymentStatus, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[bookingID]
	if !ok {
		return repositories.ErrNotFound
	}
	b.PaymentStatus = paymentStatus
	b.Status = status
	return nil
}
