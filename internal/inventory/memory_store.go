package inventory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
)

type productStock struct {
	mu       sync.Mutex
	total    int32
	reserved int32
}

// MemoryStore implements Store in memory. Stock changes lock only the
// product they touch; the reservation index has its own lock and the two are
// never held together.
type MemoryStore struct {
	stocksMu sync.RWMutex
	stocks   map[int64]*productStock // productID -> counters

	resMu        sync.Mutex
	reservations map[string]*domain.Reservation // reservationID -> reservation
	byOrder      map[string][]string            // orderID -> reservationIDs

	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stocks:       make(map[int64]*productStock),
		reservations: make(map[string]*domain.Reservation),
		byOrder:      make(map[string][]string),
		now:          time.Now,
	}
}

func (s *MemoryStore) product(productID int64) (*productStock, bool) {
	s.stocksMu.RLock()
	defer s.stocksMu.RUnlock()
	p, ok := s.stocks[productID]
	return p, ok
}

func (s *MemoryStore) GetStock(_ context.Context, productIDs []int64) ([]domain.StockInfo, error) {
	result := make([]domain.StockInfo, 0, len(productIDs))
	for _, id := range productIDs {
		p, ok := s.product(id)
		if !ok {
			continue
		}
		p.mu.Lock()
		result = append(result, domain.StockInfo{ProductID: id, Total: p.total, Reserved: p.reserved})
		p.mu.Unlock()
	}
	return result, nil
}

func (s *MemoryStore) Reserve(_ context.Context, orderID string, productID int64, quantity int32) (*domain.Reservation, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	p, ok := s.product(productID)
	if !ok {
		return nil, ErrProductNotFound
	}

	p.mu.Lock()
	if p.total-p.reserved < quantity {
		p.mu.Unlock()
		return nil, ErrInsufficientStock
	}
	p.reserved += quantity
	p.mu.Unlock()

	now := s.now()
	reservation := &domain.Reservation{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		ProductID: productID,
		Quantity:  quantity,
		Status:    domain.ReservationReserved,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.resMu.Lock()
	s.reservations[reservation.ID] = reservation
	s.byOrder[orderID] = append(s.byOrder[orderID], reservation.ID)
	s.resMu.Unlock()

	cp := *reservation
	return &cp, nil
}

// flip moves a reserved reservation to status and reports whether the caller
// won the flip and must adjust stock.
func (s *MemoryStore) flip(reservationID string, status domain.ReservationStatus) (*domain.Reservation, bool, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()

	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, false, ErrReservationNotFound
	}
	if r.Status != domain.ReservationReserved {
		cp := *r
		return &cp, false, nil
	}
	r.Status = status
	r.UpdatedAt = s.now()
	cp := *r
	return &cp, true, nil
}

func (s *MemoryStore) Release(_ context.Context, reservationID string) error {
	r, won, err := s.flip(reservationID, domain.ReservationReleased)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil
		}
		return err
	}
	if !won {
		if r.Status == domain.ReservationCommitted {
			return ErrReservationCommitted
		}
		return nil
	}

	p, _ := s.product(r.ProductID)
	p.mu.Lock()
	p.reserved -= r.Quantity
	p.mu.Unlock()
	return nil
}

func (s *MemoryStore) Commit(_ context.Context, reservationID string) error {
	r, won, err := s.flip(reservationID, domain.ReservationCommitted)
	if err != nil {
		return err
	}
	if !won {
		if r.Status == domain.ReservationReleased {
			return ErrReservationReleased
		}
		return nil
	}

	// reserved already holds the quantity
	p, _ := s.product(r.ProductID)
	p.mu.Lock()
	p.total -= r.Quantity
	p.reserved -= r.Quantity
	p.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReservationsForOrder(_ context.Context, orderID string) ([]*domain.Reservation, error) {
	s.resMu.Lock()
	defer s.resMu.Unlock()

	ids := s.byOrder[orderID]
	result := make([]*domain.Reservation, 0, len(ids))
	for _, id := range ids {
		cp := *s.reservations[id]
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ProductID < result[j].ProductID })
	return result, nil
}

// SetStock replaces the total of a product. Outstanding reservations keep
// their hold.
func (s *MemoryStore) SetStock(_ context.Context, productID int64, quantity int32) error {
	if quantity < 0 {
		return ErrInvalidQuantity
	}
	s.stocksMu.Lock()
	p, ok := s.stocks[productID]
	if !ok {
		p = &productStock{}
		s.stocks[productID] = p
	}
	s.stocksMu.Unlock()

	p.mu.Lock()
	p.total = quantity
	p.mu.Unlock()
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
