package domain

import "time"

// ReservationStatus represents the state of a stock reservation
type ReservationStatus string

const (
	ReservationReserved  ReservationStatus = "reserved"
	ReservationCommitted ReservationStatus = "committed"
	ReservationReleased  ReservationStatus = "released"
)

// Reservation is stock provisionally held for one product of a pending order.
type Reservation struct {
	ID        string
	OrderID   string
	ProductID int64
	Quantity  int32
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Reservation) Active() bool {
	return r.Status == ReservationReserved
}

// StockInfo contains stock information for a product
type StockInfo struct {
	ProductID int64
	Total     int32 // Total stock in inventory
	Reserved  int32 // Held by pending orders
}

// Available returns the available stock (total - reserved)
func (s StockInfo) Available() int32 {
	return s.Total - s.Reserved
}
