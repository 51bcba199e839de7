package domain

// EventStatus is the lifecycle status of an event
type EventStatus string

const (
	EventStatusActive    EventStatus = "active"
	EventStatusCancelled EventStatus = "cancelled"
)

// Event is a ticketed event owned by its creator
type Event struct {
	ID          string      `json:"id"`
	OwnerID     string      `json:"owner_id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Price       float64     `json:"price"` // major currency units
	Status      EventStatus `json:"status"`
}

// IsCancelled reports whether the event has been cancelled
func (e *Event) IsCancelled() bool {
	return e.Status == EventStatusCancelled
}
