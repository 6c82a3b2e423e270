package inventory

import "time"

// OrderStatus tracks an order after payment.
type OrderStatus string

const (
	OrderCompleted OrderStatus = "completed"
	OrderRefunded  OrderStatus = "refunded"
)

// Order records the purchase of one or more boxes of the same kind.
type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	BoxID     string      `json:"box_id"`
	Quantity  int         `json:"quantity"`
	UnitPrice int64       `json:"unit_price"`
	Total     int64       `json:"total"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// BoxStatus is the warehouse state of a purchased box.
type BoxStatus string

const (
	BoxUnopened BoxStatus = "unopened"
	BoxOpened   BoxStatus = "opened"
)

// UserBox is a purchased box sitting in a user's warehouse.
type UserBox struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	BoxID       string    `json:"box_id"`
	OrderID     string    `json:"order_id"`
	Status      BoxStatus `json:"status"`
	ItemID      string    `json:"item_id,omitempty"`
	PurchasedAt time.Time `json:"purchased_at"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
}

// CollectionEntry counts how many of an item a user has drawn.
type CollectionEntry struct {
	ItemID string `json:"item_id"`
	Count  int    `json:"count"`
}

// PurchaseParams describes an atomic purchase. The unit price is read from
// the locked box row, not supplied by the caller.
type PurchaseParams struct {
	UserID   string
	BoxID    string
	Quantity int
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID string
	BoxID  string
}

// Stats summarises store activity for the back office.
type Stats struct {
	Users       int   `json:"users"`
	Orders      int   `json:"orders"`
	Revenue     int64 `json:"revenue"`
	BoxesSold   int   `json:"boxes_sold"`
	BoxesOpened int   `json:"boxes_opened"`
}
