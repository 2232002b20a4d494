package models

// OrderFilter narrows ListOrders. Zero values mean no constraint; Limit of 0
// falls back to the store default.
type OrderFilter struct {
	Ticker   string `schema:"ticker"`
	Nickname string `schema:"nickname"`
	Limit    int    `schema:"limit"`
	Offset   int    `schema:"offset"`
}

type OrderStore interface {
	Ping() error
	SaveOrder(order *Order) error
	UpdateOrder(order *Order) error
	ListOrders(filter OrderFilter) ([]*Order, error)
	SaveSnapshot(snapshot *AccountSnapshot) error
	ListSnapshots(name string, limit int) ([]*AccountSnapshot, error)
}
