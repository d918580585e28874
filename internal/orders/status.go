package orders

// Status is the order lifecycle state. The numeric values are persisted,
// so they must never be reordered.
type Status int

const (
	StatusPending   Status = 0
	StatusPaid      Status = 1
	StatusCancelled Status = 2
)

var validNext = map[Status]map[Status]bool{
	StatusPending:   {StatusPaid: true, StatusCancelled: true},
	StatusPaid:      {},
	StatusCancelled: {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func (s Status) Terminal() bool { return len(validNext[s]) == 0 }

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusPaid:
		return "PAID"
	case StatusCancelled:
		return "CANCELLED"
	}
	return "UNKNOWN"
}

// PaymentStatus marks how a payment record relates to its order.
type PaymentStatus int

const (
	// PaymentConfirmed is a payment that moved its order to Paid.
	PaymentConfirmed PaymentStatus = 1
	// PaymentConflict is a payment that arrived after the order was
	// cancelled. Kept for manual reconciliation, the order stays cancelled.
	PaymentConflict PaymentStatus = 2
)
