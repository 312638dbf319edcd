package domain

import "strings"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusAccepted  OrderStatus = "accepted"
	StatusCancelled OrderStatus = "cancelled"
)

// Only pending orders move; accepted and cancelled are terminal.
var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:   {StatusAccepted: true, StatusCancelled: true},
	StatusAccepted:  {},
	StatusCancelled: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// ParseTargetStatus accepts the statuses a seller may request.
func ParseTargetStatus(s string) (OrderStatus, error) {
	switch st := OrderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusAccepted, StatusCancelled:
		return st, nil
	default:
		return "", &ValidationError{Field: "status", Reason: "must be accepted or cancelled"}
	}
}

// StatusCounts is the number of orders per status for one seller.
type StatusCounts map[OrderStatus]int
