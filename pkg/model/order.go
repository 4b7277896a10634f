package model

import (
	"fmt"
	"strings"
)

// OrderLine is one resolved menu item with its quantity and unit price.
type OrderLine struct {
	Item     string
	Quantity int
	Price    float64
}

// Order is a room-service order extracted from a guest message.
type Order struct {
	Email  string
	Name   string
	RoomNo string
	Lines  []OrderLine
}

// Total computes the order amount from the line quantities and current prices.
func (x *Order) Total() float64 {
	total := 0.0
	for _, line := range x.Lines {
		total += line.Price * float64(line.Quantity)
	}
	return total
}

// Summary renders the lines as "2 Coffee, Sandwich" for the order sheet row
// and the guest confirmation.
func (x *Order) Summary() string {
	parts := make([]string, 0, len(x.Lines))
	for _, line := range x.Lines {
		if line.Quantity > 1 {
			parts = append(parts, fmt.Sprintf("%d %s", line.Quantity, line.Item))
		} else {
			parts = append(parts, line.Item)
		}
	}
	return strings.Join(parts, ", ")
}
