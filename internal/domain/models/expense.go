package models

import "time"

// Expense is a cost recorded against a trip (fuel, tolls, ...).
type Expense struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ExpenseInput carries user-entered expense fields.
type ExpenseInput struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Note     string `json:"note"`
}
