package model

import "time"

// LoanPeriod is the fixed interval between checkout and due date.
const LoanPeriod = 14 * 24 * time.Hour

// Transaction records one loan of a book to a user. ReturnedAt is nil while the loan is open.
type Transaction struct {
	ID         int64      `json:"id"`
	BookID     int64      `json:"book_id"`
	UserID     int64      `json:"user_id"`
	CheckoutAt time.Time  `json:"checkout_date"`
	DueAt      time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"return_date"`
}

func (t Transaction) Open() bool {
	return t.ReturnedAt == nil
}

type TransactionFilter struct {
	BookID int64
	UserID int64
	Page   Page
}

type TransactionList struct {
	Items []Transaction `json:"items"`
}
