package model

import "time"

type BookStatus string

const (
	BookAvailable BookStatus = "AVAILABLE"
	BookBorrowed  BookStatus = "BORROWED"
)

type Book struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Author          string     `json:"author"`
	ISBN            string     `json:"isbn"`
	PublicationYear int        `json:"publication_year"`
	Status          BookStatus `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// BookField selects the column used by catalog searches.
type BookField string

const (
	BookFieldTitle  BookField = "title"
	BookFieldAuthor BookField = "author"
)

type BookQuery struct {
	Field  BookField
	Term   string
	Status BookStatus
	Page   Page
}

type BookList struct {
	Items []Book `json:"items"`
}
