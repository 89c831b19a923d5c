package models

import "time"

// Book is a catalogued book. Its ID is the reference stored in the search
// index.
type Book struct {
	ID        uint32    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	Published int       `json:"published,omitempty"` // year, 0 if unknown
	ISBN      string    `json:"isbn,omitempty"`
	AddedAt   time.Time `json:"added_at"`
}

// Hit is a book matched by a fuzzy query
type Hit struct {
	Book      *Book  `json:"book"`
	Distance  int    `json:"distance"`
	MatchedOn string `json:"matched_on"` // identifier that matched
	Kind      string `json:"kind"`       // "title" or "author"
}

// QueryResult holds the outcome of one query in a batch
type QueryResult struct {
	Query     string `json:"query"`
	Tolerance int    `json:"tolerance"`
	Hits      []*Hit `json:"hits"`
	Err       error  `json:"-"`
	Error     string `json:"error,omitempty"`
}

// RebuildRecord describes one rebuild of the index from the catalog
type RebuildRecord struct {
	Reason    string    `json:"reason"`
	Books     int       `json:"books"`
	Nodes     int       `json:"nodes"`
	RebuiltAt time.Time `json:"rebuilt_at"`
}
