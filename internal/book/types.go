// Package book defines the core types shared across the harvesting subsystems.
package book

import (
	"strconv"
	"time"
)

// Columns is the fixed, ordered CSV schema for persisted records.
var Columns = []string{
	"book_id",
	"title",
	"author",
	"rating",
	"ratings_count",
	"reviews_count",
	"description",
	"genres",
	"pages",
	"format",
	"publication_date",
	"literary_awards",
	"original_title",
	"series",
	"setting",
	"characters",
	"isbn",
	"language",
}

// UnknownAuthor is written when the primary contributor cannot be resolved.
const UnknownAuthor = "Unknown"

// Record is the flat, denormalized row persisted for each resolved book.
type Record struct {
	BookID          int64   `json:"book_id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	Rating          float64 `json:"rating"`
	RatingsCount    int64   `json:"ratings_count"`
	ReviewsCount    int64   `json:"reviews_count"`
	Description     string  `json:"description"`
	Genres          string  `json:"genres"`
	Pages           int64   `json:"pages"`
	Format          string  `json:"format"`
	PublicationDate string  `json:"publication_date"`
	LiteraryAwards  string  `json:"literary_awards"`
	OriginalTitle   string  `json:"original_title"`
	Series          string  `json:"series"`
	Setting         string  `json:"setting"`
	Characters      string  `json:"characters"`
	ISBN            string  `json:"isbn"`
	Language        string  `json:"language"`
}

// Row renders the record in Columns order.
func (r Record) Row() []string {
	return []string{
		strconv.FormatInt(r.BookID, 10),
		r.Title,
		r.Author,
		strconv.FormatFloat(r.Rating, 'f', -1, 64),
		strconv.FormatInt(r.RatingsCount, 10),
		strconv.FormatInt(r.ReviewsCount, 10),
		r.Description,
		r.Genres,
		strconv.FormatInt(r.Pages, 10),
		r.Format,
		r.PublicationDate,
		r.LiteraryAwards,
		r.OriginalTitle,
		r.Series,
		r.Setting,
		r.Characters,
		r.ISBN,
		r.Language,
	}
}

// Document is the raw page returned by a Fetcher.
type Document struct {
	BookID     int64
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	UserAgent  string
}

// Outcome is what a worker reports for one identifier. A nil Err means Record is valid.
type Outcome struct {
	BookID int64
	Record Record
	Err    error
}

// OK reports whether the outcome carries a resolved record.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// QueueItem travels from the orchestrator to the writer.
type QueueItem struct {
	Record   Record
	Shutdown bool
}

// RecordItem wraps a record for the writer queue.
func RecordItem(r Record) QueueItem {
	return QueueItem{Record: r}
}

// ShutdownItem is the sentinel that stops the writer.
func ShutdownItem() QueueItem {
	return QueueItem{Shutdown: true}
}
