// Package resolver turns a book detail page into a flat book.Record by
// walking the Apollo cache embedded in the page.
package resolver

import (
	"errors"
	"fmt"

	"github.com/JakeFAU/bookharvest/internal/apollo"
	"github.com/JakeFAU/bookharvest/internal/book"
)

// Whole-record failures. Anything else missing from the page degrades to a default value.
var (
	ErrNoEmbeddedData   = errors.New("no embedded next data block")
	ErrMalformedPayload = errors.New("malformed next data payload")
	ErrNoBookNode       = errors.New("no primary book node")
)

const bookKeyPrefix = "Book:"

// Resolver implements book.Resolver. It is stateless and safe for concurrent use.
type Resolver struct{}

// New returns a Resolver.
func New() *Resolver {
	return &Resolver{}
}

// Resolve extracts the record for bookID from a raw detail page.
func (r *Resolver) Resolve(bookID int64, body []byte) (book.Record, error) {
	payload, err := extractNextData(body)
	if err != nil {
		return book.Record{}, err
	}
	store, err := apollo.FromNextData(payload)
	if err != nil {
		return book.Record{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return FromStore(bookID, store)
}

// FromStore builds the record from an already-parsed cache.
func FromStore(bookID int64, store *apollo.Store) (book.Record, error) {
	_, node, ok := store.First(bookKeyPrefix, func(n apollo.Node) bool {
		return n.String("title") != ""
	})
	if !ok {
		return book.Record{}, ErrNoBookNode
	}

	details := store.ResolveField(node, "details")
	work := store.ResolveField(node, "work")
	workDetails := store.ResolveField(work, "details")
	stats := store.ResolveField(work, "stats")

	rec := book.Record{
		BookID:         bookID,
		Title:          node.String("title"),
		Author:         resolveAuthor(store, node),
		Rating:         nonNegativeFloat(stats, "averageRating"),
		RatingsCount:   nonNegativeInt(stats, "ratingsCount"),
		ReviewsCount:   nonNegativeInt(stats, "textReviewsCount"),
		Description:    cleanHTML(node.String("description")),
		Genres:         joinNames(store, node.List("bookGenres"), "genre"),
		Pages:          nonNegativeInt(details, "numPages"),
		Format:         details.String("format"),
		LiteraryAwards: joinNames(store, workDetails.List("awardsWon"), ""),
		OriginalTitle:  workDetails.String("originalTitle"),
		Series:         resolveSeries(store, node),
		Setting:        joinNames(store, workDetails.List("places"), ""),
		Characters:     joinNames(store, workDetails.List("characters"), ""),
		ISBN:           resolveISBN(details),
		Language:       store.ResolveField(details, "language").String("name"),
	}
	if ts, ok := firstTimestamp(details, workDetails); ok {
		rec.PublicationDate = formatPublication(ts)
	}
	return rec, nil
}

func resolveAuthor(store *apollo.Store, node apollo.Node) string {
	edge := store.ResolveField(node, "primaryContributorEdge")
	contributor := store.ResolveField(edge, "node")
	if name := contributor.String("name"); name != "" {
		return name
	}
	return book.UnknownAuthor
}

func resolveSeries(store *apollo.Store, node apollo.Node) string {
	series := node.List("bookSeries")
	if len(series) == 0 {
		return ""
	}
	entry := store.Resolve(series[0])
	return store.ResolveField(entry, "series").String("title")
}

func resolveISBN(details apollo.Node) string {
	if isbn := details.String("isbn13"); isbn != "" {
		return isbn
	}
	return details.String("isbn")
}
