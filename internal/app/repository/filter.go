package repository

import (
	"time"

	"gorm.io/gorm"
)

// Location is the three-state GPS filter.
type Location int

const (
	LocationAny Location = iota
	LocationGPS
	LocationNoGPS
)

// ParseLocation maps "gps" and "no-gps"; anything else leaves the filter unconstrained.
func ParseLocation(raw string) Location {
	switch raw {
	case "gps":
		return LocationGPS
	case "no-gps":
		return LocationNoGPS
	default:
		return LocationAny
	}
}

func (l Location) String() string {
	switch l {
	case LocationGPS:
		return "gps"
	case LocationNoGPS:
		return "no-gps"
	default:
		return "any"
	}
}

// Predicate is one WHERE clause with its bound parameters.
type Predicate struct {
	Expr string
	Args []any
}

// ClickFilter narrows the admin click listing. Since is inclusive, Before exclusive.
type ClickFilter struct {
	Since    *time.Time
	Before   *time.Time
	Location Location
}

// Predicates returns one clause per active filter. Clauses are ANDed together.
func (f ClickFilter) Predicates() []Predicate {
	var preds []Predicate
	if f.Since != nil {
		preds = append(preds, Predicate{Expr: "clicked_at >= ?", Args: []any{f.Since.UTC()}})
	}
	if f.Before != nil {
		preds = append(preds, Predicate{Expr: "clicked_at < ?", Args: []any{f.Before.UTC()}})
	}
	switch f.Location {
	case LocationGPS:
		preds = append(preds, Predicate{Expr: "latitude IS NOT NULL AND longitude IS NOT NULL"})
	case LocationNoGPS:
		preds = append(preds, Predicate{Expr: "(latitude IS NULL OR longitude IS NULL)"})
	}
	return preds
}

// Scope applies the filter to a gorm query.
func (f ClickFilter) Scope(db *gorm.DB) *gorm.DB {
	for _, p := range f.Predicates() {
		db = db.Where(p.Expr, p.Args...)
	}
	return db
}
