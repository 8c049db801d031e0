// Package catalog holds the products buyers can order.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrNotFound is returned when no product has the requested id.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrExists is returned by Add when the id is already taken.
	ErrExists = errors.New("catalog: product already exists")
	// ErrInvalidID is returned for ids outside [A-Z0-9-]{1,32}.
	ErrInvalidID = errors.New("catalog: invalid product id")
)

var idRe = regexp.MustCompile(`^[A-Z0-9-]{1,32}$`)

// Product is a catalog entry. Price is in minor currency units.
type Product struct {
	ID          string `json:"id" yaml:"id" db:"id"`
	Name        string `json:"name" yaml:"name" db:"name"`
	Price       int64  `json:"price" yaml:"price" db:"price"`
	MaxQuantity int    `json:"max_quantity" yaml:"max_quantity" db:"max_quantity"`
	PostID      int    `json:"post_id" yaml:"post_id" db:"post_id"`
}

// Store is the catalog contract used by the conversation engine.
type Store interface {
	Get(ctx context.Context, id string) (Product, error)
	// List returns every product ordered by id.
	List(ctx context.Context) ([]Product, error)
	Add(ctx context.Context, p Product) error
	// Update applies fn to the stored product and saves the result in place.
	Update(ctx context.Context, id string, fn func(*Product) error) (Product, error)
	Delete(ctx context.Context, id string) error
}

// NormalizeID trims and uppercases user input.
func NormalizeID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidateID reports ErrInvalidID for ids that would not survive the
// underscore-separated callback encoding.
func ValidateID(id string) error {
	if !idRe.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// Validate checks a complete product before it is stored.
func (p Product) Validate() error {
	if err := ValidateID(p.ID); err != nil {
		return err
	}
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("catalog: product %s: empty name", p.ID)
	case p.Price < 0:
		return fmt.Errorf("catalog: product %s: negative price", p.ID)
	case p.MaxQuantity < 0:
		return fmt.Errorf("catalog: product %s: negative max quantity", p.ID)
	case p.PostID < 0:
		return fmt.Errorf("catalog: product %s: negative post id", p.ID)
	}
	return nil
}

// Defaults is the reference catalog loaded into an empty memory store.
func Defaults() []Product {
	return []Product{
		{ID: "MF1", Name: "Daraxt", Price: 6000, MaxQuantity: 20, PostID: 454},
		{ID: "MF2", Name: "Daraxt", Price: 4000, MaxQuantity: 10, PostID: 455},
		{ID: "MF3", Name: "Daraxt", Price: 4000, MaxQuantity: 15, PostID: 456},
		{ID: "MF4", Name: "Daraxt", Price: 5000, MaxQuantity: 10, PostID: 457},
	}
}

// Seed adds products missing from store. Existing ids are left untouched
// and the number of inserted products is returned.
func Seed(ctx context.Context, store Store, products []Product) (int, error) {
	added := 0
	for _, p := range products {
		p.ID = NormalizeID(p.ID)
		if err := p.Validate(); err != nil {
			return added, err
		}
		err := store.Add(ctx, p)
		switch {
		case err == nil:
			added++
		case errors.Is(err, ErrExists):
		default:
			return added, fmt.Errorf("seed %s: %w", p.ID, err)
		}
	}
	return added, nil
}
