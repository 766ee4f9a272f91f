// Package catalog maps catalog positions to items and resolves free-text queries to positions.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hyperjump/eiga/internal/models"
)

var (
	// ErrNoMatch is returned by Find when no title contains the query.
	ErrNoMatch = errors.New("no matching title")
	// ErrOutOfRange is returned for an index outside [0, Len()).
	ErrOutOfRange = errors.New("index out of range")
)

// Catalog is an ordered, immutable sequence of items. Position i corresponds to
// row and column i of the similarity matrix built alongside it.
type Catalog struct {
	items  []models.Item
	folded []string
}

// New copies items into a catalog.
func New(items []models.Item) *Catalog {
	c := &Catalog{
		items:  slices.Clone(items),
		folded: make([]string, len(items)),
	}
	for i, it := range items {
		c.folded[i] = strings.ToLower(it.Title)
	}
	return c
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Item returns the item at index i.
func (c *Catalog) Item(i int) (models.Item, error) {
	if i < 0 || i >= len(c.items) {
		return models.Item{}, fmt.Errorf("%w: %d (size %d)", ErrOutOfRange, i, len(c.items))
	}
	return c.items[i], nil
}

// Title returns the title at index i. It panics when i is out of range.
func (c *Catalog) Title(i int) string {
	return c.items[i].Title
}

// Items returns a copy of all items in catalog order.
func (c *Catalog) Items() []models.Item {
	return slices.Clone(c.items)
}

// Titles returns all titles in catalog order.
func (c *Catalog) Titles() []string {
	out := make([]string, len(c.items))
	for i, it := range c.items {
		out[i] = it.Title
	}
	return out
}

// FindBySubstring returns the indices of every title containing q, compared
// case-insensitively and literally, in catalog order.
func (c *Catalog) FindBySubstring(q string) []int {
	needle := strings.ToLower(q)
	var out []int
	for i, title := range c.folded {
		if strings.Contains(title, needle) {
			out = append(out, i)
		}
	}
	return out
}

// Find is FindBySubstring that reports ErrNoMatch instead of an empty result.
func (c *Catalog) Find(q string) ([]int, error) {
	matches := c.FindBySubstring(q)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, q)
	}
	return matches, nil
}

// FindExact returns the first index whose title equals q case-insensitively.
func (c *Catalog) FindExact(q string) (int, bool) {
	needle := strings.ToLower(strings.TrimSpace(q))
	for i, title := range c.folded {
		if title == needle {
			return i, true
		}
	}
	return -1, false
}
