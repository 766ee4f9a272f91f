// Package e2e provides end-to-end tests over a small movie catalog with known neighbours.
package e2e

import (
	"fmt"

	"github.com/hyperjump/eiga/internal/models"
)

// QueryTestCase is a query and the titles that must appear in its top_k recommendations.
type QueryTestCase struct {
	Query    string
	TopK     int
	Expected []string
	// NoMatch marks queries that resolve to no catalog item.
	NoMatch     bool
	Description string
}

// Corpus holds catalog titles and query test cases.
type Corpus struct {
	Titles    []string
	TestCases []QueryTestCase
}

// catalogTitles are MovieLens style titles grouped so each franchise shares rare terms.
var catalogTitles = []string{
	"Toy Story (1995)",
	"GoldenEye (1995)",
	"Heat (1995)",
	"Sabrina (1995)",
	"Casino (1995)",
	"Babe (1995)",
	"Braveheart (1995)",
	"Fargo (1996)",
	"Toy Story 2 (1999)",
	"Star Wars (1977)",
	"Empire Strikes Back, The (1980)",
	"Return of the Jedi (1983)",
	"Star Trek: The Motion Picture (1979)",
	"Star Trek: First Contact (1996)",
	"Godfather, The (1972)",
	"Godfather: Part II, The (1974)",
	"Die Hard (1988)",
	"Die Hard 2 (1990)",
	"Die Hard: With a Vengeance (1995)",
	"Alien (1979)",
	"Aliens (1986)",
	"Alien 3 (1992)",
	"Alien: Resurrection (1997)",
	"Batman (1989)",
	"Batman Returns (1992)",
	"Batman Forever (1995)",
	"Batman & Robin (1997)",
	"Free Willy (1993)",
	"Free Willy 2: The Adventure Home (1995)",
	"Free Willy 3: The Rescue (1997)",
	"Jurassic Park (1993)",
	"Lost World: Jurassic Park, The (1997)",
	"Home Alone (1990)",
	"Home Alone 3 (1997)",
	"Three Colors: Red (1994)",
	"Three Colors: Blue (1993)",
	"Three Colors: White (1994)",
	"Philadelphia Story, The (1940)",
	"Fantasia (1940)",
	"Cité des enfants perdus, La (1995)",
}

var queryCases = []QueryTestCase{
	{Query: "Toy Story", TopK: 1, Expected: []string{"Toy Story 2 (1999)"}, Description: "sequel with identical terms ranks first"},
	{Query: "Three Colors: Red", TopK: 2, Expected: []string{"Three Colors: Blue (1993)", "Three Colors: White (1994)"}, Description: "trilogy"},
	{Query: "Batman Returns", TopK: 3, Expected: []string{"Batman (1989)", "Batman Forever (1995)", "Batman & Robin (1997)"}, Description: "franchise"},
	{Query: "Free Willy 2", TopK: 2, Expected: []string{"Free Willy (1993)", "Free Willy 3: The Rescue (1997)"}, Description: "two shared terms beat one"},
	{Query: "Godfather", TopK: 1, Expected: []string{"Godfather: Part II, The (1974)"}, Description: "first match then neighbour"},
	{Query: "JURASSIC park", TopK: 1, Expected: []string{"Lost World: Jurassic Park, The (1997)"}, Description: "case-insensitive match"},
	{Query: "star trek", TopK: 1, Expected: []string{"Star Trek: First Contact (1996)"}, Description: "two shared terms beat star alone"},
	{Query: "cité des", TopK: 1, Expected: []string{}, Description: "non-ascii title matches"},
	{Query: "Nonexistent Film XYZ", TopK: 5, NoMatch: true, Description: "unknown title yields nothing"},
}

// BuildCorpus returns the catalog and its query cases.
func BuildCorpus() *Corpus {
	return &Corpus{
		Titles:    append([]string(nil), catalogTitles...),
		TestCases: append([]QueryTestCase(nil), queryCases...),
	}
}

// Items converts the catalog to items with ids "1".."N".
func (c *Corpus) Items() []models.Item {
	out := make([]models.Item, len(c.Titles))
	for i, title := range c.Titles {
		out[i] = models.Item{ID: fmt.Sprint(i + 1), Title: title}
	}
	return out
}
