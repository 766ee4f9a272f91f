// Package models holds the data types shared by the catalog, registry, and HTTP layers.
package models

import "time"

// Item is one catalog entry. ID is carried through from the training table and is not
// required to be unique; the item's position in the catalog is its key.
type Item struct {
	ID    string `json:"item_id" msgpack:"id"`
	Title string `json:"title" msgpack:"title"`
}

// BundleMetadata describes how and when a bundle was fitted.
type BundleMetadata struct {
	FittedAt       time.Time `json:"fitted_at" msgpack:"fitted_at"`
	NumItems       int       `json:"num_items" msgpack:"num_items"`
	VocabularySize int       `json:"vocabulary_size" msgpack:"vocabulary_size"`
	MaxFeatures    int       `json:"max_features" msgpack:"max_features"`
	Source         string    `json:"source,omitempty" msgpack:"source"`
}
