// Package resources holds the directory of Australian work health and
// safety legislation, regulators and professional bodies offered alongside
// the assistant.
package resources

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
)

//go:embed directory.json
var directoryJSON []byte

// Link is one entry of the directory.
type Link struct {
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Category groups related links, such as one jurisdiction's legislation.
type Category struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Links       []Link `json:"links"`
}

var loadDirectory = sync.OnceValues(func() ([]Category, error) {
	var categories []Category
	if err := json.Unmarshal(directoryJSON, &categories); err != nil {
		return nil, fmt.Errorf("parse resource directory: %w", err)
	}
	return categories, nil
})

// Directory returns every category in display order.
func Directory() ([]Category, error) {
	return loadDirectory()
}

// Filter returns the categories and links whose title, name or description
// contains query, ignoring case. A category whose title matches is returned
// whole. An empty query returns the input unchanged.
func Filter(categories []Category, query string) []Category {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return categories
	}

	var out []Category
	for _, c := range categories {
		if strings.Contains(strings.ToLower(c.Title), q) {
			out = append(out, c)
			continue
		}
		var links []Link
		for _, l := range c.Links {
			if strings.Contains(strings.ToLower(l.Name), q) || strings.Contains(strings.ToLower(l.Description), q) {
				links = append(links, l)
			}
		}
		if len(links) > 0 {
			out = append(out, Category{Title: c.Title, Description: c.Description, Links: links})
		}
	}
	return out
}
