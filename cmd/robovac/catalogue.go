package main

import (
	"github.com/nerrad567/gray-logic-robovac/internal/robovac"
)

// loadCatalogue returns the catalogue named by path, or the built-in one.
func loadCatalogue(path string) (*robovac.Catalogue, error) {
	if path == "" {
		return robovac.DefaultCatalogue(), nil
	}
	return robovac.LoadCatalogue(path)
}
