package main

import (
	"bytes"
	"encoding/json"

	"github.com/marcus/shelf/internal/models"
)

func parseSeed(data []byte) ([]models.Book, error) {
	data = bytes.TrimSpace(data)
	var books []models.Book
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &books); err != nil {
			return nil, err
		}
		return books, nil
	}

	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	books = make([]models.Book, 0, len(f.Books))
	for _, raw := range f.Books {
		var b models.Book
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, nil
}
