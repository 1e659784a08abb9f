package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Item struct {
	ID            int64  `json:"id"`
	IsBought      bool   `json:"isBought"`
	Name          string `json:"name"`
	Quantity      int64  `json:"quantity"`
	Unit          string `json:"unit"`
	Price         int64  `json:"price"`
	IsBeingEdited bool   `json:"isBeingEdited"`
	CategoryID    int64  `json:"categoryId"`
}

// ItemDetail is an item joined with the names of its grouping nodes.
type ItemDetail struct {
	Item
	MarketID int64        `json:"marketId"`
	Market   string       `json:"market"`
	Category CategoryName `json:"category"`
}

// Initial returns the upper-cased first letter of s, or "" for blank input.
func Initial(s string) string {
	s = strings.TrimSpace(s)
	r, _ := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}
