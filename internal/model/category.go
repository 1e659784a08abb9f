package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CategoryName is the closed set of product categories a market can hold.
type CategoryName int

const (
	CategoryUndefined CategoryName = iota
	CategoryFruitAndVeggies
	CategoryMeat
	CategoryCheeseAndMilk
	CategoryBreadsAndSnacks
	CategoryHousehold
	CategoryDrinks
)

var categoryNames = [...]string{
	CategoryUndefined:       "Undefined Category",
	CategoryFruitAndVeggies: "Fruit and Veggies",
	CategoryMeat:            "Meat",
	CategoryCheeseAndMilk:   "Cheese and Milk",
	CategoryBreadsAndSnacks: "Breads and Snacks",
	CategoryHousehold:       "Household objects",
	CategoryDrinks:          "Drinks",
}

// CategoryNames lists every category in display order.
func CategoryNames() []CategoryName {
	out := make([]CategoryName, len(categoryNames))
	for i := range categoryNames {
		out[i] = CategoryName(i)
	}
	return out
}

func (c CategoryName) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("CategoryName(%d)", int(c))
	}
	return categoryNames[c]
}

// Valid reports whether c is one of the enumerated categories.
func (c CategoryName) Valid() bool {
	return c >= 0 && int(c) < len(categoryNames)
}

// ParseCategoryName maps a display string back to its category. Matching ignores
// case and surrounding space.
func ParseCategoryName(s string) (CategoryName, error) {
	s = strings.TrimSpace(s)
	for i, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return CategoryName(i), nil
		}
	}
	return CategoryUndefined, fmt.Errorf("unknown category %q", s)
}

func (c CategoryName) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *CategoryName) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCategoryName(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Category groups items of one kind inside one market.
type Category struct {
	ID       int64        `json:"id"`
	Name     CategoryName `json:"name"`
	MarketID int64        `json:"marketId"`
}
