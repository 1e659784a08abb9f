package model

// Market is a store the household shops at. It is the top grouping node of the list.
type Market struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Initial is the upper-cased first letter of the market name, shown as a badge.
func (m Market) Initial() string {
	return Initial(m.Name)
}
