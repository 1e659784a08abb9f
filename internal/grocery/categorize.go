package grocery

import (
	"strings"

	"github.com/dukerupert/shoplist/internal/model"
)

// Categorize guesses the category of an item from its name.
// It performs case-insensitive matching: exact match first, then substring match.
// Falls back to CategoryUndefined if nothing matches.
func Categorize(itemName string) model.CategoryName {
	name := strings.ToLower(strings.TrimSpace(itemName))
	if name == "" {
		return model.CategoryUndefined
	}

	if cat, ok := exactMatch[name]; ok {
		return cat
	}

	// ordered longer/more-specific first
	for _, entry := range substringMatches {
		if strings.Contains(name, entry.keyword) {
			return entry.category
		}
	}

	return model.CategoryUndefined
}

var exactMatch = map[string]model.CategoryName{
	"apple":      model.CategoryFruitAndVeggies,
	"apples":     model.CategoryFruitAndVeggies,
	"banana":     model.CategoryFruitAndVeggies,
	"bananas":    model.CategoryFruitAndVeggies,
	"orange":     model.CategoryFruitAndVeggies,
	"oranges":    model.CategoryFruitAndVeggies,
	"lemon":      model.CategoryFruitAndVeggies,
	"tomato":     model.CategoryFruitAndVeggies,
	"tomatoes":   model.CategoryFruitAndVeggies,
	"potato":     model.CategoryFruitAndVeggies,
	"potatoes":   model.CategoryFruitAndVeggies,
	"onion":      model.CategoryFruitAndVeggies,
	"onions":     model.CategoryFruitAndVeggies,
	"garlic":     model.CategoryFruitAndVeggies,
	"cucumber":   model.CategoryFruitAndVeggies,
	"carrots":    model.CategoryFruitAndVeggies,
	"peppers":    model.CategoryFruitAndVeggies,
	"lettuce":    model.CategoryFruitAndVeggies,
	"grapes":     model.CategoryFruitAndVeggies,
	"pears":      model.CategoryFruitAndVeggies,
	"watermelon": model.CategoryFruitAndVeggies,

	"chicken": model.CategoryMeat,
	"beef":    model.CategoryMeat,
	"pork":    model.CategoryMeat,
	"ham":     model.CategoryMeat,
	"bacon":   model.CategoryMeat,
	"salami":  model.CategoryMeat,
	"steak":   model.CategoryMeat,
	"mince":   model.CategoryMeat,
	"turkey":  model.CategoryMeat,
	"fish":    model.CategoryMeat,

	"milk":       model.CategoryCheeseAndMilk,
	"cheese":     model.CategoryCheeseAndMilk,
	"butter":     model.CategoryCheeseAndMilk,
	"yogurt":     model.CategoryCheeseAndMilk,
	"yoghurt":    model.CategoryCheeseAndMilk,
	"cream":      model.CategoryCheeseAndMilk,
	"eggs":       model.CategoryCheeseAndMilk,
	"feta":       model.CategoryCheeseAndMilk,
	"mozzarella": model.CategoryCheeseAndMilk,

	"bread":     model.CategoryBreadsAndSnacks,
	"rolls":     model.CategoryBreadsAndSnacks,
	"bagels":    model.CategoryBreadsAndSnacks,
	"croissant": model.CategoryBreadsAndSnacks,
	"chips":     model.CategoryBreadsAndSnacks,
	"crackers":  model.CategoryBreadsAndSnacks,
	"cookies":   model.CategoryBreadsAndSnacks,
	"chocolate": model.CategoryBreadsAndSnacks,
	"nuts":      model.CategoryBreadsAndSnacks,

	"toilet paper": model.CategoryHousehold,
	"paper towels": model.CategoryHousehold,
	"detergent":    model.CategoryHousehold,
	"sponges":      model.CategoryHousehold,
	"trash bags":   model.CategoryHousehold,
	"batteries":    model.CategoryHousehold,
	"soap":         model.CategoryHousehold,
	"shampoo":      model.CategoryHousehold,

	"water":  model.CategoryDrinks,
	"juice":  model.CategoryDrinks,
	"beer":   model.CategoryDrinks,
	"wine":   model.CategoryDrinks,
	"coffee": model.CategoryDrinks,
	"tea":    model.CategoryDrinks,
	"soda":   model.CategoryDrinks,
	"cola":   model.CategoryDrinks,
}

type substringEntry struct {
	keyword  string
	category model.CategoryName
}

var substringMatches = []substringEntry{
	{"dish soap", model.CategoryHousehold},
	{"toilet paper", model.CategoryHousehold},
	{"cleaner", model.CategoryHousehold},
	{"detergent", model.CategoryHousehold},
	{"chocolate milk", model.CategoryDrinks},
	{"sparkling water", model.CategoryDrinks},
	{"orange juice", model.CategoryDrinks},
	{"ice tea", model.CategoryDrinks},
	{"chicken", model.CategoryMeat},
	{"sausage", model.CategoryMeat},
	{"salmon", model.CategoryMeat},
	{"beef", model.CategoryMeat},
	{"pork", model.CategoryMeat},
	{"cheese", model.CategoryCheeseAndMilk},
	{"yogurt", model.CategoryCheeseAndMilk},
	{"milk", model.CategoryCheeseAndMilk},
	{"bread", model.CategoryBreadsAndSnacks},
	{"biscuit", model.CategoryBreadsAndSnacks},
	{"chips", model.CategoryBreadsAndSnacks},
	{"juice", model.CategoryDrinks},
	{"water", model.CategoryDrinks},
	{"beer", model.CategoryDrinks},
	{"wine", model.CategoryDrinks},
	{"salad", model.CategoryFruitAndVeggies},
	{"berries", model.CategoryFruitAndVeggies},
	{"apple", model.CategoryFruitAndVeggies},
	{"tomato", model.CategoryFruitAndVeggies},
}
