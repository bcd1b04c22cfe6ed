package domain

import "strings"

// Display names of the known expense categories.
const (
	CategoryFood          = "Food"
	CategoryLodging       = "Lodging"
	CategoryTransport     = "Transport"
	CategoryEntertainment = "Entertainment"
	CategoryGroceries     = "Groceries"
	CategoryTuition       = "Tuition"
	CategoryRent          = "Rent"
	CategoryUtilities     = "Utilities"
	CategoryHealth        = "Health"
	CategoryOther         = "Other"
)

var categoryAliases = map[string]string{
	"food": CategoryFood, "meal": CategoryFood, "meals": CategoryFood, "dining": CategoryFood, "restaurant": CategoryFood,

	"lodging": CategoryLodging, "hotel": CategoryLodging, "hostel": CategoryLodging,
	"accommodation": CategoryLodging, "stay": CategoryLodging,

	"transport": CategoryTransport, "transportation": CategoryTransport, "uber": CategoryTransport,
	"taxi": CategoryTransport, "bus": CategoryTransport, "train": CategoryTransport, "metro": CategoryTransport,
	"subway": CategoryTransport, "flight": CategoryTransport, "flights": CategoryTransport,
	"airfare": CategoryTransport, "ride": CategoryTransport,

	"entertainment": CategoryEntertainment, "movie": CategoryEntertainment, "movies": CategoryEntertainment,
	"cinema": CategoryEntertainment, "music": CategoryEntertainment, "game": CategoryEntertainment,
	"games": CategoryEntertainment, "concert": CategoryEntertainment,

	"groceries": CategoryGroceries, "grocery": CategoryGroceries, "supermarket": CategoryGroceries,

	"tuition": CategoryTuition, "school": CategoryTuition, "fees": CategoryTuition, "education": CategoryTuition,

	"rent": CategoryRent, "housing": CategoryRent, "apartment": CategoryRent, "dorm": CategoryRent,

	"utilities": CategoryUtilities, "utility": CategoryUtilities, "electric": CategoryUtilities,
	"electricity": CategoryUtilities, "water": CategoryUtilities, "internet": CategoryUtilities,
	"wifi": CategoryUtilities, "gas": CategoryUtilities,

	"health": CategoryHealth, "medical": CategoryHealth, "pharmacy": CategoryHealth,
	"medicine": CategoryHealth, "doctor": CategoryHealth,
}

// NormalizeCategory maps free-text category input onto a known category,
// falling back to CategoryOther.
func NormalizeCategory(raw string) string {
	if c, ok := categoryAliases[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return c
	}
	return CategoryOther
}
