package tablysync

import (
	"strings"
	"time"
)

// SalesCategory is one of the fixed reporting buckets.
type SalesCategory string

const (
	CategoryFood          SalesCategory = "food"
	CategoryBeer          SalesCategory = "beer"
	CategoryWine          SalesCategory = "wine"
	CategoryLiquor        SalesCategory = "liquor"
	CategoryNonAlcoholic  SalesCategory = "non_alcoholic"
	CategoryUncategorized SalesCategory = "uncategorized"
)

const (
	DaypartBreakfast = "breakfast"
	DaypartLunch     = "lunch"
	DaypartDinner    = "dinner"
	DaypartLateNight = "late_night"
)

// categoryForSelection is total: every selection resolves to a bucket. Missing
// mapping entries and mapping values outside the known buckets both land in
// uncategorized so total sales still reconcile; the second return reports
// whether a real mapping was found.
func categoryForSelection(sel *Selection, maps ConfigMappings) (SalesCategory, bool) {
	if sel.SalesCategory == nil || sel.SalesCategory.GUID == "" {
		return CategoryUncategorized, false
	}
	name, ok := maps.SalesCategories[sel.SalesCategory.GUID]
	if !ok {
		return CategoryUncategorized, false
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "food":
		return CategoryFood, true
	case "beer":
		return CategoryBeer, true
	case "wine":
		return CategoryWine, true
	case "liquor":
		return CategoryLiquor, true
	case "non-alcoholic", "non alcoholic", "non_alcoholic", "na beverage", "nonalcoholic":
		return CategoryNonAlcoholic, true
	default:
		return CategoryUncategorized, false
	}
}

// daypartForOrder resolves the order's daypart once per order. The dining
// service mapping wins; without one the opening time buckets the order so no
// order is ever dropped for lack of a mapping.
func daypartForOrder(o *Order, maps ConfigMappings) string {
	if o.DiningService != nil && o.DiningService.GUID != "" {
		if name, ok := maps.DiningServices[o.DiningService.GUID]; ok {
			name = strings.ToLower(strings.TrimSpace(name))
			if name != "" {
				return name
			}
		}
	}
	return daypartForOpenedTime(o.OpenedDate)
}

// daypartForOpenedTime buckets an opening timestamp into the standard meal
// windows: breakfast 05:00-10:59, lunch 11:00-15:59, dinner 16:00-21:59,
// late night otherwise. Unparsable timestamps land in late night, which keeps
// the fallback deterministic for any input.
func daypartForOpenedTime(openedDate string) string {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(openedDate))
	if err != nil {
		return DaypartLateNight
	}
	switch h := t.Hour(); {
	case h >= 5 && h < 11:
		return DaypartBreakfast
	case h >= 11 && h < 16:
		return DaypartLunch
	case h >= 16 && h < 22:
		return DaypartDinner
	default:
		return DaypartLateNight
	}
}
