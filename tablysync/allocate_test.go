package tablysync

import (
	"testing"
)

func testMappings() ConfigMappings {
	return ConfigMappings{
		SalesCategories: map[string]string{
			"cat-food":   "Food",
			"cat-beer":   "Beer",
			"cat-wine":   "Wine",
			"cat-liquor": "Liquor",
			"cat-na":     "Non-Alcoholic",
			"cat-merch":  "Merchandise",
		},
		DiningServices: map[string]string{
			"svc-brunch": "Breakfast",
		},
		RevenueCenters: map[string]RevenueCenterInfo{
			"rc-patio": {Name: "Patio", Outdoor: true},
		},
	}
}

func TestCategoryForSelection(t *testing.T) {
	maps := testMappings()

	cases := []struct {
		name       string
		sel        Selection
		want       SalesCategory
		wantMapped bool
	}{
		{"food", Selection{SalesCategory: &EntityRef{GUID: "cat-food"}}, CategoryFood, true},
		{"beer", Selection{SalesCategory: &EntityRef{GUID: "cat-beer"}}, CategoryBeer, true},
		{"wine", Selection{SalesCategory: &EntityRef{GUID: "cat-wine"}}, CategoryWine, true},
		{"liquor", Selection{SalesCategory: &EntityRef{GUID: "cat-liquor"}}, CategoryLiquor, true},
		{"non-alcoholic", Selection{SalesCategory: &EntityRef{GUID: "cat-na"}}, CategoryNonAlcoholic, true},
		{"nil reference", Selection{}, CategoryUncategorized, false},
		{"empty guid", Selection{SalesCategory: &EntityRef{}}, CategoryUncategorized, false},
		{"unknown guid", Selection{SalesCategory: &EntityRef{GUID: "cat-mystery"}}, CategoryUncategorized, false},
		{"mapped to unknown bucket", Selection{SalesCategory: &EntityRef{GUID: "cat-merch"}}, CategoryUncategorized, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, mapped := categoryForSelection(&c.sel, maps)
			if got != c.want || mapped != c.wantMapped {
				t.Errorf("= (%s, %v), want (%s, %v)", got, mapped, c.want, c.wantMapped)
			}
		})
	}
}

func TestDaypartForOrderMappingWins(t *testing.T) {
	maps := testMappings()
	o := &Order{
		DiningService: &EntityRef{GUID: "svc-brunch"},
		OpenedDate:    "2024-01-15T19:00:00Z", // dinner window, must be ignored
	}
	if got := daypartForOrder(o, maps); got != DaypartBreakfast {
		t.Errorf("daypart = %s, want breakfast from mapping", got)
	}
}

func TestDaypartForOrderFallsBackToOpenedTime(t *testing.T) {
	maps := testMappings()
	o := &Order{
		DiningService: &EntityRef{GUID: "svc-unknown"},
		OpenedDate:    "2024-01-15T12:30:00Z",
	}
	if got := daypartForOrder(o, maps); got != DaypartLunch {
		t.Errorf("daypart = %s, want lunch fallback", got)
	}
}

func TestDaypartForOpenedTimeWindows(t *testing.T) {
	cases := []struct {
		opened string
		want   string
	}{
		{"2024-01-15T05:00:00Z", DaypartBreakfast},
		{"2024-01-15T10:59:00Z", DaypartBreakfast},
		{"2024-01-15T11:00:00Z", DaypartLunch},
		{"2024-01-15T15:59:00Z", DaypartLunch},
		{"2024-01-15T16:00:00Z", DaypartDinner},
		{"2024-01-15T21:59:00Z", DaypartDinner},
		{"2024-01-15T22:00:00Z", DaypartLateNight},
		{"2024-01-15T03:00:00Z", DaypartLateNight},
		{"2024-01-15T04:59:00Z", DaypartLateNight},
		{"not-a-timestamp", DaypartLateNight},
		{"", DaypartLateNight},
	}
	for _, c := range cases {
		if got := daypartForOpenedTime(c.opened); got != c.want {
			t.Errorf("daypartForOpenedTime(%q) = %s, want %s", c.opened, got, c.want)
		}
	}
}
