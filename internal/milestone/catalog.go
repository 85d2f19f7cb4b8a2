package milestone

// Milestone is a fixed elapsed-time threshold.
type Milestone struct {
	ID    string `json:"id"`
	Days  int    `json:"days"`
	Title string `json:"title"`
}

// Catalog is an ordered set of milestones, ascending by Days.
type Catalog []Milestone

// DefaultCatalog is the built-in milestone ladder.
var DefaultCatalog = Catalog{
	{ID: "day1", Days: 1, Title: "24 Hours"},
	{ID: "week1", Days: 7, Title: "1 Week"},
	{ID: "month1", Days: 30, Title: "1 Month"},
	{ID: "month3", Days: 90, Title: "3 Months"},
	{ID: "month6", Days: 180, Title: "6 Months"},
	{ID: "year1", Days: 365, Title: "1 Year"},
	{ID: "year2", Days: 730, Title: "2 Years"},
	{ID: "year5", Days: 1825, Title: "5 Years"},
}

// Find looks up a milestone by ID.
func (c Catalog) Find(id string) (Milestone, bool) {
	for _, m := range c {
		if m.ID == id {
			return m, true
		}
	}
	return Milestone{}, false
}

// Earned returns the milestones reached after days, in catalog order.
func (c Catalog) Earned(days int) []Milestone {
	earned := []Milestone{}
	for _, m := range c {
		if m.Days <= days {
			earned = append(earned, m)
		}
	}
	return earned
}

// Next returns the first milestone not yet reached, or false when all are earned.
func (c Catalog) Next(days int) (Milestone, bool) {
	for _, m := range c {
		if m.Days > days {
			return m, true
		}
	}
	return Milestone{}, false
}
