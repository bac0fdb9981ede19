package gallery

import (
	"fmt"
	"sort"
	"time"

	"fotos/internal/database"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// Week is a Monday to Sunday range.
type Week struct {
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// WeekGroup is one week of photos.
type WeekGroup struct {
	Week
	Photos []database.Photo `json:"photos"`
}

// WeekOf returns the week containing the calendar date of a photo
// timestamp. Unparseable dates yield the zero Week.
func WeekOf(date string) Week {
	if len(date) < 10 {
		return Week{}
	}
	day, err := time.Parse("2006-01-02", date[:10])
	if err != nil {
		return Week{}
	}

	// time.Sunday is 0; shift so Monday starts the week.
	offset := (int(day.Weekday()) + 6) % 7
	monday := day.AddDate(0, 0, -offset)
	sunday := monday.AddDate(0, 0, 6)

	return Week{
		Key:   monday.Format("2006-01-02") + "_" + sunday.Format("2006-01-02"),
		Label: weekLabel(monday, sunday),
		Start: monday,
		End:   sunday,
	}
}

func weekLabel(monday, sunday time.Time) string {
	if monday.Month() == sunday.Month() {
		return fmt.Sprintf("%d - %d %s %d", monday.Day(), sunday.Day(), monthNames[sunday.Month()-1], sunday.Year())
	}
	return fmt.Sprintf("%d %s - %d %s %d",
		monday.Day(), monthNames[monday.Month()-1],
		sunday.Day(), monthNames[sunday.Month()-1], sunday.Year())
}

// GroupByWeek buckets photos by week, newest week first. Photos keep their
// relative order within a week.
func GroupByWeek(photos []database.Photo) []WeekGroup {
	index := make(map[string]int)
	var groups []WeekGroup

	for _, p := range photos {
		w := WeekOf(p.Date)
		i, ok := index[w.Key]
		if !ok {
			i = len(groups)
			index[w.Key] = i
			groups = append(groups, WeekGroup{Week: w})
		}
		groups[i].Photos = append(groups[i].Photos, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Key > groups[j].Key
	})
	return groups
}
