package gallery

import (
	"sort"
	"strings"
	"time"

	"fotos/internal/database"
)

// Period limits the popular list to recent photos.
type Period string

const (
	PeriodAll     Period = "all"
	PeriodYear    Period = "year"
	Period6Months Period = "6months"
	PeriodMonth   Period = "month"
	PeriodWeek    Period = "week"
)

var periodLabels = map[Period]string{
	PeriodAll:     "Todo el tiempo",
	PeriodYear:    "Último año",
	Period6Months: "Últimos 6 meses",
	PeriodMonth:   "Último mes",
	PeriodWeek:    "Última semana",
}

// ParsePeriod returns the named period, or PeriodAll.
func ParsePeriod(s string) Period {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := periodLabels[p]; ok {
		return p
	}
	return PeriodAll
}

// Label is the Spanish caption of the period.
func (p Period) Label() string {
	return periodLabels[ParsePeriod(string(p))]
}

// Cutoff returns the earliest date included in the period, or the zero time
// for PeriodAll.
func (p Period) Cutoff(now time.Time) time.Time {
	switch p {
	case PeriodYear:
		return now.AddDate(-1, 0, 0)
	case Period6Months:
		return now.AddDate(0, -6, 0)
	case PeriodMonth:
		return now.AddDate(0, -1, 0)
	case PeriodWeek:
		return now.AddDate(0, 0, -7)
	default:
		return time.Time{}
	}
}

// Sort orders the popular list.
type Sort string

const (
	SortLikes      Sort = "likes"
	SortComments   Sort = "comments"
	SortEngagement Sort = "engagement"
)

var sortLabels = map[Sort]string{
	SortLikes:      "Más likes",
	SortComments:   "Más comentarios",
	SortEngagement: "Más interacción",
}

// ParseSort returns the named sort, or SortLikes.
func ParseSort(s string) Sort {
	v := Sort(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := sortLabels[v]; ok {
		return v
	}
	return SortLikes
}

// Label is the Spanish caption of the sort.
func (s Sort) Label() string {
	return sortLabels[ParseSort(string(s))]
}

// Totals sums the engagement of a popular list.
type Totals struct {
	Photos   int `json:"photos"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Reposts  int `json:"reposts"`
}

// PopularPage is the popular photos view for one period and sort.
type PopularPage struct {
	Period Period                  `json:"period"`
	Sort   Sort                    `json:"sort"`
	Label  string                  `json:"label"`
	Totals Totals                  `json:"totals"`
	Photos []database.PopularPhoto `json:"photos"`
}

// Popular filters photos to the period ending at now and sorts them. Photos
// flagged as inappropriate or without engagement are dropped. Ties keep
// their input order.
func Popular(photos []database.PopularPhoto, period Period, by Sort, now time.Time) PopularPage {
	period = ParsePeriod(string(period))
	by = ParseSort(string(by))
	cutoff := period.Cutoff(now)

	page := PopularPage{
		Period: period,
		Sort:   by,
		Label:  period.Label() + " • " + by.Label(),
		Photos: []database.PopularPhoto{},
	}

	for _, p := range photos {
		if p.Flagged() || p.EngagementScore() == 0 {
			continue
		}
		if !cutoff.IsZero() {
			taken, ok := photoTime(p.Date)
			if !ok || taken.Before(cutoff) {
				continue
			}
		}
		page.Photos = append(page.Photos, p)
	}

	sort.SliceStable(page.Photos, func(i, j int) bool {
		a, b := page.Photos[i], page.Photos[j]
		switch by {
		case SortComments:
			return a.CommentCount > b.CommentCount
		case SortEngagement:
			return a.EngagementScore() > b.EngagementScore()
		default:
			return a.LikeCount > b.LikeCount
		}
	})

	for _, p := range page.Photos {
		page.Totals.Photos++
		page.Totals.Likes += p.LikeCount
		page.Totals.Comments += p.CommentCount
		page.Totals.Reposts += p.RepostCount
	}
	return page
}

var photoTimeLayouts = []string{
	database.SQLiteTimeLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02",
}

func photoTime(date string) (time.Time, bool) {
	for _, layout := range photoTimeLayouts {
		if t, err := time.Parse(layout, date); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
