package roster

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownPeriod is returned for a period name outside its calendar.
var ErrUnknownPeriod = errors.New("unknown period")

// School years are named by the calendar year they end in: school year 2019
// runs from September 2018 and is called "2018-2019".
func startYear(schoolYear int) int { return schoolYear - 1 }

// SchoolYearName returns the display name of a school year.
func SchoolYearName(schoolYear int) string {
	return strconv.Itoa(startYear(schoolYear)) + "-" + strconv.Itoa(schoolYear)
}

// Calendar is a subdivision of the school year into ordered, named periods.
type Calendar struct {
	Table   string
	Periods []string
}

var (
	Semesters      = Calendar{Table: "semester", Periods: []string{"Fall", "Spring"}}
	Trimesters     = Calendar{Table: "trimester", Periods: []string{"Fall", "Winter", "Spring"}}
	MarkingPeriods = Calendar{Table: "marking_period", Periods: []string{"MP1", "MP2", "MP3", "MP4"}}
)

// Canonical returns the calendar's spelling of name, matched
// case-insensitively ("fall" is "Fall", "mp2" is "MP2").
func (c Calendar) Canonical(name string) (string, error) {
	i, err := c.index(name)
	if err != nil {
		return "", err
	}
	return c.Periods[i], nil
}

// Sequence numbers periods consecutively across school years so that time
// series sort and difference naturally.
func (c Calendar) Sequence(schoolYear int, name string) (int, error) {
	i, err := c.index(name)
	if err != nil {
		return 0, err
	}
	return startYear(schoolYear)*len(c.Periods) + i, nil
}

func (c Calendar) index(name string) (int, error) {
	n := strings.TrimSpace(name)
	for i, p := range c.Periods {
		if strings.EqualFold(p, n) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w %q for %s (want one of %s)", ErrUnknownPeriod, name, c.Table, strings.Join(c.Periods, ", "))
}
