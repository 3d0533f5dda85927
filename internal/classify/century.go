package classify

import "time"

// CenturyRule expands the two-digit year of a log filename.
type CenturyRule interface {
	FourDigitYear(yy int) int
}

// Pivot maps a two-digit year into the hundred-year window ending at Max:
// with Max 2049, 00..49 become 2000..2049 and 50..99 become 1950..1999.
type Pivot struct {
	Max int
}

// DefaultPivot is the two-digit-year window used when none is configured.
var DefaultPivot = Pivot{Max: 2049}

func (p Pivot) FourDigitYear(yy int) int {
	if yy < 0 || yy > 99 {
		return yy
	}
	y := (p.Max/100)*100 + yy
	if y > p.Max {
		y -= 100
	}
	return y
}

// SlidingPivot returns a window ending ahead years after the year of now.
func SlidingPivot(now time.Time, ahead int) Pivot {
	return Pivot{Max: now.Year() + ahead}
}
