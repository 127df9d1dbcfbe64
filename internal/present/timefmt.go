package present

import (
	"fmt"
	"math"
	"time"
)

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// FullDate renders t like "1 de abril de 2026 09:05:00" in loc.
func FullDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return fmt.Sprintf("%d de %s de %d %s", t.Day(), monthsPT[t.Month()-1], t.Year(), t.Format("15:04:05"))
}

// ShortDate renders t like "01/04/2026" in loc.
func ShortDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("02/01/2006")
}

// TimeAgo renders the distance between t and now in Portuguese with a
// "há" prefix for the past and "em" for the future, using the same
// rounding buckets as common date libraries.
func TimeAgo(t, now time.Time) string {
	d := now.Sub(t)
	prefix := "há "
	if d < 0 {
		d = -d
		prefix = "em "
	}
	return prefix + distance(d)
}

func distance(d time.Duration) string {
	const (
		minutesInDay   = 1440
		minutesInMonth = 43200
		minutesIn2Mon  = 86400
	)
	minutes := int(math.Round(d.Seconds() / 60))

	switch {
	case minutes < 1:
		return "menos de um minuto"
	case minutes < 45:
		return plural(minutes, "1 minuto", "%d minutos")
	case minutes < 90:
		return "cerca de 1 hora"
	case minutes < minutesInDay:
		return plural(int(math.Round(float64(minutes)/60)), "cerca de 1 hora", "cerca de %d horas")
	case minutes < 2520:
		return "1 dia"
	case minutes < minutesInMonth:
		return plural(int(math.Round(float64(minutes)/minutesInDay)), "1 dia", "%d dias")
	case minutes < minutesIn2Mon:
		return plural(int(math.Round(float64(minutes)/minutesInMonth)), "cerca de 1 mês", "cerca de %d meses")
	}

	months := int(math.Round(float64(minutes) / minutesInMonth))
	if months < 12 {
		return plural(months, "1 mês", "%d meses")
	}
	years := months / 12
	rest := months % 12
	switch {
	case rest < 3:
		return plural(years, "cerca de 1 ano", "cerca de %d anos")
	case rest < 9:
		return plural(years, "mais de 1 ano", "mais de %d anos")
	default:
		return plural(years+1, "quase 1 ano", "quase %d anos")
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return fmt.Sprintf(many, n)
}
