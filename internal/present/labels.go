package present

import (
	"fmt"

	"analyzeit/internal/analyses"
)

// Color names a badge palette.
type Color string

const (
	Green  Color = "green"
	Red    Color = "red"
	Yellow Color = "yellow"
	Gray   Color = "gray"
)

// Class is the badge CSS class for the color.
func (c Color) Class() string {
	switch c {
	case Green:
		return "bg-green-100 text-green-800"
	case Red:
		return "bg-red-100 text-red-800"
	case Yellow:
		return "bg-yellow-100 text-yellow-800"
	default:
		return "bg-gray-100 text-gray-800"
	}
}

// Status maps a status to its label and color.
func Status(status string) (string, Color) {
	switch status {
	case analyses.StatusSuccess:
		return "Concluído", Green
	case analyses.StatusFailed:
		return "Falhou", Red
	case analyses.StatusPending:
		return "Analisando", Yellow
	default:
		return "Desconhecido", Gray
	}
}

// Decision maps a classifier decision to its label.
func Decision(decision string) string {
	switch decision {
	case analyses.DecisionCompression:
		return "Compressão"
	case analyses.DecisionNormal:
		return "Normal"
	case analyses.DecisionUndefined:
		return "Indefinido"
	default:
		return "N/A"
	}
}

// Probability renders p in [0,1] as a percentage with one decimal.
func Probability(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

// ProcessingSeconds is the time from creation to completion with one decimal,
// or "" while the analysis is not finished.
func ProcessingSeconds(rec analyses.Record) string {
	if rec.FinishedAt == nil {
		return ""
	}
	return fmt.Sprintf("%.1f", rec.FinishedAt.Sub(rec.CreatedAt).Seconds())
}

// ShortID is the first eight characters of id followed by "...".
func ShortID(id string) string {
	r := []rune(id)
	if len(r) > 8 {
		r = r[:8]
	}
	return string(r) + "..."
}

// Truncate cuts s to n runes and appends "..." when it was longer.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
