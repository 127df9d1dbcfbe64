package present

import (
	"context"
	"strconv"
	"time"

	"analyzeit/internal/analyses"
)

// URLResolver turns a stored image reference into a browser URL.
type URLResolver interface {
	Resolve(ctx context.Context, raw string) string
}

// Card is the view model of one analysis, for both the card and its modal.
type Card struct {
	ID             string
	ShortID        string
	Status         string
	StatusLabel    string
	StatusClass    string
	Decision       string
	DecisionLabel  string
	Probability    string
	TimeAgo        string
	Created        string
	Finished       string
	ProcessingTime string
	ImageURL       string
	ImageAlt       string
	URLPreview     string
	Dimensions     string
	Format         string
	Size           string
}

// Presenter builds cards relative to a clock and time zone.
type Presenter struct {
	Images   URLResolver
	Location *time.Location
	Now      func() time.Time
}

// Card renders one record.
func (p Presenter) Card(ctx context.Context, rec analyses.Record) Card {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	label, color := Status(rec.Status)
	imageURL := rec.ImageURL
	if p.Images != nil {
		imageURL = p.Images.Resolve(ctx, rec.ImageURL)
	}
	c := Card{
		ID:             rec.ID,
		ShortID:        ShortID(rec.ID),
		Status:         rec.Status,
		StatusLabel:    label,
		StatusClass:    color.Class(),
		Decision:       rec.Decision,
		DecisionLabel:  Decision(rec.Decision),
		Probability:    Probability(rec.Probability),
		TimeAgo:        TimeAgo(rec.CreatedAt, now()),
		Created:        FullDate(rec.CreatedAt, p.Location),
		ProcessingTime: ProcessingSeconds(rec),
		ImageURL:       imageURL,
		ImageAlt:       rec.Decision + " analysis",
		URLPreview:     Truncate(rec.ImageURL, 35),
		Dimensions:     orDash(rec.ImageWidth) + "px x " + orDash(rec.ImageHeight) + "px",
		Format:         "-",
		Size:           "-kb",
	}
	if rec.FinishedAt != nil {
		c.Finished = FullDate(*rec.FinishedAt, p.Location)
	}
	if rec.ImageFormat != nil {
		c.Format = *rec.ImageFormat
	}
	if rec.ImageSizeKB != nil {
		c.Size = strconv.FormatFloat(*rec.ImageSizeKB, 'f', -1, 64) + "kb"
	}
	return c
}

// Cards renders records in order.
func (p Presenter) Cards(ctx context.Context, recs []analyses.Record) []Card {
	out := make([]Card, len(recs))
	for i, rec := range recs {
		out[i] = p.Card(ctx, rec)
	}
	return out
}

func orDash(v *int) string {
	if v == nil {
		return "-"
	}
	return strconv.Itoa(*v)
}
