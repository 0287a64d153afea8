package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// TimestampLayout is the ISO-8601 layout used for lead identity keys.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// MaxRating is the highest allowed lead rating. Zero means unrated.
const MaxRating = 5

var (
	// ErrNameRequired is returned when a lead is submitted without a name.
	ErrNameRequired = eris.New("name is required")
	// ErrInvalidRating is returned for a rating outside 0..MaxRating.
	ErrInvalidRating = eris.New("rating out of range")
)

// Lead is a captured prospect record. Timestamp doubles as the idempotency
// key within the local store.
type Lead struct {
	Timestamp string   `json:"timestamp"`
	Name      string   `json:"name"`
	Company   string   `json:"company"`
	Notes     string   `json:"notes"`
	Email     string   `json:"email,omitempty"`
	Phone     string   `json:"phone,omitempty"`
	Rating    int      `json:"rating,omitempty"`
	Products  []string `json:"products,omitempty"`
	ScannedBy string   `json:"scannedBy"`
}

// HistoryEntry is a lead as shown in the recent history list.
type HistoryEntry struct {
	Lead
	Delivered bool `json:"sent"`
}

// Fields holds the editable review form for a lead before it is submitted.
type Fields struct {
	Name     string   `json:"name"`
	Company  string   `json:"company"`
	Notes    string   `json:"notes"`
	Email    string   `json:"email,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	Rating   int      `json:"rating,omitempty"`
	Products []string `json:"products,omitempty"`
}

// Trimmed returns a copy with surrounding whitespace removed from every
// field and empty product tags dropped.
func (f Fields) Trimmed() Fields {
	out := Fields{
		Name:    strings.TrimSpace(f.Name),
		Company: strings.TrimSpace(f.Company),
		Notes:   strings.TrimSpace(f.Notes),
		Email:   strings.TrimSpace(f.Email),
		Phone:   strings.TrimSpace(f.Phone),
		Rating:  f.Rating,
	}
	for _, p := range f.Products {
		if p = strings.TrimSpace(p); p != "" {
			out.Products = append(out.Products, p)
		}
	}
	return out
}

// Validate checks the fields can become a lead.
func (f Fields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return ErrNameRequired
	}
	if f.Rating < 0 || f.Rating > MaxRating {
		return eris.Wrapf(ErrInvalidRating, "rating must be between 0 and %d, got %d", MaxRating, f.Rating)
	}
	return nil
}

// IsBlank reports whether no field carries any content.
func (f Fields) IsBlank() bool {
	t := f.Trimmed()
	return t.Name == "" && t.Company == "" && t.Notes == "" &&
		t.Email == "" && t.Phone == "" && t.Rating == 0 && len(t.Products) == 0
}

// NewLead validates fields and builds a lead stamped at the given time.
func NewLead(f Fields, scannedBy string, at time.Time) (Lead, error) {
	if err := f.Validate(); err != nil {
		return Lead{}, err
	}
	t := f.Trimmed()
	return Lead{
		Timestamp: FormatTimestamp(at),
		Name:      t.Name,
		Company:   t.Company,
		Notes:     t.Notes,
		Email:     t.Email,
		Phone:     t.Phone,
		Rating:    t.Rating,
		Products:  t.Products,
		ScannedBy: strings.TrimSpace(scannedBy),
	}, nil
}

// FormatTimestamp renders t in the lead identity layout (UTC, milliseconds).
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp parses a lead identity timestamp.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "parse lead timestamp %q", s)
	}
	return t, nil
}
