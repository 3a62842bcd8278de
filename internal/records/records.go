// Package records decodes loosely typed ingest payloads into submitted records.
package records

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
)

var (
	// ErrCategoryRequired is returned for a payload without a category.
	ErrCategoryRequired = errors.New("category is required")
	// ErrEmptyRecord is returned when a payload has neither title nor content.
	ErrEmptyRecord = errors.New("record needs a title, description or content")
)

// payload mirrors the accepted JSON keys. Tags may be a list or a comma-separated string.
type payload struct {
	ID          string    `mapstructure:"id"`
	Title       string    `mapstructure:"title"`
	Description string    `mapstructure:"description"`
	Content     string    `mapstructure:"content"`
	Source      string    `mapstructure:"source"`
	Type        string    `mapstructure:"type"`
	Category    string    `mapstructure:"category"`
	URL         string    `mapstructure:"url"`
	Tags        []string  `mapstructure:"tags"`
	LastUpdated time.Time `mapstructure:"last_updated"`
}

// Decoder turns maps into records.
type Decoder struct {
	now func() time.Time
}

// NewDecoder returns a decoder stamping records with the current UTC time.
func NewDecoder() *Decoder {
	return &Decoder{now: func() time.Time { return time.Now().UTC() }}
}

// Decode validates raw and fills defaults: lower-cased category, an id from the title slug
// (or a random uuid), normalised tags, source "custom" and a last-updated timestamp.
func (d *Decoder) Decode(raw map[string]any) (*domain.Custom, error) {
	var p payload
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &p,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err = dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	category := strings.ToLower(strings.TrimSpace(p.Category))
	if category == "" {
		return nil, ErrCategoryRequired
	}
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" && strings.TrimSpace(p.Description) == "" && strings.TrimSpace(p.Content) == "" {
		return nil, ErrEmptyRecord
	}

	id := domain.Slug(p.ID)
	if id == "" {
		id = domain.Slug(p.Title)
	}
	if id == "" {
		id = uuid.NewString()
	}
	if p.Source == "" {
		p.Source = "custom"
	}
	if p.Type == "" {
		p.Type = category
	}
	updated := p.LastUpdated
	if updated.IsZero() {
		updated = d.now()
	}

	return &domain.Custom{Record: domain.Record{
		ID:          id,
		Title:       p.Title,
		Description: p.Description,
		Content:     p.Content,
		Source:      p.Source,
		Type:        p.Type,
		Category:    domain.Category(category),
		URL:         p.URL,
		Tags:        domain.NormalizeTags(p.Tags),
		LastUpdated: updated.UTC(),
	}}, nil
}
