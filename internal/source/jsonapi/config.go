package jsonapi

import (
	"errors"
	"fmt"
	"strings"
)

// URL template placeholders.
const (
	PlaceholderPage = "{page}"
	PlaceholderID   = "{id}"
	PlaceholderIDs  = "{ids}"
)

// Source describes one JSON API. Paths are gjson paths.
type Source struct {
	Name    string            `mapstructure:"name"`
	Headers map[string]string `mapstructure:"headers"`

	// ListURL is the listing endpoint, containing {page}.
	ListURL string `mapstructure:"list_url"`
	// ItemsPath locates the item array in a listing or batch document.
	ItemsPath string `mapstructure:"items_path"`
	// IDPath locates the canonical id inside an item. Items without one are
	// identified by a digest of their JSON.
	IDPath string `mapstructure:"id_path"`
	// TitlePath locates a human readable label inside an item.
	TitlePath string `mapstructure:"title_path"`
	// TotalPath locates the total item count in the first listing page.
	TotalPath string `mapstructure:"total_path"`
	// LastPagePath locates the last page index in the first listing page.
	LastPagePath string `mapstructure:"last_page_path"`
	// PageSize is the number of items per listing page.
	PageSize int `mapstructure:"page_size"`

	// GroupURL fetches one group document, containing {id}.
	GroupURL string `mapstructure:"group_url"`
	// GroupItemPath locates the group entity inside the group document;
	// empty means the document itself.
	GroupItemPath string `mapstructure:"group_item_path"`
	// MembersURL lists the members of a group, containing {id} and {page}.
	MembersURL string `mapstructure:"members_url"`

	// BatchURL fetches many entities, containing {ids} (comma separated).
	BatchURL string `mapstructure:"batch_url"`
}

// ErrInvalidSource reports an unusable Source definition.
var ErrInvalidSource = errors.New("invalid source")

// Validate checks the placeholders of every configured URL.
func (s Source) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidSource)
	}
	checks := []struct {
		field, value string
		needs        []string
	}{
		{"list_url", s.ListURL, []string{PlaceholderPage}},
		{"group_url", s.GroupURL, []string{PlaceholderID}},
		{"members_url", s.MembersURL, []string{PlaceholderID, PlaceholderPage}},
		{"batch_url", s.BatchURL, []string{PlaceholderIDs}},
	}
	for _, c := range checks {
		if c.value == "" {
			continue
		}
		for _, p := range c.needs {
			if !strings.Contains(c.value, p) {
				return fmt.Errorf("%w: source %s: %s must contain %s", ErrInvalidSource, s.Name, c.field, p)
			}
		}
	}
	if s.ListURL == "" && s.GroupURL == "" && s.BatchURL == "" {
		return fmt.Errorf("%w: source %s: no endpoint configured", ErrInvalidSource, s.Name)
	}
	if s.GroupURL != "" && s.MembersURL == "" {
		return fmt.Errorf("%w: source %s: group_url requires members_url", ErrInvalidSource, s.Name)
	}
	if s.ItemsPath == "" {
		return fmt.Errorf("%w: source %s: items_path is required", ErrInvalidSource, s.Name)
	}
	return nil
}
