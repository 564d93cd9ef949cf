package locator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"wavelift/internal/services"
)

// WorkItem is one validated unit of ingestion work. It is immutable once built.
type WorkItem struct {
	Locator   string
	OwnerHint string
	TitleHint string
}

// RawRecord is one entry of a control-plane batch before validation. The
// concrete variants are Structured, BareURL, Delimited, and Unsupported.
type RawRecord interface {
	normalize() (WorkItem, error)
}

// Structured is a JSON object record with explicit fields.
type Structured struct {
	URL   string
	Owner string
	Title string
}

// BareURL is a record that is only a locator.
type BareURL string

// Delimited is an `owner|locator|title` record.
type Delimited string

// Unsupported holds a record that matches no known shape.
type Unsupported struct {
	Raw string
}

const delimiter = "|"

func (s Structured) normalize() (WorkItem, error) {
	return newWorkItem(s.URL, s.Owner, s.Title)
}

func (b BareURL) normalize() (WorkItem, error) {
	return newWorkItem(string(b), "", "")
}

func (d Delimited) normalize() (WorkItem, error) {
	parts := strings.Split(string(d), delimiter)
	if len(parts) < 2 {
		return WorkItem{}, services.Wrap(services.ErrValidation, "extract", "split record",
			fmt.Sprintf("expected owner%slocator[%stitle]", delimiter, delimiter), nil)
	}
	title := ""
	if len(parts) >= 3 {
		title = strings.Join(parts[2:], delimiter)
	}
	return newWorkItem(parts[1], parts[0], title)
}

func (u Unsupported) normalize() (WorkItem, error) {
	return WorkItem{}, services.Wrap(services.ErrValidation, "extract", "decode record", "unsupported record shape", nil)
}

func newWorkItem(locator, owner, title string) (WorkItem, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return WorkItem{}, services.Wrap(services.ErrValidation, "extract", "read locator", "missing locator", nil)
	}
	if err := ValidateURL(locator); err != nil {
		return WorkItem{}, err
	}
	return WorkItem{
		Locator:   locator,
		OwnerHint: strings.TrimSpace(owner),
		TitleHint: strings.TrimSpace(title),
	}, nil
}

// structuredWire accepts the field names used by the various batch producers.
type structuredWire struct {
	VideoURL string `json:"video_url"`
	URL      string `json:"url"`
	Locator  string `json:"locator"`
	Owner    string `json:"owner"`
	User     string `json:"user"`
	Uploader string `json:"uploader"`
	Channel  string `json:"channel"`
	Title    string `json:"title"`
}

// Decode classifies one raw JSON batch entry into its RawRecord variant.
func Decode(raw json.RawMessage) RawRecord {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Unsupported{}
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return Unsupported{Raw: string(trimmed)}
		}
		return classifyString(s)
	case '{':
		var wire structuredWire
		if err := json.Unmarshal(trimmed, &wire); err != nil {
			return Unsupported{Raw: string(trimmed)}
		}
		return Structured{
			URL:   firstNonEmpty(wire.VideoURL, wire.URL, wire.Locator),
			Owner: firstNonEmpty(wire.Owner, wire.User, wire.Uploader, wire.Channel),
			Title: wire.Title,
		}
	default:
		return Unsupported{Raw: string(trimmed)}
	}
}

func classifyString(s string) RawRecord {
	trimmed := strings.TrimSpace(s)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return BareURL(trimmed)
	}
	return Delimited(trimmed)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// describe renders a record for rejection logs.
func describe(rec RawRecord) string {
	switch r := rec.(type) {
	case Structured:
		return r.URL
	case BareURL:
		return string(r)
	case Delimited:
		return string(r)
	case Unsupported:
		return r.Raw
	default:
		return fmt.Sprintf("%v", rec)
	}
}
