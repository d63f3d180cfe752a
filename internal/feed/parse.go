package feed

import (
	"bytes"
	"errors"
	"strings"

	ical "github.com/arran4/golang-ical"

	appLog "remindd/internal/log"
)

// Item is the normalized representation of a single feed entry as
// produced by the parser. Date tokens are kept verbatim; conversion to
// instants happens in NormalizeToken at scheduling time.
type Item struct {
	UID     string
	Summary string

	// StartRaw / DueRaw are the raw DTSTART / DTEND token values.
	// DueRaw falls back to DTSTART when the entry has no DTEND.
	StartRaw string
	DueRaw   string

	Categories []string
}

// IsAssignment classifies an item as assignment-style work. Feeds from
// course platforms tag these either via CATEGORIES or by embedding
// "assignment" in the UID.
func (it Item) IsAssignment() bool {
	for _, c := range it.Categories {
		if strings.EqualFold(strings.TrimSpace(c), "assignment") ||
			strings.EqualFold(strings.TrimSpace(c), "assignments") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(it.UID), "assignment")
}

// Parse parses a raw feed payload into a list of Items. Entries that
// fail to parse individually are logged and skipped; the rest of the
// payload is still used.
func Parse(body []byte) ([]Item, error) {
	if len(body) == 0 {
		return nil, errors.New("empty feed body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0)
	for _, ve := range cal.Events() {
		it, perr := parseEntry(ve)
		if perr != nil {
			appLog.Warn("feed entry skipped", "reason", perr.Error())
			continue
		}
		items = append(items, it)
	}

	appLog.Info("feed parse completed", "item_count", len(items))
	return items, nil
}

func parseEntry(ve *ical.VEvent) (Item, error) {
	var it Item

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		it.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		it.Summary = p.Value
	}
	if it.Summary == "" && it.UID == "" {
		return it, errors.New("entry has neither UID nor SUMMARY")
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		it.StartRaw = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil {
		it.DueRaw = p.Value
	}
	if it.DueRaw == "" {
		it.DueRaw = it.StartRaw
	}

	// Use the raw property name; CATEGORIES may carry a comma-joined list.
	if p := ve.GetProperty("CATEGORIES"); p != nil && p.Value != "" {
		for _, c := range strings.Split(p.Value, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				it.Categories = append(it.Categories, c)
			}
		}
	}

	return it, nil
}
