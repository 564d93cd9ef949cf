package locator

import (
	"encoding/json"

	"wavelift/internal/services"
)

// Rejection records why a raw record never became a WorkItem.
type Rejection struct {
	Index  int
	Record string
	Reason string
}

// Extract normalizes every record. It never fails: malformed records are
// returned as rejections alongside the valid items, preserving input order.
func Extract(records []RawRecord) ([]WorkItem, []Rejection) {
	items := make([]WorkItem, 0, len(records))
	var rejections []Rejection
	for i, rec := range records {
		if rec == nil {
			rejections = append(rejections, Rejection{Index: i, Reason: "empty record"})
			continue
		}
		item, err := rec.normalize()
		if err != nil {
			rejections = append(rejections, Rejection{Index: i, Record: describe(rec), Reason: services.Details(err)})
			continue
		}
		items = append(items, item)
	}
	return items, rejections
}

// ExtractJSON decodes and normalizes a control-plane batch payload.
func ExtractJSON(raw []json.RawMessage) ([]WorkItem, []Rejection) {
	records := make([]RawRecord, len(raw))
	for i, entry := range raw {
		records[i] = Decode(entry)
	}
	return Extract(records)
}
