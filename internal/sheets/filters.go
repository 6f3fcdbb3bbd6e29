package sheets

import (
	"fmt"
	"time"

	"call-insights-go/internal/types"
)

// Layouts seen in the sheet's date column, most specific first.
var sheetDateLayouts = []string{
	"1/2/06 3:04 PM",
	"1/2/2006 3:04 PM",
	"1/2/06 15:04",
	"1/2/2006 15:04",
	"1/2/06",
	"1/2/2006",
	"2006-01-02",
}

// ParseSheetDate parses a free-text date cell under the known layouts.
func ParseSheetDate(s string) (time.Time, error) {
	for _, layout := range sheetDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// FilterByRow keeps only the record at the exact sheet row.
func FilterByRow(records []types.CallRecordingMetadata, row int) []types.CallRecordingMetadata {
	var out []types.CallRecordingMetadata
	for _, r := range records {
		if r.RowNumber == row {
			out = append(out, r)
		}
	}
	return out
}

// FilterByRowRange keeps records with from <= RowNumber <= to.
func FilterByRowRange(records []types.CallRecordingMetadata, from, to int) []types.CallRecordingMetadata {
	var out []types.CallRecordingMetadata
	for _, r := range records {
		if r.RowNumber >= from && r.RowNumber <= to {
			out = append(out, r)
		}
	}
	return out
}

// FilterByDateRange keeps records whose date cell parses and falls inside
// [from, to]. Rows with unparseable dates are excluded: a date filter
// cannot honestly include a row whose date it cannot read.
func FilterByDateRange(records []types.CallRecordingMetadata, from, to time.Time) []types.CallRecordingMetadata {
	var out []types.CallRecordingMetadata
	for _, r := range records {
		d, err := ParseSheetDate(r.Date)
		if err != nil {
			continue
		}
		if d.Before(from) || d.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}
