package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"call-insights-go/internal/logger"
	"call-insights-go/internal/types"
)

// Source fetches the call tracking sheet as an exported .xlsx workbook.
type Source struct {
	ExportURL string
	Client    *http.Client
}

func New(exportURL string) *Source {
	return &Source{
		ExportURL: exportURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchCallRecordings downloads and parses the sheet. Rows without an
// http(s) recording link are dropped silently: "not yet recorded" is a
// valid state, not an error.
func (s *Source) FetchCallRecordings(ctx context.Context) ([]types.CallRecordingMetadata, error) {
	log := logger.Component("sheets")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.ExportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build sheet request: %w", err)
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch sheet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch sheet: unexpected status %d", resp.StatusCode)
	}

	f, err := excelize.OpenReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheetList[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, fmt.Errorf("sheet has no data rows")
	}

	cols := detectColumns(rows[0])
	log.WithField("columns", fmt.Sprintf("%+v", cols)).Debug("detected sheet columns")

	var out []types.CallRecordingMetadata
	dropped := 0
	for i, r := range rows {
		if i == 0 {
			continue
		}
		rec := types.CallRecordingMetadata{
			Date:          cell(r, cols.date),
			Name:          cell(r, cols.name),
			IssueType:     cell(r, cols.issue),
			RecordingLink: cell(r, cols.link),
			CallingNumber: cell(r, cols.number),
			RowNumber:     i + 1, // 1-based sheet row, header is row 1
		}
		link := strings.ToLower(rec.RecordingLink)
		if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
			dropped++
			continue
		}
		out = append(out, rec)
	}
	log.WithField("records", len(out)).WithField("not_yet_recorded", dropped).Info("sheet loaded")
	return out, nil
}

type columnIndices struct {
	date, name, issue, link, number int
}

func detectColumns(header []string) columnIndices {
	cols := columnIndices{date: -1, name: -1, issue: -1, link: -1, number: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.date == -1 && strings.Contains(l, "date"):
			cols.date = i
		case cols.name == -1 && strings.Contains(l, "name"):
			cols.name = i
		case cols.issue == -1 && strings.Contains(l, "issue"):
			cols.issue = i
		case cols.link == -1 && (strings.Contains(l, "record") || strings.Contains(l, "link") || strings.Contains(l, "url")):
			cols.link = i
		case cols.number == -1 && (strings.Contains(l, "number") || strings.Contains(l, "phone")):
			cols.number = i
		}
	}
	// positional fallback matching the sheet's historical layout
	if cols.date == -1 {
		cols.date = 0
	}
	if cols.name == -1 && len(header) > 1 {
		cols.name = 1
	}
	if cols.issue == -1 && len(header) > 2 {
		cols.issue = 2
	}
	if cols.link == -1 && len(header) > 3 {
		cols.link = 3
	}
	if cols.number == -1 && len(header) > 4 {
		cols.number = 4
	}
	return cols
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
