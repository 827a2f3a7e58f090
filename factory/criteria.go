/*
Package factory converts catalog files into generic.Criteria.

PURPOSE:
  Admins maintain the criteria catalog in spreadsheets. The factory reads
  an uploaded workbook (or its JSON export) into validated Criteria rows
  that the catalog service can save as drafts.

JSON SCHEMA:
  [
    {
      "id": 12,
      "category": "Delivery",
      "accomplishment": "Led a go-live",
      "points": 20,
      "guidelines": "Attach the go-live sign-off",
      "director_approval": true,
      "type": "DELIVERY"
    }
  ]

WORKBOOK LAYOUT:
  First sheet, header row with the same names as the JSON keys (any order,
  case-insensitive). Empty rows are skipped. director_approval accepts
  true/false, yes/no, y/n and 1/0.

KEY FEATURES:
  - Validates every row and reports the first failure with its row number
  - Rejects duplicate ids within one file
  - Type defaults to BOTH on the manager track and is cleared on the
    member track
  - Rows are returned unpublished

USAGE:
  f := NewCriteriaFactory()
  rows, err := f.ParseXLSX(upload, generic.TrackManager)

SEE ALSO:
  - generic/types.go: Criteria.Validate
  - rewards/catalog.go: Import
*/
package factory

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/warp/recognition-engine/generic"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// CriteriaJSON is the file representation of one catalog row.
type CriteriaJSON struct {
	ID               int64  `json:"id"`
	Category         string `json:"category"`
	Accomplishment   string `json:"accomplishment"`
	Points           int64  `json:"points"`
	Guidelines       string `json:"guidelines,omitempty"`
	DirectorApproval bool   `json:"director_approval"`
	Type             string `json:"type,omitempty"`
}

// =============================================================================
// CRITERIA FACTORY
// =============================================================================

type CriteriaFactory struct{}

func NewCriteriaFactory() *CriteriaFactory {
	return &CriteriaFactory{}
}

// ParseJSON parses a JSON array of criteria for track.
func (f *CriteriaFactory) ParseJSON(data []byte, track generic.Track) ([]generic.Criteria, error) {
	var rows []CriteriaJSON
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse criteria JSON: %w", err)
	}
	out := make([]generic.Criteria, 0, len(rows))
	for i, cj := range rows {
		c, err := f.FromJSON(cj, track)
		if err != nil {
			return nil, rowError(i+1, err)
		}
		out = append(out, c)
	}
	return out, checkDuplicates(out)
}

// FromJSON converts one row. The result is validated and unpublished.
func (f *CriteriaFactory) FromJSON(cj CriteriaJSON, track generic.Track) (generic.Criteria, error) {
	c := generic.Criteria{
		ID:               generic.CriteriaID(cj.ID),
		Track:            track,
		Category:         strings.TrimSpace(cj.Category),
		Accomplishment:   strings.TrimSpace(cj.Accomplishment),
		Points:           cj.Points,
		Guidelines:       strings.TrimSpace(cj.Guidelines),
		DirectorApproval: cj.DirectorApproval,
		Type:             parseType(cj.Type, track),
	}
	if err := c.Validate(); err != nil {
		return generic.Criteria{}, err
	}
	return c, nil
}

// ToJSON converts a catalog row back to its file representation.
func (f *CriteriaFactory) ToJSON(c generic.Criteria) CriteriaJSON {
	return CriteriaJSON{
		ID:               int64(c.ID),
		Category:         c.Category,
		Accomplishment:   c.Accomplishment,
		Points:           c.Points,
		Guidelines:       c.Guidelines,
		DirectorApproval: c.DirectorApproval,
		Type:             string(c.Type),
	}
}

// ParseXLSX reads the first sheet of a workbook.
func (f *CriteriaFactory) ParseXLSX(r io.Reader, track generic.Track) ([]generic.Criteria, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, &generic.ValidationError{Field: "file", Message: "workbook has no sheets"}
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &generic.ValidationError{Field: "file", Message: "sheet is empty"}
	}

	cols := headerIndex(rows[0])
	for _, required := range []string{"id", "category", "points"} {
		if _, ok := cols[required]; !ok {
			return nil, &generic.ValidationError{Field: "file", Message: fmt.Sprintf("missing column %q", required)}
		}
	}

	var out []generic.Criteria
	for i, row := range rows[1:] {
		line := i + 2
		get := func(name string) string {
			if idx, ok := cols[name]; ok && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}
		if get("id") == "" && get("category") == "" && get("accomplishment") == "" {
			continue
		}

		id, err := strconv.ParseInt(get("id"), 10, 64)
		if err != nil {
			return nil, rowError(line, &generic.ValidationError{Field: "id", Message: fmt.Sprintf("%q is not a number", get("id"))})
		}
		points, err := strconv.ParseInt(get("points"), 10, 64)
		if err != nil {
			return nil, rowError(line, &generic.ValidationError{Field: "points", Message: fmt.Sprintf("%q is not a number", get("points"))})
		}
		c, err := f.FromJSON(CriteriaJSON{
			ID:               id,
			Category:         get("category"),
			Accomplishment:   get("accomplishment"),
			Points:           points,
			Guidelines:       get("guidelines"),
			DirectorApproval: parseBool(get("director_approval")),
			Type:             get("type"),
		}, track)
		if err != nil {
			return nil, rowError(line, err)
		}
		out = append(out, c)
	}
	return out, checkDuplicates(out)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		idx[key] = i
	}
	return idx
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "y":
		return true
	default:
		return false
	}
}

func parseType(s string, track generic.Track) generic.CriteriaType {
	if track != generic.TrackManager {
		return ""
	}
	t := generic.CriteriaType(strings.ToUpper(strings.TrimSpace(s)))
	if t == "" {
		return generic.CriteriaBoth
	}
	return t
}

func rowError(row int, err error) error {
	return fmt.Errorf("row %d: %w", row, err)
}

func checkDuplicates(rows []generic.Criteria) error {
	seen := make(map[generic.CriteriaID]bool, len(rows))
	for _, c := range rows {
		if seen[c.ID] {
			return &generic.ValidationError{Field: "id", Message: fmt.Sprintf("duplicate criteria id %d", c.ID)}
		}
		seen[c.ID] = true
	}
	return nil
}
