// Package export renders leaderboards as spreadsheets.
package export

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/warp/recognition-engine/generic"
)

const sheetName = "Leaderboard"

var leaderboardHeader = []string{
	"Rank", "Alias", "Employee ID", "Name", "Title", "Role",
	"Total", "Approved", "For Approval", "Rejected",
}

// Filename is the download name for a fiscal year's board.
func Filename(fiscalYear string) string {
	return fmt.Sprintf("leaderboard_%s.xlsx", fiscalYear)
}

// Leaderboard builds a workbook with one row per record, in the given order.
func Leaderboard(fiscalYear string, rows []generic.LeaderboardRow) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	title := fmt.Sprintf("Leaderboard %s", fiscalYear)
	if err := f.SetDocProps(&excelize.DocProperties{Title: title, Creator: "recognition-engine"}); err != nil {
		return nil, err
	}

	for i, h := range leaderboardHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	for i, r := range rows {
		values := []any{
			i + 1,
			r.Alias,
			string(r.EmployeeID),
			r.FirstName + " " + r.LastName,
			r.Title,
			r.Role.String(),
			r.TotalPoints,
			r.ApprovedPoints,
			r.ForApprovalPoints,
			r.RejectedPoints,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
	}

	if err := format(f, sheetName); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteLeaderboard streams the workbook to w.
func WriteLeaderboard(w io.Writer, fiscalYear string, rows []generic.LeaderboardRow) error {
	f, err := Leaderboard(fiscalYear, rows)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteTo(w)
	return err
}

// format makes the header bold, adds a filter and sizes columns to content.
func format(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil || len(rows) == 0 {
		return err
	}
	cols := len(rows[0])
	last, _ := excelize.ColumnNumberToName(cols)

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", style); err != nil {
		return err
	}
	if err := f.AutoFilter(sheet, "A1:"+last+"1", nil); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}

	for c := 0; c < cols; c++ {
		width := 10.0
		for _, row := range rows {
			if c < len(row) {
				width = max(width, float64(utf8.RuneCountInString(row[c]))*1.1+1.5)
			}
		}
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColWidth(sheet, col, col, min(width, 60)); err != nil {
			return err
		}
	}
	return nil
}
