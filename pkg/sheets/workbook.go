package sheets

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kintai-hq/kintai-client/internal/domain"
)

// Attendance sheet layout: basic info in B1:B3 and D1:D3, a free-form block
// in A5:D7, and one attendance row per line from row 10 (A..F) until the
// first row with an empty date.
const (
	rangeFirstRow      = 5
	rangeLastRow       = 7
	rangeColumns       = 4
	attendanceFirstRow = 10
)

var salaryHeader = []any{"先生名", "1コマあたりの給料", "交通費"}

const salarySheet = "先生給料"

// ParseWorkbook reads the first sheet of an attendance workbook.
func ParseWorkbook(r io.Reader, filename string) (domain.ImportedData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return domain.ImportedData{}, fmt.Errorf("open workbook %s: %w", filename, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return domain.ImportedData{}, errors.New("workbook has no sheets")
	}
	sheet := sheets[0]

	cell := func(name string) (string, error) {
		v, err := f.GetCellValue(sheet, name)
		if err != nil {
			return "", fmt.Errorf("read %s!%s: %w", sheet, name, err)
		}
		return strings.TrimSpace(v), nil
	}

	info := &domain.BasicInfo{}
	for _, field := range []struct {
		ref string
		dst *string
	}{
		{"B1", &info.Name},
		{"B2", &info.Department},
		{"B3", &info.Subject},
		{"D1", &info.Schedule},
		{"D2", &info.PeriodClass},
		{"D3", &info.TimeSlot},
	} {
		if *field.dst, err = cell(field.ref); err != nil {
			return domain.ImportedData{}, err
		}
	}

	info.RangeData = make([][]string, 0, rangeLastRow-rangeFirstRow+1)
	for row := rangeFirstRow; row <= rangeLastRow; row++ {
		values := make([]string, rangeColumns)
		for col := 1; col <= rangeColumns; col++ {
			ref, err := excelize.CoordinatesToCellName(col, row)
			if err != nil {
				return domain.ImportedData{}, err
			}
			if values[col-1], err = cell(ref); err != nil {
				return domain.ImportedData{}, err
			}
		}
		info.RangeData = append(info.RangeData, values)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return domain.ImportedData{}, fmt.Errorf("read rows: %w", err)
	}

	dates := make([]domain.AttendanceDate, 0)
	for i := attendanceFirstRow - 1; i < len(rows); i++ {
		row := rows[i]
		date := column(row, 0)
		if date == "" {
			break
		}
		dates = append(dates, domain.AttendanceDate{
			RowNumber:      i + 1,
			DateText:       date,
			AttendanceMark: column(row, 1),
			CheckInTime:    column(row, 2),
			CheckOutTime:   column(row, 3),
			Hours:          column(row, 4),
			Notes:          column(row, 5),
		})
	}

	return domain.ImportedData{
		Filename:        filename,
		BasicInfo:       info,
		AttendanceDates: dates,
	}, nil
}

func column(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// ExportSalaries writes one sheet listing every teacher's salary settings.
func ExportSalaries(w io.Writer, salaries []domain.TeacherSalary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", salarySheet); err != nil {
		return fmt.Errorf("name salary sheet: %w", err)
	}

	header := salaryHeader
	if err := f.SetSheetRow(salarySheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, s := range salaries {
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{s.TeacherName, s.SalaryPerClass, s.TransportationFee}
		if err := f.SetSheetRow(salarySheet, ref, &row); err != nil {
			return fmt.Errorf("write salary row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
