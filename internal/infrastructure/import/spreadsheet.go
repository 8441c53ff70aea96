package csvimport

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	quotedFormatText   = regexp.MustCompile(`"[^"]*"`)
	bracketFormatPart  = regexp.MustCompile(`\[[^\]]*\]`)
	escapedFormatRunes = regexp.MustCompile(`\\.`)
)

// builtinDateFormats are the built-in number format IDs that render a date
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// decodeSpreadsheet reads the first sheet of a workbook. The first non-empty
// row is the header.
func (d *Decoder) decodeSpreadsheet(data []byte, result *DecodeResult) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: workbook reader panic: %v", ErrDecodeFailed, p)
		}
	}()

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: open workbook: %v", ErrDecodeFailed, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			d.logger.Warn("Failed to close workbook", zap.Error(err))
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ErrEmptyFile
	}
	sheet := sheets[0]

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("%w: read sheet %q: %v", ErrDecodeFailed, sheet, err)
	}

	headerAt := -1
	for i, cells := range rows {
		if !blankCells(cells) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return ErrEmptyFile
	}

	headers := make([]string, 0, len(rows[headerAt]))
	for _, h := range rows[headerAt] {
		headers = append(headers, trimSpaces(h))
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return ErrMissingHeader
	}
	result.Headers = headers

	styles := newDateStyleCache(f)
	for i := headerAt + 1; i < len(rows); i++ {
		cells := rows[i]
		if blankCells(cells) {
			continue
		}
		result.LinesSeen++
		sheetRow := i + 1

		fields := make([]string, len(cells))
		for c, v := range cells {
			fields[c] = trimSpaces(v)
		}
		row := NewRow(sheetRow, headers, fields)

		for c := 0; c < len(headers) && c < len(fields); c++ {
			serial, err := strconv.ParseFloat(fields[c], 64)
			if err != nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, sheetRow)
			if err != nil || !styles.isDate(sheet, cell) {
				continue
			}
			t, err := excelize.ExcelDateToTime(serial, false)
			if err != nil {
				continue
			}
			if _, dup := row.Dates[headers[c]]; !dup {
				row.Dates[headers[c]] = t
			}
		}
		result.Rows = append(result.Rows, row)
	}
	return nil
}

// dateStyleCache remembers which style IDs of a workbook format dates
type dateStyleCache struct {
	f    *excelize.File
	byID map[int]bool
}

func newDateStyleCache(f *excelize.File) *dateStyleCache {
	return &dateStyleCache{f: f, byID: make(map[int]bool)}
}

func (c *dateStyleCache) isDate(sheet, cell string) bool {
	id, err := c.f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return false
	}
	if known, ok := c.byID[id]; ok {
		return known
	}
	isDate := false
	if style, err := c.f.GetStyle(id); err == nil && style != nil {
		isDate = builtinDateFormats[style.NumFmt]
		if style.CustomNumFmt != nil {
			isDate = isDateFormatCode(*style.CustomNumFmt)
		}
	}
	c.byID[id] = isDate
	return isDate
}

// isDateFormatCode reports whether a custom number format renders a date
func isDateFormatCode(code string) bool {
	code = quotedFormatText.ReplaceAllString(code, "")
	code = bracketFormatPart.ReplaceAllString(code, "")
	code = escapedFormatRunes.ReplaceAllString(code, "")
	code = strings.ToLower(code)
	return strings.ContainsAny(code, "dy")
}

func blankCells(cells []string) bool {
	for _, c := range cells {
		if trimSpaces(c) != "" {
			return false
		}
	}
	return true
}
