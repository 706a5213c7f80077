package loader

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/numass/internal/meta"
)

// HVRow is one reading of the voltage time series.
type HVRow struct {
	Time  time.Time
	Block string
	Value float64
}

// HVTable is the voltage time series of a run.
type HVTable struct {
	Rows []HVRow
}

// ParseHVTable parses a whitespace- or comma-separated table with the
// columns timestamp, block id and value. Blank lines and lines starting
// with '#' are skipped. A timestamp may contain one space
// ("2017-05-02 09:32:11"), in which case the row has four fields.
func ParseHVTable(data []byte) (*HVTable, error) {
	table := &HVTable{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		row, err := parseHVRow(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		table.Rows = append(table.Rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

func parseHVRow(text string) (HVRow, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ',' || r == ';'
	})
	switch len(fields) {
	case 3:
	case 4:
		fields = []string{fields[0] + " " + fields[1], fields[2], fields[3]}
	default:
		return HVRow{}, fmt.Errorf("want 3 columns, got %d", len(fields))
	}

	ts, err := meta.ParseTime(fields[0])
	if err != nil {
		return HVRow{}, fmt.Errorf("timestamp %q: %w", fields[0], err)
	}
	v, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return HVRow{}, fmt.Errorf("value %q: %w", fields[2], err)
	}
	return HVRow{Time: ts, Block: fields[1], Value: v}, nil
}
