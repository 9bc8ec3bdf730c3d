package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// requiredColumns are the header names a batch must carry. Everything else
// (name, phone, timezone, service_id, staff_id) is optional.
var requiredColumns = []string{"email", "service_name", "start_time", "end_time"}

// datetimeLayouts are tried in order; the first match wins. Ordering matters
// for ambiguous day/month values, mirroring the deployment locale.
var datetimeLayouts = []string{
	"01/02/2006 15:04:05",
	"01/02/2006 03:04:05 PM",
	"01-02-2006 15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02/01/2006 15:04:05",
	"02/01/2006 03:04:05 PM",
	"01/02/2006 15:04",
	"2006-01-02 15:04",
	time.RFC3339,
}

// ParseResult carries the usable rows of a batch plus ordered skip reasons
// for rows the parser had to drop (bad datetimes, missing email).
type ParseResult struct {
	Rows      []Row
	RowErrors []string
}

// parseDatetime parses a timestamp using the supported layouts. Naive values
// are interpreted as UTC.
func parseDatetime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", value)
}

// normalizeHeader canonicalizes a header cell: trimmed, lower-cased, spaces
// collapsed to underscores.
func normalizeHeader(h string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
}

// DetectHeaders reads only the header line and reports the normalized column
// names alongside any required columns the payload is missing.
func DetectHeaders(payload []byte) (headers []string, missing []string, err error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1

	record, err := reader.Read()
	if err != nil {
		return nil, nil, &ValidationError{Reason: "payload is not a recognizable CSV"}
	}

	seen := make(map[string]bool, len(record))
	for _, h := range record {
		name := normalizeHeader(h)
		headers = append(headers, name)
		seen[name] = true
	}
	for _, col := range requiredColumns {
		if !seen[col] {
			missing = append(missing, col)
		}
	}
	sort.Strings(missing)
	return headers, missing, nil
}

// ParseCSV reads the whole payload and validates the header before returning
// any rows, so a malformed batch is rejected without side effects. Rows whose
// datetimes cannot be parsed, or that carry no email, are skipped with one
// entry in RowErrors each; they never reach persistence.
func ParseCSV(payload []byte) (*ParseResult, error) {
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1 // rows may be ragged; missing cells read as empty

	header, err := reader.Read()
	if err != nil {
		return nil, &ValidationError{Reason: "payload is not a recognizable CSV"}
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		name := normalizeHeader(h)
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &ValidationError{Reason: "missing required columns: " + strings.Join(missing, ", ")}
	}

	field := func(record []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	result := &ParseResult{}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			result.RowErrors = append(result.RowErrors,
				fmt.Sprintf("row %d skipped: malformed CSV record", line))
			continue
		}

		row := Row{
			Line:        line,
			Name:        field(record, "name"),
			Email:       field(record, "email"),
			Phone:       field(record, "phone"),
			ServiceName: field(record, "service_name"),
			ServiceID:   field(record, "service_id"),
			StaffID:     field(record, "staff_id"),
			Timezone:    field(record, "timezone"),
		}

		if row.Email == "" {
			result.RowErrors = append(result.RowErrors,
				fmt.Sprintf("row %d skipped: missing email for name=%q", line, row.Name))
			continue
		}

		start, startErr := parseDatetime(field(record, "start_time"))
		end, endErr := parseDatetime(field(record, "end_time"))
		if startErr != nil || endErr != nil {
			result.RowErrors = append(result.RowErrors,
				fmt.Sprintf("row %d skipped: invalid start_time or end_time", line))
			continue
		}
		row.StartTime = start
		row.EndTime = end

		result.Rows = append(result.Rows, row)
	}

	return result, nil
}
