package catalog

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/entrhq/hltvquery/pkg/logging"
)

// fieldSep separates id, name and url on a cache line.
const fieldSep = '|'

// ErrCacheRead describes a malformed cache line. Decode logs and skips
// such lines; it never returns this error to the caller.
var ErrCacheRead = errors.New("malformed cache line")

// Decode reads id|name|url records, one per line. Lines that do not have
// exactly three fields or whose id is not an integer are logged and
// skipped. It returns the records and the number of skipped lines.
//
// Fields that contain the separator or a quote are quoted. Older caches
// were written without quoting, so a line that does not parse as quoted
// fields is split on the separator as-is. Each line is decoded on its own;
// a bad line never affects the lines after it.
func Decode(r io.Reader, log *logging.Logger) ([]TeamRecord, int) {
	if log == nil {
		log = logging.NewNop()
	}

	var (
		records []TeamRecord
		skipped int
		line    int
	)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		rec, err := parseRecord(splitLine(text))
		if err != nil {
			log.Warnf("%v: line %d: %v", ErrCacheRead, line, err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		log.Errorf("reading team cache stopped at line %d: %v", line+1, err)
	}
	return records, skipped
}

// splitLine returns the fields of one cache line.
func splitLine(text string) []string {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = fieldSep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	fields, err := cr.Read()
	if err == nil && len(fields) == 3 {
		return fields
	}
	if plain := strings.Split(text, string(fieldSep)); len(plain) == 3 || err != nil {
		return plain
	}
	return fields
}

func parseRecord(fields []string) (TeamRecord, error) {
	if len(fields) != 3 {
		return TeamRecord{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	id, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return TeamRecord{}, fmt.Errorf("invalid team id %q", fields[0])
	}
	return TeamRecord{
		ID:   id,
		Name: strings.TrimSpace(fields[1]),
		URL:  strings.TrimSpace(fields[2]),
	}, nil
}

// Encode writes records one per line.
func Encode(w io.Writer, records []TeamRecord) error {
	cw := csv.NewWriter(w)
	cw.Comma = fieldSep
	for _, rec := range records {
		if err := cw.Write([]string{strconv.Itoa(rec.ID), rec.Name, rec.URL}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
