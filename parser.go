package leapsec

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads the published tai-utc.dat format from r: whitespace-separated
// columns with the year, three-letter month abbreviation and day in columns
// 1-3 and the cumulative TAI−UTC offset in column 7. Lines with fewer than 7
// tokens are headers or footers and are skipped. An unrecognized month aborts
// the whole parse: a silently wrong offset is worse than a failed refresh.
func Parse(r io.Reader, logger *slog.Logger) ([]Record, error) {
	scanner := bufio.NewScanner(r)
	var records []Record
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		tokens := strings.Fields(scanner.Text())
		if len(tokens) < 7 {
			continue
		}

		year, err := strconv.Atoi(tokens[0])
		if err != nil {
			logger.Warn("skipping leap record with invalid year", "line", lineNo, "year", tokens[0])
			continue
		}
		month, ok := monthNum(tokens[1])
		if !ok {
			return nil, fmt.Errorf("%w: unknown month %q on line %d", ErrMalformedTable, tokens[1], lineNo)
		}
		day, err := strconv.Atoi(tokens[2])
		if err != nil {
			logger.Warn("skipping leap record with invalid day", "line", lineNo, "day", tokens[2])
			continue
		}
		offset, err := strconv.ParseFloat(tokens[6], 64)
		if err != nil {
			logger.Warn("skipping leap record with invalid offset", "line", lineNo, "offset", tokens[6])
			continue
		}

		utc := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		records = append(records, Record{
			EffectiveUTC: utc,
			EffectiveTAI: utc.Add(secondsToDuration(offset)),
			Offset:       offset,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading leap-second table: %w", err)
	}

	return records, nil
}

// monthNum maps a case-insensitive three-letter month abbreviation to its
// time.Month. The full set is enumerated here rather than built from a
// dictionary so an unknown abbreviation cannot map to a wrong month.
func monthNum(abbr string) (time.Month, bool) {
	switch strings.ToUpper(abbr) {
	case "JAN":
		return time.January, true
	case "FEB":
		return time.February, true
	case "MAR":
		return time.March, true
	case "APR":
		return time.April, true
	case "MAY":
		return time.May, true
	case "JUN":
		return time.June, true
	case "JUL":
		return time.July, true
	case "AUG":
		return time.August, true
	case "SEP":
		return time.September, true
	case "OCT":
		return time.October, true
	case "NOV":
		return time.November, true
	case "DEC":
		return time.December, true
	default:
		return 0, false
	}
}
