package benchmark

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Point is one (timestamp, value) sample from a benchmark series.
type Point struct {
	Timestamp int64
	Value     float64
}

type seriesObject struct {
	Name string      `json:"name"`
	Data [][]float64 `json:"data"`
}

// ParseSeries extracts the sample for targetName from a benchmark feed. The
// upstream endpoints serve three shapes and give no content-type hint, so all
// three are tried in order:
//
//   - list of CSV strings "name,timestamp,value": first matching line wins
//   - list of {"name": ..., "data": [[ts, value], ...]}: last point of the
//     first matching series wins
//   - map of name to [[ts, value], ...]: last point wins
//
// Returns false when the target does not appear in the feed.
func ParseSeries(raw json.RawMessage, targetName string) (Point, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Point{}, false
	}

	switch trimmed[0] {
	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(raw, &elements); err != nil || len(elements) == 0 {
			return Point{}, false
		}

		first := strings.TrimSpace(string(elements[0]))
		if first == "" {
			return Point{}, false
		}
		switch first[0] {
		case '"':
			return parseCSVLines(elements, targetName)
		case '{':
			return parseSeriesObjects(raw, targetName)
		}
	case '{':
		return parseSeriesMap(raw, targetName)
	}
	return Point{}, false
}

func parseCSVLines(elements []json.RawMessage, targetName string) (Point, bool) {
	for _, element := range elements {
		var line string
		if err := json.Unmarshal(element, &line); err != nil {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 3 || strings.TrimSpace(parts[0]) != targetName {
			continue
		}
		ts, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			continue
		}
		return Point{Timestamp: ts, Value: value}, true
	}
	return Point{}, false
}

func parseSeriesObjects(raw json.RawMessage, targetName string) (Point, bool) {
	var series []seriesObject
	if err := json.Unmarshal(raw, &series); err != nil {
		return Point{}, false
	}
	for _, s := range series {
		if s.Name != targetName {
			continue
		}
		return lastPoint(s.Data)
	}
	return Point{}, false
}

func parseSeriesMap(raw json.RawMessage, targetName string) (Point, bool) {
	var series map[string][][]float64
	if err := json.Unmarshal(raw, &series); err != nil {
		return Point{}, false
	}
	data, ok := series[targetName]
	if !ok {
		return Point{}, false
	}
	return lastPoint(data)
}

func lastPoint(data [][]float64) (Point, bool) {
	if len(data) == 0 {
		return Point{}, false
	}
	last := data[len(data)-1]
	if len(last) < 2 {
		return Point{}, false
	}
	return Point{Timestamp: int64(last[0]), Value: last[1]}, true
}
