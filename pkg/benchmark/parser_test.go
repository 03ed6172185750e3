package benchmark

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSeriesCSVLines(t *testing.T) {
	raw := json.RawMessage(`[
		"otherbp,1700000000,0.210",
		"turtlebp,1700000100,0.301",
		"turtlebp,1700000200,0.450"
	]`)

	point, ok := ParseSeries(raw, "turtlebp")
	assert.True(t, ok)
	// First matching line wins for the CSV shape.
	assert.Equal(t, int64(1700000100), point.Timestamp)
	assert.InDelta(t, 0.301, point.Value, 1e-9)
}

func TestParseSeriesCSVSkipsMalformedLines(t *testing.T) {
	raw := json.RawMessage(`[
		"turtlebp,notanumber,0.3",
		"turtlebp,1700000300,0.123"
	]`)

	point, ok := ParseSeries(raw, "turtlebp")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000300), point.Timestamp)
	assert.InDelta(t, 0.123, point.Value, 1e-9)
}

func TestParseSeriesObjectList(t *testing.T) {
	raw := json.RawMessage(`[
		{"name": "otherbp", "data": [[1700000000, 0.2]]},
		{"name": "turtlebp", "data": [[1700000000, 0.25], [1700000300, 0.38]]}
	]`)

	point, ok := ParseSeries(raw, "turtlebp")
	assert.True(t, ok)
	// Last point of the matching series wins.
	assert.Equal(t, int64(1700000300), point.Timestamp)
	assert.InDelta(t, 0.38, point.Value, 1e-9)
}

func TestParseSeriesMap(t *testing.T) {
	raw := json.RawMessage(`{
		"turtlebp": [[1700000000, 0.31], [1700000600, 0.29]],
		"otherbp": [[1700000000, 0.5]]
	}`)

	point, ok := ParseSeries(raw, "turtlebp")
	assert.True(t, ok)
	assert.Equal(t, int64(1700000600), point.Timestamp)
	assert.InDelta(t, 0.29, point.Value, 1e-9)
}

func TestParseSeriesTargetNotFound(t *testing.T) {
	cases := []json.RawMessage{
		[]byte(`["otherbp,1700000000,0.2"]`),
		[]byte(`[{"name": "otherbp", "data": [[1, 0.2]]}]`),
		[]byte(`{"otherbp": [[1, 0.2]]}`),
	}

	for _, raw := range cases {
		_, ok := ParseSeries(raw, "turtlebp")
		assert.False(t, ok, "input %s", raw)
	}
}

func TestParseSeriesDegenerateInputs(t *testing.T) {
	cases := []json.RawMessage{
		nil,
		[]byte(``),
		[]byte(`[]`),
		[]byte(`{}`),
		[]byte(`"just a string"`),
		[]byte(`42`),
		[]byte(`[[1, 2]]`),
		[]byte(`{"turtlebp": []}`),
		[]byte(`{"turtlebp": [[1700000000]]}`),
		[]byte(`[{"name": "turtlebp", "data": []}]`),
	}

	for _, raw := range cases {
		_, ok := ParseSeries(raw, "turtlebp")
		assert.False(t, ok, "input %s", raw)
	}
}
