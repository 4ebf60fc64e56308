package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"market-relay/src/flatten"
	"market-relay/src/helpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const datePayload = `{
	"2025-01-02": {"Date":"2025-01-02","Open":100,"High":102,"Low":99,"Close":101,"Volume":1000000,"Instrument":"QQQ",
		"Panels":{"Panel ?":{"SMA":98.5,"Mean":null}}},
	"2025-01-03": {"Date":"2025-01-03","Open":101,"High":103,"Low":100,"Close":102,"Volume":900000,"Instrument":"QQQ"}
}`

const envelopePayload = `{
	"instrument": "QQQ",
	"bars": [
		{"time":"2025-11-13T09:30:00","open":500.25,"high":502.5,"low":499.75,"close":501,"volume":1500000,
		 "sma_20":498.5,"donchian_mean":500,"bollinger_upper":503,"momentum":2.5,"atr":3.45,"unknown_thing":7}
	]
}`

func TestDecodeDateMap(t *testing.T) {
	d, err := Decode([]byte(datePayload))
	require.NoError(t, err)

	assert.False(t, d.Envelope)
	assert.Empty(t, d.Skipped)
	require.Len(t, d.Snapshot, 2)
	assert.Equal(t, "QQQ", d.Snapshot.Instrument())
	assert.Equal(t, json.Number("100"), d.Snapshot["2025-01-02"].Open)
}

func TestDecodeSkipsBrokenBars(t *testing.T) {
	d, err := Decode([]byte(`{"2025-01-02":{"Open":1,"High":1,"Low":1,"Close":1,"Volume":1},"2025-01-03":[1,2],"2025-01-04":{"Open":"abc"}}`))
	require.NoError(t, err)
	assert.Len(t, d.Snapshot, 1)
	assert.Len(t, d.Skipped, 2)
}

func TestDecodeRejectsNonObjects(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2,3]`, `"text"`, `null`} {
		_, err := Decode([]byte(payload))
		var vErr *helpers.ValidationError
		assert.True(t, errors.As(err, &vErr), payload)
	}
}

func TestDecodeEnvelope(t *testing.T) {
	d, err := Decode([]byte(envelopePayload))
	require.NoError(t, err)

	assert.True(t, d.Envelope)
	require.Len(t, d.Snapshot, 1)
	bar := d.Snapshot["2025-11-13T09:30:00"]
	assert.Equal(t, "QQQ", bar.Instrument)
	assert.Equal(t, "2025-11-13T09:30:00", bar.Date)

	flat, err := flatten.Bar("2025-11-13T09:30:00", bar)
	require.NoError(t, err)
	assert.Equal(t, 500.25, flat.Open)
	assert.Equal(t, int64(1500000), flat.Volume)
	assert.Equal(t, 498.5, flat.Indicators["sma20"])
	assert.Equal(t, 500.0, flat.Indicators["dc_middle"])
	assert.Equal(t, 503.0, flat.Indicators["bb_upper"])
	assert.Equal(t, 2.5, flat.Indicators["momentum"])
	assert.Equal(t, 3.45, flat.Indicators["atr"])
	assert.Len(t, flat.Indicators, 5)
}

func TestFromEnvelopeValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"empty instrument", `{"instrument":"","bars":[{"time":"t"}]}`},
		{"empty bars", `{"instrument":"QQQ","bars":[]}`},
		{"missing time", `{"instrument":"QQQ","bars":[{"open":1}]}`},
		{"non numeric price", `{"instrument":"QQQ","bars":[{"time":"t","open":"x"}]}`},
		{"bars not a list", `{"instrument":"QQQ","bars":{"a":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			var vErr *helpers.ValidationError
			assert.True(t, errors.As(err, &vErr), "got %v", err)
		})
	}
}

func TestWriterAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "live_market_data.json")

	d, err := Decode([]byte(datePayload))
	require.NoError(t, err)

	n, err := NewWriter(path).Write(d.Snapshot)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	back, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, d.Snapshot, back.Snapshot)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "live.json")
	require.NoError(t, WriteFileAtomic(path, []byte(`{"a":1}`), 0644))
	require.NoError(t, WriteFileAtomic(path, []byte(`{"b":2}`), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(data))
}

func TestReadFailures(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing.json"))
	var snapErr *helpers.SnapshotError
	require.True(t, errors.As(err, &snapErr))
	assert.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"2025-01-02": {`), 0644))
	_, err = Read(broken)
	assert.True(t, errors.As(err, &snapErr))

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{}`), 0644))
	_, err = Read(empty)
	assert.True(t, errors.As(err, &snapErr))
}
