package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/gitperf/internal/codec"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	records := []codec.Record{
		{
			Epoch:     1,
			Name:      "wall_clock",
			Timestamp: 1700000000.5,
			Value:     12.34,
			KeyValues: map[string]string{"os": "linux", "arch": "amd64"},
		},
		{
			Epoch:     2,
			Name:      "rss_bytes",
			Timestamp: 1700000001,
			Value:     1048576,
		},
	}

	blob := codec.Encode(records)
	got := codec.Decode(blob)

	assert.Equal(t, records, got)
}

func TestEncodeIsStableRegardlessOfMapOrder(t *testing.T) {
	r := codec.Record{
		Epoch:     1,
		Name:      "x",
		Timestamp: 1,
		Value:     2,
		KeyValues: map[string]string{"z": "1", "a": "2", "m": "3"},
	}

	first := codec.Encode([]codec.Record{r})
	second := codec.Encode([]codec.Record{r})
	assert.Equal(t, first, second)
	assert.Contains(t, first, "a=2"+codec.FieldSeparator+"m=3"+codec.FieldSeparator+"z=1")
}

func TestDecodeSkipsMalformedLines(t *testing.T) {
	blob := "1" + codec.FieldSeparator + "name" + codec.FieldSeparator + "1" + codec.FieldSeparator + "2\n" +
		"not-enough-fields\n" +
		"bad" + codec.FieldSeparator + "name" + codec.FieldSeparator + "notanumber" + codec.FieldSeparator + "2\n" +
		"\n"

	got := codec.Decode(blob)
	assert.Len(t, got, 1)
	assert.Equal(t, "name", got[0].Name)
}

func TestDecodeSkipsKeyValueWithoutEquals(t *testing.T) {
	blob := "1" + codec.FieldSeparator + "name" + codec.FieldSeparator + "1" + codec.FieldSeparator + "2" + codec.FieldSeparator + "badtag\n"

	got := codec.Decode(blob)
	assert.Empty(t, got)
}

func TestDecodeRejectsNameWithWhitespace(t *testing.T) {
	blob := "1" + codec.FieldSeparator + "bad name" + codec.FieldSeparator + "1" + codec.FieldSeparator + "2\n"

	got := codec.Decode(blob)
	assert.Empty(t, got)
}

func TestDecodeDuplicateKeyKeepsLastSeen(t *testing.T) {
	blob := "1" + codec.FieldSeparator + "name" + codec.FieldSeparator + "1" + codec.FieldSeparator + "2" +
		codec.FieldSeparator + "k=first" + codec.FieldSeparator + "k=second\n"

	got := codec.Decode(blob)
	require := assert.New(t)
	require.Len(got, 1)
	require.Equal("second", got[0].KeyValues["k"])
}
