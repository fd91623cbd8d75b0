package airquality_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/getaq/internal/airquality"
)

func rawRow(t *testing.T, row string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(row), &out))
	return out
}

func TestDecodeRecord(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	row := rawRow(t, `[131075,"Shadyside",0,1699999950,40.4523,-79.9361,5,3.1,12.0,14.7]`)

	rec, err := airquality.DecodeRecord(fields, row)
	require.NoError(t, err)

	assert.Equal(t, int64(131075), rec.ID)
	assert.Equal(t, fields, rec.Fields)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Shadyside", *rec.Name)
	require.NotNil(t, rec.Private)
	assert.Equal(t, 0, *rec.Private)
	require.NotNil(t, rec.LastSeen)
	assert.Equal(t, 1699999950.0, *rec.LastSeen)
	require.NotNil(t, rec.Latitude)
	assert.Equal(t, 40.4523, *rec.Latitude)
	require.NotNil(t, rec.Longitude)
	assert.Equal(t, -79.9361, *rec.Longitude)
	require.NotNil(t, rec.PositionRating)
	assert.Equal(t, 5, *rec.PositionRating)
	require.NotNil(t, rec.PM1)
	require.NotNil(t, rec.PM25)
	require.NotNil(t, rec.PM10)
	assert.Equal(t, 3.1, *rec.PM1)
	assert.Equal(t, 12.0, *rec.PM25)
	assert.Equal(t, 14.7, *rec.PM10)
}

func TestDecodeRecord_IntegerConcentration(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	row := rawRow(t, `[1,"a",0,1700000000,40.4,-79.9,5,1,7,9]`)

	rec, err := airquality.DecodeRecord(fields, row)
	require.NoError(t, err)
	require.NotNil(t, rec.PM25)
	assert.Equal(t, 7.0, *rec.PM25)
}

func TestDecodeRecord_FractionalLastSeen(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	row := rawRow(t, `[1,"a",0,1699999950.5,40.4,-79.9,5,1,7,9]`)

	rec, err := airquality.DecodeRecord(fields, row)
	require.NoError(t, err)
	require.NotNil(t, rec.LastSeen)
	assert.Equal(t, 1699999950.5, *rec.LastSeen)
}

func TestDecodeRecord_Nulls(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	row := rawRow(t, `[1,null,null,null,null,null,null,null,null,null]`)

	rec, err := airquality.DecodeRecord(fields, row)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.ID)
	assert.Nil(t, rec.Name)
	assert.Nil(t, rec.Private)
	assert.Nil(t, rec.LastSeen)
	assert.Nil(t, rec.Latitude)
	assert.Nil(t, rec.Longitude)
	assert.Nil(t, rec.PositionRating)
	assert.Nil(t, rec.PM1)
	assert.Nil(t, rec.PM25)
	assert.Nil(t, rec.PM10)
}

func TestDecodeRecord_CustomFieldOrder(t *testing.T) {
	q := airquality.Query{Fields: []string{"pm2.5", "name"}}
	row := rawRow(t, `[42,55.5,"Oakland"]`)

	rec, err := airquality.DecodeRecord(q.RecordFields(), row)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.ID)
	assert.Equal(t, []string{"id", "pm2.5", "name"}, rec.Fields)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "Oakland", *rec.Name)
	require.NotNil(t, rec.PM25)
	assert.Equal(t, 55.5, *rec.PM25)

	assert.Nil(t, rec.LastSeen)
	assert.Nil(t, rec.Latitude)
	assert.Nil(t, rec.Longitude)
}

func TestDecodeRecord_LengthMismatch(t *testing.T) {
	fields := airquality.Query{}.RecordFields()

	tests := []struct {
		name string
		row  string
	}{
		{"too short", `[1,"a",0,1700000000,40.4,-79.9,5,1,7]`},
		{"too long", `[1,"a",0,1700000000,40.4,-79.9,5,1,7,9,11]`},
		{"empty", `[]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := airquality.DecodeRecord(fields, rawRow(t, tt.row))
			assert.ErrorIs(t, err, airquality.ErrFieldCountMismatch)
		})
	}
}

func TestDecodeRecord_UnknownField(t *testing.T) {
	_, err := airquality.DecodeRecord([]string{"id", "humidity"}, rawRow(t, `[1,40]`))
	assert.ErrorIs(t, err, airquality.ErrUnknownField)
}

func TestDecodeRecord_InvalidValue(t *testing.T) {
	_, err := airquality.DecodeRecord([]string{"id", "pm2.5"}, rawRow(t, `[1,"high"]`))
	assert.ErrorIs(t, err, airquality.ErrInvalidFieldValue)
}

func TestDecodeRecords_AbortsOnFirstFailure(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	rows := [][]json.RawMessage{
		rawRow(t, `[1,"a",0,1700000000,40.4,-79.9,5,1,7,9]`),
		rawRow(t, `[2,"b",0,1700000000]`),
	}

	records, err := airquality.DecodeRecords(fields, rows)
	require.Error(t, err)
	assert.ErrorIs(t, err, airquality.ErrFieldCountMismatch)
	assert.Contains(t, err.Error(), "record 1")
	assert.Nil(t, records)
}

func TestQuery_RecordFields(t *testing.T) {
	fields := airquality.Query{}.RecordFields()
	require.Len(t, fields, len(airquality.DefaultFields)+1)
	assert.Equal(t, "id", fields[0])
	assert.Equal(t, airquality.DefaultFields, fields[1:])
}

func TestBoundingBox_Valid(t *testing.T) {
	assert.True(t, airquality.BoundingBox{NWLat: 40.5, SELat: 40.3}.Valid())
	assert.False(t, airquality.BoundingBox{NWLat: 40.3, SELat: 40.5}.Valid())
}

func TestKnownField(t *testing.T) {
	for _, f := range airquality.DefaultFields {
		assert.True(t, airquality.KnownField(f), f)
	}
	assert.True(t, airquality.KnownField("id"))
	assert.False(t, airquality.KnownField("humidity"))
	assert.False(t, airquality.KnownField(""))
}
