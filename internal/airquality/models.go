// Package airquality provides sensor record decoding, EPA index conversion
// and normalization of air quality readings.
package airquality

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Decoding errors.
var (
	ErrFieldCountMismatch = errors.New("field list and record length differ")
	ErrUnknownField       = errors.New("unknown sensor field")
	ErrInvalidFieldValue  = errors.New("invalid sensor field value")
)

// Sensor field names as understood by the sensor-listing endpoint.
const (
	FieldID             = "id"
	FieldName           = "name"
	FieldPrivate        = "private"
	FieldLastSeen       = "last_seen"
	FieldLatitude       = "latitude"
	FieldLongitude      = "longitude"
	FieldPositionRating = "position_rating"
	FieldPM1            = "pm1.0"
	FieldPM25           = "pm2.5"
	FieldPM10           = "pm10.0"
)

// DefaultFields is the sensor field list requested when none is configured.
// The id is always returned first by the API and is not part of the list.
var DefaultFields = []string{
	FieldName,
	FieldPrivate,
	FieldLastSeen,
	FieldLatitude,
	FieldLongitude,
	FieldPositionRating,
	FieldPM1,
	FieldPM25,
	FieldPM10,
}

// KnownField reports whether name is a sensor field this package can decode.
func KnownField(name string) bool {
	switch name {
	case FieldID, FieldName, FieldPrivate, FieldLastSeen, FieldLatitude, FieldLongitude,
		FieldPositionRating, FieldPM1, FieldPM25, FieldPM10:
		return true
	}
	return false
}

// LocationOutside restricts the sensor listing to outdoor sensors.
const LocationOutside = 0

// BoundingBox is a rectangular query region given by its northwest and
// southeast corners in decimal degrees.
type BoundingBox struct {
	NWLat float64
	NWLng float64
	SELat float64
	SELng float64
}

// Valid reports whether the north edge lies above the south edge.
// Invalid boxes are still sent upstream; the API decides whether to reject them.
func (b BoundingBox) Valid() bool {
	return b.NWLat > b.SELat
}

// Query describes one sensor-listing request.
type Query struct {
	Box BoundingBox

	// MaxAge only includes sensors updated within this many seconds.
	MaxAge int

	// LocationType filters by sensor placement (0 = outside).
	LocationType int

	// Fields is the ordered sensor field list, excluding the id.
	// If empty, DefaultFields is used.
	Fields []string
}

// FieldList returns the configured field list or DefaultFields.
func (q Query) FieldList() []string {
	if len(q.Fields) == 0 {
		return DefaultFields
	}
	return q.Fields
}

// RecordFields returns the positional layout of a returned record:
// the id followed by the field list.
func (q Query) RecordFields() []string {
	fields := q.FieldList()
	out := make([]string, 0, len(fields)+1)
	out = append(out, FieldID)
	return append(out, fields...)
}

// SensorRecord is one sensor row of a listing response. Every field except
// the id is nil when it was not requested or the API sent null.
type SensorRecord struct {
	ID             int64
	Name           *string
	Private        *int
	LastSeen       *float64
	Latitude       *float64
	Longitude      *float64
	PositionRating *int
	PM1            *float64
	PM25           *float64
	PM10           *float64

	// Fields is the positional layout the record was decoded with, id first.
	Fields []string
}

// Batch is a decoded listing response.
type Batch struct {
	// Response metadata, kept verbatim.
	APIVersion             json.RawMessage
	LocationType           json.RawMessage
	MaxAge                 json.RawMessage
	FirmwareDefaultVersion json.RawMessage

	// TimeStamp is when the response was generated, in epoch seconds.
	TimeStamp *float64

	// DataTimeStamp is when the underlying data was last refreshed.
	DataTimeStamp *float64

	Records []SensorRecord
}

// Reading is a normalized, flat sensor reading ready for emission.
// It marshals to an object holding exactly the sensor fields in Fields, in
// that order, followed by epa_iaqi_25, the batch metadata and the two batch
// timestamps.
type Reading struct {
	ID             int64
	Name           *string
	Private        *int
	LastSeen       *string
	Latitude       *float64
	Longitude      *float64
	PositionRating *int
	PM1            *float64
	PM25           *float64
	PM10           *float64

	// EPAIAQI25 is nil where the EPA index is undefined.
	EPAIAQI25 *int

	APIVersion             json.RawMessage
	LocationType           json.RawMessage
	MaxAge                 json.RawMessage
	FirmwareDefaultVersion json.RawMessage
	TimeStamp              *string
	DataTimeStamp          *string

	// Fields lists the sensor fields carried by the reading, id first.
	// Empty means the id followed by DefaultFields.
	Fields []string
}

// Output keys that follow the sensor fields.
const (
	KeyEPAIAQI25              = "epa_iaqi_25"
	KeyAPIVersion             = "api_version"
	KeyLocationType           = "location_type"
	KeyMaxAge                 = "max_age"
	KeyFirmwareDefaultVersion = "firmware_default_version"
	KeyTimeStamp              = "time_stamp"
	KeyDataTimeStamp          = "data_time_stamp"
)

// MarshalJSON writes the reading as a flat object in emission order.
// Requested fields the API sent as null are written as null; fields that
// were not requested are left out.
func (r Reading) MarshalJSON() ([]byte, error) {
	fields := r.Fields
	if len(fields) == 0 {
		fields = Query{}.RecordFields()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	// Encode terminates every value with a newline; it is cut off again.
	put := func(v any) error {
		if err := enc.Encode(v); err != nil {
			return err
		}
		buf.Truncate(buf.Len() - 1)
		return nil
	}
	member := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		if err := put(key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := put(v); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		return nil
	}

	buf.WriteByte('{')
	for _, name := range fields {
		v, ok := r.field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		if err := member(name, v); err != nil {
			return nil, err
		}
	}

	tail := []struct {
		key string
		v   any
	}{
		{KeyEPAIAQI25, r.EPAIAQI25},
		{KeyAPIVersion, r.APIVersion},
		{KeyLocationType, r.LocationType},
		{KeyMaxAge, r.MaxAge},
		{KeyFirmwareDefaultVersion, r.FirmwareDefaultVersion},
		{KeyTimeStamp, r.TimeStamp},
		{KeyDataTimeStamp, r.DataTimeStamp},
	}
	for _, m := range tail {
		if err := member(m.key, m.v); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')

	return buf.Bytes(), nil
}

func (r Reading) field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldName:
		return r.Name, true
	case FieldPrivate:
		return r.Private, true
	case FieldLastSeen:
		return r.LastSeen, true
	case FieldLatitude:
		return r.Latitude, true
	case FieldLongitude:
		return r.Longitude, true
	case FieldPositionRating:
		return r.PositionRating, true
	case FieldPM1:
		return r.PM1, true
	case FieldPM25:
		return r.PM25, true
	case FieldPM10:
		return r.PM10, true
	}
	return nil, false
}
