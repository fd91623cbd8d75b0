package airquality

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var jsonNull = []byte("null")

// DecodeRecord maps one positional record onto a SensorRecord using the
// field names it was requested with. fields must include the leading id
// (see Query.RecordFields). A length mismatch means the declared field list
// and the response shape disagree and is reported as ErrFieldCountMismatch.
// The returned record shares fields as its layout.
func DecodeRecord(fields []string, raw []json.RawMessage) (SensorRecord, error) {
	rec := SensorRecord{Fields: fields}

	if len(fields) != len(raw) {
		return SensorRecord{}, fmt.Errorf("%w: %d fields, %d values", ErrFieldCountMismatch, len(fields), len(raw))
	}

	for i, name := range fields {
		if err := rec.set(name, raw[i]); err != nil {
			return SensorRecord{}, err
		}
	}

	return rec, nil
}

// DecodeRecords decodes every record of a response. The first failure aborts
// the whole batch.
func DecodeRecords(fields []string, rows [][]json.RawMessage) ([]SensorRecord, error) {
	records := make([]SensorRecord, 0, len(rows))
	for i, row := range rows {
		rec, err := DecodeRecord(fields, row)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *SensorRecord) set(name string, v json.RawMessage) error {
	var dst any
	switch name {
	case FieldID:
		dst = &r.ID
	case FieldName:
		dst = &r.Name
	case FieldPrivate:
		dst = &r.Private
	case FieldLastSeen:
		dst = &r.LastSeen
	case FieldLatitude:
		dst = &r.Latitude
	case FieldLongitude:
		dst = &r.Longitude
	case FieldPositionRating:
		dst = &r.PositionRating
	case FieldPM1:
		dst = &r.PM1
	case FieldPM25:
		dst = &r.PM25
	case FieldPM10:
		dst = &r.PM10
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	if len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), jsonNull) {
		return nil
	}

	if err := json.Unmarshal(v, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidFieldValue, name, err)
	}
	return nil
}
