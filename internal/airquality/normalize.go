package airquality

import (
	"math"
	"time"
)

const (
	// isoLayout renders UTC with an explicit +00:00 offset rather than Z.
	isoLayout = "2006-01-02T15:04:05-07:00"

	// isoLayoutMicro is used when the instant has a sub-second part.
	isoLayoutMicro = "2006-01-02T15:04:05.000000-07:00"
)

// ISOTime converts epoch seconds to an ISO-8601 string in UTC. The value is
// rounded to the microsecond; a fractional part is written with six digits
// and whole seconds are written without one.
func ISOTime(epoch float64) string {
	sec := math.Floor(epoch)
	micros := int64(math.RoundToEven((epoch - sec) * 1e6))
	if micros >= 1e6 {
		sec++
		micros -= 1e6
	}

	t := time.Unix(int64(sec), micros*int64(time.Microsecond)).UTC()
	if micros == 0 {
		return t.Format(isoLayout)
	}
	return t.Format(isoLayoutMicro)
}

func isoTimePtr(epoch *float64) *string {
	if epoch == nil {
		return nil
	}
	s := ISOTime(*epoch)
	return &s
}

// NormalizeRecord builds a Reading from a single record. Batch metadata and
// timestamps are taken from b; b.Records is not consulted.
func NormalizeRecord(b *Batch, rec SensorRecord) Reading {
	reading := Reading{
		ID:             rec.ID,
		Name:           rec.Name,
		Private:        rec.Private,
		LastSeen:       isoTimePtr(rec.LastSeen),
		Latitude:       rec.Latitude,
		Longitude:      rec.Longitude,
		PositionRating: rec.PositionRating,
		PM1:            rec.PM1,
		PM25:           rec.PM25,
		PM10:           rec.PM10,
		Fields:         rec.Fields,

		APIVersion:             b.APIVersion,
		LocationType:           b.LocationType,
		MaxAge:                 b.MaxAge,
		FirmwareDefaultVersion: b.FirmwareDefaultVersion,
		TimeStamp:              isoTimePtr(b.TimeStamp),
		DataTimeStamp:          isoTimePtr(b.DataTimeStamp),
	}

	if rec.PM25 != nil {
		if iaqi, ok := EPAIAQIPM25(*rec.PM25); ok {
			reading.EPAIAQI25 = &iaqi
		}
	}

	return reading
}

// Normalize converts every record of a batch into a Reading, broadcasting
// the batch metadata onto each one.
func Normalize(b *Batch) []Reading {
	readings := make([]Reading, 0, len(b.Records))
	for _, rec := range b.Records {
		readings = append(readings, NormalizeRecord(b, rec))
	}
	return readings
}
