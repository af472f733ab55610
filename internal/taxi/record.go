package taxi

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
)

// TimeLayout is the timestamp pattern used by the dataset.
const TimeLayout = "2006-01-02 15:04:05"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Location is a [lon, lat] coordinate pair.
type Location struct {
	Lon float64
	Lat float64
}

func (l Location) point() store.GeoPoint {
	return store.GeoPoint{Lon: l.Lon, Lat: l.Lat}
}

// Record is one successfully parsed trip.
type Record struct {
	TotalAmount          float64
	ImprovementSurcharge float64
	PickupLocation       Location
	DropoffLocation      Location
	PickupTime           time.Time
	DropoffTime          time.Time
	TripType             int64
	RateCodeID           int64
	TollsAmount          float64
	PassengerCount       int64
	FareAmount           float64
	Extra                float64
	TripDistance         float64
	TipAmount            float64
	MTATax               float64
	StoreAndFwdFlag      string
	PaymentType          string
	VendorID             string

	// Description is derived from the other fields.
	Description string
}

// wireRecord mirrors the JSON line. Required fields are pointers or slices
// so that absence can be told apart from zero.
type wireRecord struct {
	TotalAmount          float64    `json:"total_amount"`
	ImprovementSurcharge float64    `json:"improvement_surcharge"`
	PickupLocation       []float64  `json:"pickup_location"`
	DropoffLocation      []float64  `json:"dropoff_location"`
	PickupDateTime       *timestamp `json:"pickup_datetime"`
	DropoffDateTime      *timestamp `json:"dropoff_datetime"`
	TripType             flexInt    `json:"trip_type"`
	RateCodeID           flexInt    `json:"rate_code_id"`
	TollsAmount          float64    `json:"tolls_amount"`
	PassengerCount       flexInt    `json:"passenger_count"`
	FareAmount           float64    `json:"fare_amount"`
	Extra                float64    `json:"extra"`
	TripDistance         float64    `json:"trip_distance"`
	TipAmount            float64    `json:"tip_amount"`
	StoreAndFwdFlag      string     `json:"store_and_fwd_flag"`
	PaymentType          flexString `json:"payment_type"`
	MTATax               float64    `json:"mta_tax"`
	VendorID             flexString `json:"vendor_id"`
}

// Parse decodes one line into a Record.
// Malformed JSON, wrongly typed values and missing coordinates or
// timestamps yield a parse error; unknown keys are ignored and absent
// numeric fields stay zero.
func Parse(line string) (*Record, error) {
	var w wireRecord
	if err := json.UnmarshalFromString(line, &w); err != nil {
		return nil, errors.ParseError("invalid trip json", err)
	}

	pickup, err := location(FieldPickupLocation, w.PickupLocation)
	if err != nil {
		return nil, err
	}
	dropoff, err := location(FieldDropoffLocation, w.DropoffLocation)
	if err != nil {
		return nil, err
	}
	if w.PickupDateTime == nil {
		return nil, missingField(FieldPickupDateTime)
	}
	if w.DropoffDateTime == nil {
		return nil, missingField(FieldDropoffDateTime)
	}

	r := &Record{
		TotalAmount:          w.TotalAmount,
		ImprovementSurcharge: w.ImprovementSurcharge,
		PickupLocation:       pickup,
		DropoffLocation:      dropoff,
		PickupTime:           w.PickupDateTime.Time,
		DropoffTime:          w.DropoffDateTime.Time,
		TripType:             int64(w.TripType),
		RateCodeID:           int64(w.RateCodeID),
		TollsAmount:          w.TollsAmount,
		PassengerCount:       int64(w.PassengerCount),
		FareAmount:           w.FareAmount,
		Extra:                w.Extra,
		TripDistance:         w.TripDistance,
		TipAmount:            w.TipAmount,
		MTATax:               w.MTATax,
		StoreAndFwdFlag:      w.StoreAndFwdFlag,
		PaymentType:          string(w.PaymentType),
		VendorID:             string(w.VendorID),
	}
	r.Description = describe(r)
	return r, nil
}

func location(f Field, v []float64) (Location, error) {
	if v == nil {
		return Location{}, missingField(f)
	}
	if len(v) != 2 {
		return Location{}, errors.New(errors.ErrCodeParseFailed,
			fmt.Sprintf("%s must hold exactly 2 coordinates, got %d", f.JSONName(), len(v)), nil)
	}
	return Location{Lon: v[0], Lat: v[1]}, nil
}

func missingField(f Field) error {
	return errors.New(errors.ErrCodeMissingField,
		fmt.Sprintf("missing required field %s", f.JSONName()), nil).
		WithDetail("field", f.JSONName())
}

func describe(r *Record) string {
	return fmt.Sprintf("Picked up %d passengers at %s and dropped at %s and"+
		" total amount charged was %s with a distance of %s",
		r.PassengerCount,
		formatLocal(r.PickupTime),
		formatLocal(r.DropoffTime),
		formatDecimal(r.TotalAmount),
		formatDecimal(r.TripDistance))
}

// formatLocal renders an ISO local date-time and leaves out seconds when
// they are zero, so 00:10:00 renders as "T00:10".
func formatLocal(t time.Time) string {
	if t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02T15:04")
	}
	return t.Format("2006-01-02T15:04:05")
}

// formatDecimal always keeps a fractional part, so 10 renders as "10.0".
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEN") {
		s += ".0"
	}
	return s
}

// timestamp decodes the dataset's "2006-01-02 15:04:05" strings as UTC.
type timestamp struct {
	time.Time
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("timestamp is null")
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := time.ParseInLocation(TimeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// flexInt accepts 2, "2" and "" (as zero). The dataset encodes codes such
// as trip_type as quoted numbers.
type flexInt int64

func (n *flexInt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
		if s == "" {
			*n = 0
			return nil
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return fmt.Errorf("not an integer: %s", s)
		}
		v = int64(f)
	}
	*n = flexInt(v)
	return nil
}

// flexString accepts "2" and 2 as the string "2".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	raw := string(data)
	switch {
	case raw == "null":
		return nil
	case strings.HasPrefix(raw, `"`):
		unq, err := strconv.Unquote(raw)
		if err != nil {
			return err
		}
		*s = flexString(unq)
	case raw == "true" || raw == "false" || strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "["):
		return fmt.Errorf("not a scalar: %s", raw)
	default:
		*s = flexString(raw)
	}
	return nil
}
