package taxi

import (
	"fmt"
	"strings"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
)

// Field identifies one indexed trip field.
type Field int

const (
	FieldTotalAmount Field = iota
	FieldImprovementSurcharge
	FieldPickupLocation
	FieldPickupDateTime
	FieldDropoffLocation
	FieldDropoffDateTime
	FieldTripType
	FieldRateCodeID
	FieldTollsAmount
	FieldPassengerCount
	FieldFareAmount
	FieldExtra
	FieldTripDistance
	FieldTipAmount
	FieldMTATax
	FieldStoreAndFwdFlag
	FieldPaymentType
	FieldVendorID
	FieldDescription

	numFields
)

type fieldInfo struct {
	name     string
	jsonName string
	kind     store.FieldKind
	value    func(r *Record) any
}

var fieldTable = [numFields]fieldInfo{
	FieldTotalAmount:          {"totalAmount", "total_amount", store.KindFloat, func(r *Record) any { return r.TotalAmount }},
	FieldImprovementSurcharge: {"improvementSurcharge", "improvement_surcharge", store.KindFloat, func(r *Record) any { return r.ImprovementSurcharge }},
	FieldPickupLocation:       {"pickUpLocation", "pickup_location", store.KindGeo, func(r *Record) any { return r.PickupLocation.point() }},
	FieldPickupDateTime:       {"pickUpDateTime", "pickup_datetime", store.KindInt, func(r *Record) any { return r.PickupTime.Unix() }},
	FieldDropoffLocation:      {"dropOffLocation", "dropoff_location", store.KindGeo, func(r *Record) any { return r.DropoffLocation.point() }},
	FieldDropoffDateTime:      {"dropOffDateTime", "dropoff_datetime", store.KindInt, func(r *Record) any { return r.DropoffTime.Unix() }},
	FieldTripType:             {"tripType", "trip_type", store.KindInt, func(r *Record) any { return r.TripType }},
	FieldRateCodeID:           {"rateCodeId", "rate_code_id", store.KindInt, func(r *Record) any { return r.RateCodeID }},
	FieldTollsAmount:          {"tollsAmount", "tolls_amount", store.KindFloat, func(r *Record) any { return r.TollsAmount }},
	FieldPassengerCount:       {"passengerCount", "passenger_count", store.KindInt, func(r *Record) any { return r.PassengerCount }},
	FieldFareAmount:           {"fareAmount", "fare_amount", store.KindFloat, func(r *Record) any { return r.FareAmount }},
	FieldExtra:                {"extra", "extra", store.KindFloat, func(r *Record) any { return r.Extra }},
	FieldTripDistance:         {"tripDistance", "trip_distance", store.KindFloat, func(r *Record) any { return r.TripDistance }},
	FieldTipAmount:            {"tipAmount", "tip_amount", store.KindFloat, func(r *Record) any { return r.TipAmount }},
	FieldMTATax:               {"mtaTax", "mta_tax", store.KindFloat, func(r *Record) any { return r.MTATax }},
	FieldStoreAndFwdFlag:      {"storeAndFwdFlag", "store_and_fwd_flag", store.KindText, func(r *Record) any { return r.StoreAndFwdFlag }},
	FieldPaymentType:          {"paymentType", "payment_type", store.KindText, func(r *Record) any { return r.PaymentType }},
	FieldVendorID:             {"vendorId", "vendor_id", store.KindText, func(r *Record) any { return r.VendorID }},
	FieldDescription:          {"description", "description", store.KindText, func(r *Record) any { return r.Description }},
}

// Fields returns every field in document order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	return f >= 0 && f < numFields
}

// Name returns the index field name (e.g. "totalAmount").
func (f Field) Name() string {
	if !f.Valid() {
		return "unknown"
	}
	return fieldTable[f].name
}

// JSONName returns the input key (e.g. "total_amount").
func (f Field) JSONName() string {
	if !f.Valid() {
		return ""
	}
	return fieldTable[f].jsonName
}

// Kind returns the value type of the field.
func (f Field) Kind() store.FieldKind {
	return fieldTable[f].kind
}

// Value returns the field's value in r: float64, int64, store.GeoPoint or string.
func (f Field) Value(r *Record) any {
	return fieldTable[f].value(r)
}

// String implements fmt.Stringer.
func (f Field) String() string {
	return f.Name()
}

// FieldByName resolves an index name or JSON key, ignoring case.
func FieldByName(name string) (Field, bool) {
	for i, info := range fieldTable {
		if strings.EqualFold(name, info.name) || strings.EqualFold(name, info.jsonName) {
			return Field(i), true
		}
	}
	return 0, false
}

// LookupField is FieldByName with an error listing the valid names.
func LookupField(name string) (Field, error) {
	if f, ok := FieldByName(name); ok {
		return f, nil
	}
	names := make([]string, 0, numFields)
	for _, info := range fieldTable {
		names = append(names, info.name)
	}
	return 0, errors.New(errors.ErrCodeUnknownField,
		fmt.Sprintf("unknown field %q", name), nil).
		WithSuggestion("Valid fields: " + strings.Join(names, ", "))
}

// Schema describes the index fields documents built by Build carry.
func Schema() store.Schema {
	schema := make(store.Schema, 0, numFields)
	for _, info := range fieldTable {
		schema = append(schema, store.FieldSpec{
			Name:   info.name,
			Kind:   info.kind,
			Range:  info.kind != store.KindText,
			Stored: info.kind != store.KindGeo,
			Text:   info.kind == store.KindText,
		})
	}
	return schema
}
