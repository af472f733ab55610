package taxi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
)

func TestFieldByName(t *testing.T) {
	tests := []struct {
		in   string
		want Field
	}{
		{"totalAmount", FieldTotalAmount},
		{"total_amount", FieldTotalAmount},
		{"TOTALAMOUNT", FieldTotalAmount},
		{"pickup_location", FieldPickupLocation},
		{"rateCodeId", FieldRateCodeID},
		{"description", FieldDescription},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, ok := FieldByName(tt.in)
			assert.True(t, ok)
			assert.Equal(t, tt.want, f)
		})
	}

	_, ok := FieldByName("surge")
	assert.False(t, ok)
}

func TestFields_OrderAndNames(t *testing.T) {
	fields := Fields()
	assert.Len(t, fields, int(numFields))
	assert.Equal(t, FieldTotalAmount, fields[0])
	assert.Equal(t, FieldDescription, fields[len(fields)-1])

	seen := map[string]bool{}
	for _, f := range fields {
		assert.True(t, f.Valid())
		assert.False(t, seen[f.Name()], "duplicate name %s", f.Name())
		seen[f.Name()] = true
	}

	assert.False(t, numFields.Valid())
	assert.Equal(t, "unknown", Field(-1).Name())
}

func TestSchema_Flags(t *testing.T) {
	schema := Schema()

	total, ok := schema.Lookup("totalAmount")
	assert.True(t, ok)
	assert.Equal(t, store.FieldSpec{Name: "totalAmount", Kind: store.KindFloat, Range: true, Stored: true}, total)

	geo, _ := schema.Lookup("dropOffLocation")
	assert.Equal(t, store.FieldSpec{Name: "dropOffLocation", Kind: store.KindGeo, Range: true}, geo)

	vendor, _ := schema.Lookup("vendorId")
	assert.Equal(t, store.FieldSpec{Name: "vendorId", Kind: store.KindText, Stored: true, Text: true}, vendor)
}

func TestLookupField(t *testing.T) {
	f, err := LookupField("total_amount")
	require.NoError(t, err)
	assert.Equal(t, FieldTotalAmount, f)

	_, err = LookupField("fare")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownField, errors.GetCode(err))
	assert.True(t, errors.IsConfig(err))
	te, ok := errors.As(err)
	require.True(t, ok)
	assert.Contains(t, te.Suggestion, "totalAmount")
}
