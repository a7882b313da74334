package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func base() map[string]any {
	return map[string]any{
		"customer_id": "cust-1",
		"place_id":    "ChIJabc123",
	}
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		wantErr string
	}{
		{"missing customer_id", map[string]any{"place_id": "p"}, "customer_id is required"},
		{"empty customer_id", map[string]any{"customer_id": "", "place_id": "p"}, "customer_id is required"},
		{"nil place_id", map[string]any{"customer_id": "c", "place_id": nil}, "place_id is required"},
		{"empty place_id", map[string]any{"customer_id": "c", "place_id": ""}, "place_id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate(tt.data)
			assert.False(t, res.Valid)
			assert.Contains(t, res.Errors, tt.wantErr)
		})
	}
}

func TestValidateNumericCoercion(t *testing.T) {
	data := base()
	data["latitude"] = "40.4168"
	data["longitude"] = "-3.7038"
	data["rating"] = "4.5"
	data["reviews"] = "1523"
	data["photos_count"] = float64(88)

	res := Validate(data)
	require.True(t, res.Valid, "errors: %v", res.Errors)
	assert.Equal(t, 40.4168, res.Sanitized["latitude"])
	assert.Equal(t, -3.7038, res.Sanitized["longitude"])
	assert.Equal(t, 4.5, res.Sanitized["rating"])
	assert.Equal(t, int64(1523), res.Sanitized["reviews"])
	assert.Equal(t, int64(88), res.Sanitized["photos_count"])
}

func TestValidateNumericRanges(t *testing.T) {
	tests := []struct {
		field string
		value any
	}{
		{"latitude", 91.0},
		{"latitude", "-90.5"},
		{"longitude", 180.1},
		{"rating", "9.9"},
		{"rating", -0.1},
		{"reviews", -3},
		{"photos_count", "-1"},
		{"latitude", "not-a-number"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			data := base()
			data[tt.field] = tt.value
			res := Validate(data)
			assert.False(t, res.Valid)
			require.Len(t, res.Errors, 1)
			assert.Contains(t, res.Errors[0], "invalid "+tt.field)
			// Original value is preserved for diagnosis.
			assert.Equal(t, tt.value, res.Sanitized[tt.field])
		})
	}
}

func TestValidateStringTruncation(t *testing.T) {
	data := base()
	data["description"] = strings.Repeat("x", 1500)
	data["name"] = "Café Ñandú"

	res := Validate(data)
	require.True(t, res.Valid)
	assert.Len(t, res.Sanitized["description"], MaxStringLen)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "description too long (1500 chars)")
	assert.Equal(t, "Café Ñandú", res.Sanitized["name"])
}

func TestValidateJSONFields(t *testing.T) {
	t.Run("structured value serialized", func(t *testing.T) {
		data := base()
		data["working_hours"] = map[string]any{"monday": "9-17"}
		res := Validate(data)
		require.True(t, res.Valid)
		assert.Equal(t, `{"monday":"9-17"}`, res.Sanitized["working_hours"])
	})

	t.Run("string accepted verbatim", func(t *testing.T) {
		data := base()
		data["about"] = `{"Service options":{"Delivery":true}}`
		res := Validate(data)
		require.True(t, res.Valid)
		assert.Equal(t, data["about"], res.Sanitized["about"])
	})

	t.Run("oversized serialization truncated", func(t *testing.T) {
		data := base()
		entries := make([]any, 0, 2000)
		for i := 0; i < 2000; i++ {
			entries = append(entries, strings.Repeat("r", 20))
		}
		data["order_links"] = entries
		res := Validate(data)
		require.True(t, res.Valid)
		assert.Len(t, res.Sanitized["order_links"], MaxJSONLen)
		require.Len(t, res.Warnings, 1)
		assert.Contains(t, res.Warnings[0], "order_links JSON too large")
	})

	t.Run("unserializable value nulled", func(t *testing.T) {
		data := base()
		data["reservation_links"] = map[string]any{"bad": func() {}}
		res := Validate(data)
		assert.False(t, res.Valid)
		assert.Nil(t, res.Sanitized["reservation_links"])
		require.Len(t, res.Errors, 1)
		assert.Contains(t, res.Errors[0], "reservation_links is not serializable")
	})
}

func TestValidateVerifiedCoercion(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		want     bool
		wantWarn bool
	}{
		{"native true", true, true, false},
		{"native false", false, false, false},
		{"string true", "true", true, false},
		{"string false", "false", false, false},
		{"string one", "1", true, false},
		{"string zero", "0", false, false},
		{"empty string", "", false, false},
		{"junk string", "yes", true, true},
		{"number", float64(1), true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := base()
			data["verified"] = tt.value
			res := Validate(data)
			require.True(t, res.Valid)
			assert.Equal(t, tt.want, res.Sanitized["verified"])
			if tt.wantWarn {
				require.Len(t, res.Warnings, 1)
				assert.Contains(t, res.Warnings[0], "verified")
			} else {
				assert.Empty(t, res.Warnings)
			}
		})
	}
}

func TestValidateUpdatedAt(t *testing.T) {
	t.Run("rfc3339 normalized", func(t *testing.T) {
		data := base()
		data["updated_at"] = "2026-02-10T09:30:00+01:00"
		res := Validate(data)
		require.True(t, res.Valid)
		ts, err := time.Parse(time.RFC3339Nano, res.Sanitized["updated_at"].(string))
		require.NoError(t, err)
		assert.Equal(t, time.UTC, ts.Location())
	})

	t.Run("date only", func(t *testing.T) {
		data := base()
		data["updated_at"] = "2026-02-10"
		res := Validate(data)
		assert.True(t, res.Valid)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		data := base()
		data["updated_at"] = "last tuesday"
		res := Validate(data)
		assert.False(t, res.Valid)
		assert.Contains(t, res.Errors[0], "invalid updated_at")
	})
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	data := base()
	data["description"] = strings.Repeat("d", 2000)
	data["latitude"] = "12.5"

	_ = Validate(data)

	assert.Len(t, data["description"], 2000)
	assert.Equal(t, "12.5", data["latitude"])
}

func TestValidateIdempotent(t *testing.T) {
	data := base()
	data["latitude"] = "40.4168"
	data["rating"] = 4.5
	data["reviews"] = "120"
	data["name"] = strings.Repeat("n", 1200)
	data["working_hours"] = map[string]any{"monday": "closed"}
	data["verified"] = "true"
	data["updated_at"] = "2026-02-10T09:30:00Z"

	first := Validate(data)
	require.True(t, first.Valid)

	second := Validate(first.Sanitized)
	require.True(t, second.Valid)
	assert.Empty(t, second.Warnings)
	assert.Equal(t, first.Sanitized, second.Sanitized)
}
