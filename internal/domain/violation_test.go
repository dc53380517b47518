package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func TestComputeFine(t *testing.T) {
	custom := decimal.NewFromInt(750)
	zero := decimal.Zero

	tests := []struct {
		name      string
		details   ViolationDetails
		wantFine  decimal.Decimal
		wantLabel string
	}{
		{"speeding 30 over doubles", Speeding{SpeedLimit: 50, ActualSpeed: 80}, dec(1000), "Speeding"},
		{"speeding 40 over doubles", Speeding{SpeedLimit: 50, ActualSpeed: 90}, dec(1000), "Speeding"},
		{"speeding exactly 20 over is one and a half", Speeding{SpeedLimit: 50, ActualSpeed: 70}, dec(750), "Speeding"},
		{"speeding 15 over is one and a half", Speeding{SpeedLimit: 50, ActualSpeed: 65}, dec(750), "Speeding"},
		{"speeding exactly 10 over is base", Speeding{SpeedLimit: 50, ActualSpeed: 60}, dec(500), "Speeding"},
		{"speeding 8 over is base", Speeding{SpeedLimit: 50, ActualSpeed: 58}, dec(500), "Speeding"},

		{"handicap short", Parking{ZoneType: ZoneHandicap, DurationMinutes: 60}, dec(1000), "Wrong Parking"},
		{"handicap long", Parking{ZoneType: ZoneHandicap, DurationMinutes: 150}, dec(1500), "Wrong Parking"},
		{"handicap exactly 120 minutes", Parking{ZoneType: ZoneHandicap, DurationMinutes: 120}, dec(1000), "Wrong Parking"},
		{"no parking", Parking{ZoneType: ZoneNoParking, DurationMinutes: 10}, dec(200), "Wrong Parking"},
		{"fire lane", Parking{ZoneType: ZoneFireLane}, dec(1500), "Wrong Parking"},
		{"expired meter long", Parking{ZoneType: ZoneExpiredMeter, DurationMinutes: 180}, dec(150), "Wrong Parking"},
		{"unknown zone uses no parking rate", Parking{ZoneType: "loading-bay", DurationMinutes: 30}, dec(200), "Wrong Parking"},

		{"helmet one rider", Helmet{PassengerCount: 1, VehicleType: VehicleMotorcycle}, dec(300), "No Helmet"},
		{"helmet two riders", Helmet{PassengerCount: 2, VehicleType: VehicleScooter}, dec(600), "No Helmet"},

		{"red light late", RedLight{SecondsAfterRed: 5}, dec(1500), "Red Light"},
		{"red light early", RedLight{SecondsAfterRed: 2}, dec(1000), "Red Light"},
		{"red light exactly 3 seconds", RedLight{SecondsAfterRed: 3}, dec(1000), "Red Light"},

		{"mobile usage", MobileUsage{EvidenceType: "photo"}, dec(1000), "Mobile Phone Usage"},

		{"generic default", Generic{}, dec(500), "Other"},
		{"generic custom", Generic{CustomFine: &custom}, dec(750), "Other"},
		{"generic zero custom falls back", Generic{CustomFine: &zero}, dec(500), "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fine, label := ComputeFine(Violation{Details: tt.details})
			assert.True(t, tt.wantFine.Equal(fine), "fine = %s, want %s", fine, tt.wantFine)
			assert.Equal(t, tt.wantLabel, label)
			assert.Equal(t, tt.wantLabel, ViolationLabel(tt.details.Kind()))
		})
	}
}

func TestComputeFine_Deterministic(t *testing.T) {
	v := Violation{Details: Speeding{SpeedLimit: 40, ActualSpeed: 55}}
	first, _ := ComputeFine(v)
	for i := 0; i < 10; i++ {
		again, _ := ComputeFine(v)
		assert.True(t, first.Equal(again))
	}
}

func TestNewViolation(t *testing.T) {
	base := func(kind string) ViolationAttrs {
		return ViolationAttrs{
			Kind:          kind,
			VehicleNumber: "mh 12-ab 1234",
			Location:      "FC Road",
		}
	}

	t.Run("speeding", func(t *testing.T) {
		attrs := base("speeding")
		attrs.SpeedLimit = 50
		attrs.ActualSpeed = 90

		v, err := NewViolation(attrs)
		require.NoError(t, err)
		assert.Equal(t, ViolationKindSpeeding, v.Kind())
		assert.Equal(t, "MH12AB1234", v.VehicleNumber)
		assert.False(t, v.OccurredAt.IsZero())
	})

	t.Run("kind is case insensitive", func(t *testing.T) {
		attrs := base("Red_Light")
		attrs.SecondsAfterRed = 1

		v, err := NewViolation(attrs)
		require.NoError(t, err)
		assert.Equal(t, ViolationKindRedLight, v.Kind())
	})

	t.Run("unknown kind is invalid", func(t *testing.T) {
		_, err := NewViolation(base("jaywalking"))
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))
	})

	t.Run("helmet requires a passenger and two wheeler", func(t *testing.T) {
		attrs := base("helmet")
		attrs.VehicleType = "truck"

		_, err := NewViolation(attrs)
		require.Error(t, err)
		assert.Equal(t, EINVALID, ErrorCode(err))

		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "passenger_count")
		assert.Contains(t, ve.Fields, "vehicle_type")
	})

	t.Run("speeding requires speeds", func(t *testing.T) {
		_, err := NewViolation(base("speeding"))
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "speed_limit")
		assert.Contains(t, ve.Fields, "actual_speed")
	})

	t.Run("common fields are required", func(t *testing.T) {
		_, err := NewViolation(ViolationAttrs{Kind: "mobile_usage"})
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "vehicle_number")
		assert.Contains(t, ve.Fields, "location")
	})

	t.Run("negative custom fine is invalid", func(t *testing.T) {
		attrs := base("other")
		neg := decimal.NewFromInt(-5)
		attrs.CustomFine = &neg

		_, err := NewViolation(attrs)
		assert.Equal(t, EINVALID, ErrorCode(err))
	})
}

func TestDetailsRoundTrip(t *testing.T) {
	custom := decimal.NewFromInt(1200)
	details := []ViolationDetails{
		Speeding{SpeedLimit: 60, ActualSpeed: 85, RadarReading: "R-17"},
		Parking{ZoneType: ZoneFireLane, DurationMinutes: 45},
		Helmet{PassengerCount: 2, VehicleType: VehicleScooter},
		RedLight{IntersectionID: "JN-4", CameraID: "CAM-9", SecondsAfterRed: 4.5},
		MobileUsage{EvidenceType: "video"},
		Generic{CustomFine: &custom},
	}

	for _, d := range details {
		t.Run(string(d.Kind()), func(t *testing.T) {
			data, err := MarshalDetails(d)
			require.NoError(t, err)

			got, err := UnmarshalDetails(d.Kind(), data)
			require.NoError(t, err)

			wantFine, _ := ComputeFine(Violation{Details: d})
			gotFine, _ := ComputeFine(Violation{Details: got})
			assert.True(t, wantFine.Equal(gotFine))
			assert.Equal(t, d.Kind(), got.Kind())
		})
	}

	_, err := UnmarshalDetails("hovercraft", []byte(`{}`))
	assert.Error(t, err)
}
