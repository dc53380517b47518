// Package domain contains core business types and interfaces.
//
// This file defines the Violation tagged variant and the fine rules that
// apply to each kind of traffic violation.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// Violation Kind
// =============================================================================

// ViolationKind is the tag of a Violation. It is derived from the details
// payload and never changes after creation.
type ViolationKind string

const (
	ViolationKindSpeeding    ViolationKind = "speeding"
	ViolationKindParking     ViolationKind = "parking"
	ViolationKindHelmet      ViolationKind = "helmet"
	ViolationKindRedLight    ViolationKind = "red_light"
	ViolationKindMobileUsage ViolationKind = "mobile_usage"
	ViolationKindOther       ViolationKind = "other"
)

// String returns the string representation of the kind.
func (k ViolationKind) String() string {
	return string(k)
}

// IsValid returns true if the kind is a recognized value.
func (k ViolationKind) IsValid() bool {
	switch k {
	case ViolationKindSpeeding, ViolationKindParking, ViolationKindHelmet,
		ViolationKindRedLight, ViolationKindMobileUsage, ViolationKindOther:
		return true
	}
	return false
}

// Parking zones with a dedicated base fine.
const (
	ZoneNoParking    = "no-parking"
	ZoneHandicap     = "handicap"
	ZoneFireLane     = "fire-lane"
	ZoneExpiredMeter = "expired-meter"
)

// Two-wheeler types accepted for helmet violations.
const (
	VehicleMotorcycle = "motorcycle"
	VehicleScooter    = "scooter"
)

// =============================================================================
// Variant Payloads
// =============================================================================

// ViolationDetails is the closed set of violation payloads. Only types in
// this file implement it.
type ViolationDetails interface {
	Kind() ViolationKind
	isViolationDetails()
}

// Speeding is a speed-limit violation measured by radar.
type Speeding struct {
	SpeedLimit   int    `json:"speed_limit"`
	ActualSpeed  int    `json:"actual_speed"`
	RadarReading string `json:"radar_reading,omitempty"`
}

// Parking is a parking violation in a regulated zone.
type Parking struct {
	ZoneType        string `json:"zone_type"`
	DurationMinutes int    `json:"duration_minutes"`
}

// Helmet is a riding-without-helmet violation on a two-wheeler.
type Helmet struct {
	PassengerCount int    `json:"passenger_count"`
	VehicleType    string `json:"vehicle_type"`
}

// RedLight is a signal violation captured at an intersection.
type RedLight struct {
	IntersectionID  string  `json:"intersection_id,omitempty"`
	CameraID        string  `json:"camera_id,omitempty"`
	SecondsAfterRed float64 `json:"seconds_after_red"`
}

// MobileUsage is a phone-while-driving violation.
type MobileUsage struct {
	EvidenceType string `json:"evidence_type,omitempty"`
}

// Generic covers any other violation, optionally with an officer-set fine.
type Generic struct {
	CustomFine *decimal.Decimal `json:"custom_fine,omitempty"`
}

func (Speeding) Kind() ViolationKind    { return ViolationKindSpeeding }
func (Parking) Kind() ViolationKind     { return ViolationKindParking }
func (Helmet) Kind() ViolationKind      { return ViolationKindHelmet }
func (RedLight) Kind() ViolationKind    { return ViolationKindRedLight }
func (MobileUsage) Kind() ViolationKind { return ViolationKindMobileUsage }
func (Generic) Kind() ViolationKind     { return ViolationKindOther }

func (Speeding) isViolationDetails()    {}
func (Parking) isViolationDetails()     {}
func (Helmet) isViolationDetails()      {}
func (RedLight) isViolationDetails()    {}
func (MobileUsage) isViolationDetails() {}
func (Generic) isViolationDetails()     {}

// =============================================================================
// Violation
// =============================================================================

// Violation is a single recorded traffic offence.
type Violation struct {
	VehicleNumber string
	Location      string
	OccurredAt    time.Time
	OfficerID     uuid.UUID
	CitizenID     uuid.UUID
	Description   string
	Details       ViolationDetails
}

// Kind returns the tag of the violation payload.
func (v Violation) Kind() ViolationKind {
	if v.Details == nil {
		return ""
	}
	return v.Details.Kind()
}

// =============================================================================
// Fine Rules
// =============================================================================

var (
	speedingBase    = decimal.NewFromInt(500)
	helmetBase      = decimal.NewFromInt(300)
	redLightBase    = decimal.NewFromInt(1000)
	mobileUsageFine = decimal.NewFromInt(1000)
	genericFine     = decimal.NewFromInt(500)

	double     = decimal.NewFromInt(2)
	oneAndHalf = decimal.NewFromFloat(1.5)
)

// parkingBase holds base fines per zone. Unknown zones fall back to no-parking.
var parkingBase = map[string]decimal.Decimal{
	ZoneNoParking:    decimal.NewFromInt(200),
	ZoneHandicap:     decimal.NewFromInt(1000),
	ZoneFireLane:     decimal.NewFromInt(1500),
	ZoneExpiredMeter: decimal.NewFromInt(100),
}

// ComputeFine returns the fine and the display label for a violation.
func ComputeFine(v Violation) (decimal.Decimal, string) {
	switch d := v.Details.(type) {
	case Speeding:
		diff := d.ActualSpeed - d.SpeedLimit
		switch {
		case diff > 20:
			return speedingBase.Mul(double), "Speeding"
		case diff > 10:
			return speedingBase.Mul(oneAndHalf), "Speeding"
		}
		return speedingBase, "Speeding"

	case Parking:
		fine, ok := parkingBase[d.ZoneType]
		if !ok {
			fine = parkingBase[ZoneNoParking]
		}
		if d.DurationMinutes > 120 {
			fine = fine.Mul(oneAndHalf)
		}
		return fine, "Wrong Parking"

	case Helmet:
		return helmetBase.Mul(decimal.NewFromInt(int64(d.PassengerCount))), "No Helmet"

	case RedLight:
		if d.SecondsAfterRed > 3 {
			return redLightBase.Mul(oneAndHalf), "Red Light"
		}
		return redLightBase, "Red Light"

	case MobileUsage:
		return mobileUsageFine, "Mobile Phone Usage"

	case Generic:
		if d.CustomFine != nil && d.CustomFine.IsPositive() {
			return *d.CustomFine, "Other"
		}
		return genericFine, "Other"
	}

	// Unreachable for violations built by NewViolation.
	panic(fmt.Sprintf("domain: unknown violation details %T", v.Details))
}

// ViolationLabel returns the display label for a kind.
func ViolationLabel(kind ViolationKind) string {
	switch kind {
	case ViolationKindSpeeding:
		return "Speeding"
	case ViolationKindParking:
		return "Wrong Parking"
	case ViolationKindHelmet:
		return "No Helmet"
	case ViolationKindRedLight:
		return "Red Light"
	case ViolationKindMobileUsage:
		return "Mobile Phone Usage"
	case ViolationKindOther:
		return "Other"
	}
	return ""
}

// =============================================================================
// Factory
// =============================================================================

// ViolationAttrs are the loosely-typed attributes an officer submits. Only the
// fields relevant to Kind are read.
type ViolationAttrs struct {
	Kind          string    `json:"type"`
	VehicleNumber string    `json:"vehicle_number"`
	Location      string    `json:"location"`
	OccurredAt    time.Time `json:"occurred_at"`
	CitizenEmail  string    `json:"citizen_email"`
	Description   string    `json:"description"`

	SpeedLimit      int              `json:"speed_limit,omitempty"`
	ActualSpeed     int              `json:"actual_speed,omitempty"`
	RadarReading    string           `json:"radar_reading,omitempty"`
	ZoneType        string           `json:"zone_type,omitempty"`
	DurationMinutes int              `json:"duration_minutes,omitempty"`
	PassengerCount  int              `json:"passenger_count,omitempty"`
	VehicleType     string           `json:"vehicle_type,omitempty"`
	IntersectionID  string           `json:"intersection_id,omitempty"`
	CameraID        string           `json:"camera_id,omitempty"`
	SecondsAfterRed float64          `json:"seconds_after_red,omitempty"`
	EvidenceType    string           `json:"evidence_type,omitempty"`
	CustomFine      *decimal.Decimal `json:"custom_fine,omitempty"`
}

// NewViolation builds a Violation from submitted attributes. Officer and
// citizen references are filled in by the caller.
func NewViolation(attrs ViolationAttrs) (Violation, error) {
	const op = "violation.new"

	kind := ViolationKind(strings.ToLower(strings.TrimSpace(attrs.Kind)))
	if !kind.IsValid() {
		return Violation{}, Invalid(op, fmt.Sprintf("unknown violation type: %q", attrs.Kind))
	}

	fields := map[string]string{}

	vehicle := NormalizeVehicleNumber(attrs.VehicleNumber)
	if vehicle == "" {
		fields["vehicle_number"] = "is required"
	}
	location := strings.TrimSpace(attrs.Location)
	if location == "" {
		fields["location"] = "is required"
	}
	if len(attrs.Description) > 1000 {
		fields["description"] = "must be 1000 characters or less"
	}

	var details ViolationDetails
	switch kind {
	case ViolationKindSpeeding:
		if attrs.SpeedLimit <= 0 {
			fields["speed_limit"] = "must be positive"
		}
		if attrs.ActualSpeed <= 0 {
			fields["actual_speed"] = "must be positive"
		}
		details = Speeding{
			SpeedLimit:   attrs.SpeedLimit,
			ActualSpeed:  attrs.ActualSpeed,
			RadarReading: attrs.RadarReading,
		}

	case ViolationKindParking:
		zone := strings.ToLower(strings.TrimSpace(attrs.ZoneType))
		if zone == "" {
			fields["zone_type"] = "is required"
		}
		if attrs.DurationMinutes < 0 {
			fields["duration_minutes"] = "must not be negative"
		}
		details = Parking{ZoneType: zone, DurationMinutes: attrs.DurationMinutes}

	case ViolationKindHelmet:
		if attrs.PassengerCount < 1 {
			fields["passenger_count"] = "must be at least 1"
		}
		vt := strings.ToLower(strings.TrimSpace(attrs.VehicleType))
		if vt != VehicleMotorcycle && vt != VehicleScooter {
			fields["vehicle_type"] = "must be motorcycle or scooter"
		}
		details = Helmet{PassengerCount: attrs.PassengerCount, VehicleType: vt}

	case ViolationKindRedLight:
		if attrs.SecondsAfterRed < 0 {
			fields["seconds_after_red"] = "must not be negative"
		}
		details = RedLight{
			IntersectionID:  attrs.IntersectionID,
			CameraID:        attrs.CameraID,
			SecondsAfterRed: attrs.SecondsAfterRed,
		}

	case ViolationKindMobileUsage:
		details = MobileUsage{EvidenceType: attrs.EvidenceType}

	case ViolationKindOther:
		if attrs.CustomFine != nil && attrs.CustomFine.IsNegative() {
			fields["custom_fine"] = "must not be negative"
		}
		details = Generic{CustomFine: attrs.CustomFine}
	}

	if len(fields) > 0 {
		return Violation{}, &ValidationError{Op: op, Fields: fields}
	}

	occurredAt := attrs.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	return Violation{
		VehicleNumber: vehicle,
		Location:      location,
		OccurredAt:    occurredAt,
		Description:   strings.TrimSpace(attrs.Description),
		Details:       details,
	}, nil
}

// NormalizeVehicleNumber upper-cases a registration number and strips
// spaces and dashes.
func NormalizeVehicleNumber(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}

// =============================================================================
// Serialization
// =============================================================================

// MarshalDetails encodes a payload for storage alongside its kind.
func MarshalDetails(d ViolationDetails) ([]byte, error) {
	return json.Marshal(d)
}

// UnmarshalDetails decodes a stored payload using its kind tag.
func UnmarshalDetails(kind ViolationKind, data []byte) (ViolationDetails, error) {
	var (
		details ViolationDetails
		err     error
	)
	switch kind {
	case ViolationKindSpeeding:
		var d Speeding
		err = json.Unmarshal(data, &d)
		details = d
	case ViolationKindParking:
		var d Parking
		err = json.Unmarshal(data, &d)
		details = d
	case ViolationKindHelmet:
		var d Helmet
		err = json.Unmarshal(data, &d)
		details = d
	case ViolationKindRedLight:
		var d RedLight
		err = json.Unmarshal(data, &d)
		details = d
	case ViolationKindMobileUsage:
		var d MobileUsage
		err = json.Unmarshal(data, &d)
		details = d
	case ViolationKindOther:
		var d Generic
		err = json.Unmarshal(data, &d)
		details = d
	default:
		return nil, fmt.Errorf("unknown violation kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", kind, err)
	}
	return details, nil
}
