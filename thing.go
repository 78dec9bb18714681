package brunt

import (
	"strconv"
	"time"
)

// Field names a normalized Thing attribute.
type Field string

// Normalized field names. The wire names differ per field; see wireFields.
const (
	FieldName            Field = "name"
	FieldSerial          Field = "serial"
	FieldURI             Field = "thing_uri"
	FieldModel           Field = "model"
	FieldCurrentPosition Field = "current_position"
	FieldRequestPosition Field = "request_position"
	FieldMoveState       Field = "move_state"
	FieldSetLoad         Field = "set_load"
	FieldCurrentLoad     Field = "current_load"
	FieldOverStatus      Field = "over_status"
	FieldDuration        Field = "duration"
	FieldDelay           Field = "delay"
	FieldFirmwareVersion Field = "fw_version"
	FieldIcon            Field = "icon"
	FieldPermissionType  Field = "permission_type"
	FieldResave          Field = "resave"
	FieldTimestamp       Field = "timestamp"
)

// uriPrefix is the path template the vendor uses to address a thing by serial.
const uriPrefix = "/hub/"

// URIForSerial returns the thing URI the vendor assigns to a serial number.
func URIForSerial(serial string) string {
	if serial == "" {
		return ""
	}
	return uriPrefix + serial
}

// Thing is the normalized state of one Brunt device as last reported by the
// vendor. Things are built by the wire codec and never modified afterwards;
// a new fetch yields a new Thing.
type Thing struct {
	Name   string
	Serial string
	URI    string
	Model  string

	// Positions are percentages in [0, 100].
	CurrentPosition int
	RequestPosition int

	// MoveState, OverStatus and the load fields are opaque vendor codes.
	MoveState   int
	SetLoad     int
	CurrentLoad int
	OverStatus  int
	Duration    int
	Delay       int

	FirmwareVersion string
	Icon            string
	PermissionType  string
	Resave          string

	// Timestamp is the vendor's update time in milliseconds since the epoch.
	Timestamp   int64
	LastUpdated time.Time

	present map[Field]struct{}
}

// Has reports whether the field was present and well-formed on the wire.
func (t Thing) Has(f Field) bool {
	_, ok := t.present[f]
	return ok
}

// Matches reports whether the thing's display name equals name.
func (t Thing) Matches(name string) bool {
	return t.Name == name
}

// Position returns the best known physical position: the current position
// when reported, otherwise the last requested one.
func (t Thing) Position() (int, bool) {
	if t.Has(FieldCurrentPosition) {
		return t.CurrentPosition, true
	}
	if t.Has(FieldRequestPosition) {
		return t.RequestPosition, true
	}
	return 0, false
}

// WireFields encodes the thing back into the vendor's field names, with
// every value rendered as a string the way the vendor sends them. Fields
// that were absent on decode are omitted.
func (t Thing) WireFields() map[string]string {
	out := make(map[string]string, len(t.present))
	for wire, wf := range wireFields {
		if !t.Has(wf.field) {
			continue
		}
		switch wf.field {
		case FieldName:
			out[wire] = t.Name
		case FieldSerial:
			out[wire] = t.Serial
		case FieldURI:
			out[wire] = t.URI
		case FieldModel:
			out[wire] = t.Model
		case FieldFirmwareVersion:
			out[wire] = t.FirmwareVersion
		case FieldIcon:
			out[wire] = t.Icon
		case FieldPermissionType:
			out[wire] = strconv.Quote(t.PermissionType)
		case FieldResave:
			out[wire] = t.Resave
		case FieldTimestamp:
			out[wire] = strconv.FormatInt(t.Timestamp, 10)
		default:
			if v, ok := t.intField(wf.field); ok {
				out[wire] = strconv.Itoa(v)
			}
		}
	}
	return out
}

func (t *Thing) mark(f Field) {
	if t.present == nil {
		t.present = make(map[Field]struct{})
	}
	t.present[f] = struct{}{}
}

func (t *Thing) setString(f Field, v string) {
	switch f {
	case FieldName:
		t.Name = v
	case FieldSerial:
		t.Serial = v
	case FieldURI:
		t.URI = v
	case FieldModel:
		t.Model = v
	case FieldFirmwareVersion:
		t.FirmwareVersion = v
	case FieldIcon:
		t.Icon = v
	case FieldPermissionType:
		t.PermissionType = v
	case FieldResave:
		t.Resave = v
	default:
		return
	}
	t.mark(f)
}

func (t *Thing) setInt(f Field, v int) {
	switch f {
	case FieldCurrentPosition:
		t.CurrentPosition = v
	case FieldRequestPosition:
		t.RequestPosition = v
	case FieldMoveState:
		t.MoveState = v
	case FieldSetLoad:
		t.SetLoad = v
	case FieldCurrentLoad:
		t.CurrentLoad = v
	case FieldOverStatus:
		t.OverStatus = v
	case FieldDuration:
		t.Duration = v
	case FieldDelay:
		t.Delay = v
	default:
		return
	}
	t.mark(f)
}

func (t *Thing) setTimestamp(ms int64) {
	t.Timestamp = ms
	t.LastUpdated = time.UnixMilli(ms).UTC()
	t.mark(FieldTimestamp)
}

func (t Thing) intField(f Field) (int, bool) {
	switch f {
	case FieldCurrentPosition:
		return t.CurrentPosition, true
	case FieldRequestPosition:
		return t.RequestPosition, true
	case FieldMoveState:
		return t.MoveState, true
	case FieldSetLoad:
		return t.SetLoad, true
	case FieldCurrentLoad:
		return t.CurrentLoad, true
	case FieldOverStatus:
		return t.OverStatus, true
	case FieldDuration:
		return t.Duration, true
	case FieldDelay:
		return t.Delay, true
	}
	return 0, false
}
