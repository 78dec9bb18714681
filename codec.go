package brunt

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindPosition
	kindTimestamp
	kindQuoted
)

type wireField struct {
	field Field
	kind  fieldKind
}

// wireFields maps the vendor's field names to normalized fields. The vendor
// mixes UPPER_SNAKE, camelCase and Capitalized names across firmware revisions.
var wireFields = map[string]wireField{
	"NAME":            {FieldName, kindString},
	"SERIAL":          {FieldSerial, kindString},
	"thingUri":        {FieldURI, kindString},
	"MODEL":           {FieldModel, kindString},
	"currentPosition": {FieldCurrentPosition, kindPosition},
	"requestPosition": {FieldRequestPosition, kindPosition},
	"moveState":       {FieldMoveState, kindInt},
	"setLoad":         {FieldSetLoad, kindInt},
	"currentLoad":     {FieldCurrentLoad, kindInt},
	"overStatus":      {FieldOverStatus, kindInt},
	"Duration":        {FieldDuration, kindInt},
	"delay":           {FieldDelay, kindInt},
	"FW_VERSION":      {FieldFirmwareVersion, kindString},
	"ICON":            {FieldIcon, kindString},
	"PERMISSION_TYPE": {FieldPermissionType, kindQuoted},
	"resave":          {FieldResave, kindString},
	"TIMESTAMP":       {FieldTimestamp, kindTimestamp},
}

// loginMarker is the field that identifies an account payload.
const loginMarker = "ID"

type responseShape int

const (
	shapeEmpty responseShape = iota
	shapeList
	shapeLogin
	shapeThing
	shapeInvalid
)

// classify sorts a response body into one of the shapes the vendor returns.
func classify(body []byte) responseShape {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return shapeEmpty
	}
	switch trimmed[0] {
	case '[':
		return shapeList
	case '{':
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return shapeInvalid
		}
		if _, ok := probe[loginMarker]; ok {
			return shapeLogin
		}
		return shapeThing
	}
	return shapeInvalid
}

// codec translates vendor payloads into Things and Sessions. Unknown or
// malformed telemetry fields are logged and skipped, never fatal.
type codec struct {
	logger *slog.Logger
}

func (c codec) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// decodeListResponse decodes the device list. Entries without identity
// (neither thingUri nor SERIAL) are dropped.
func (c codec) decodeListResponse(ctx context.Context, body []byte) ([]Thing, error) {
	switch classify(body) {
	case shapeList:
	case shapeEmpty:
		return []Thing{}, nil
	default:
		return nil, newProtocolError("device list is not a JSON array", body)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, newProtocolError("failed to parse device list: "+err.Error(), body)
	}

	things := make([]Thing, 0, len(entries))
	for i, entry := range entries {
		raw, err := decodeObject(entry)
		if err != nil || raw == nil {
			c.log(ctx, slog.LevelWarn, "thing_dropped",
				slog.Int("index", i),
				slog.String("reason", "entry is not an object"),
			)
			continue
		}
		thing := c.decodeThing(ctx, raw, "")
		if thing.URI == "" {
			c.log(ctx, slog.LevelWarn, "thing_dropped",
				slog.Int("index", i),
				slog.String("reason", "missing thingUri and SERIAL"),
			)
			continue
		}
		things = append(things, thing)
	}
	return things, nil
}

// decodeStateResponse decodes a single thing. uri is the address the state
// was fetched from and fills in the URI when the payload omits it.
func (c codec) decodeStateResponse(ctx context.Context, body []byte, uri string) (Thing, error) {
	switch classify(body) {
	case shapeThing:
	case shapeLogin:
		return Thing{}, newProtocolError("state endpoint returned a login payload", body)
	case shapeEmpty:
		return Thing{}, newProtocolError("state endpoint returned an empty body", nil)
	default:
		return Thing{}, newProtocolError("thing state is not a JSON object", body)
	}

	raw, err := decodeObject(body)
	if err != nil {
		return Thing{}, newProtocolError("failed to parse thing state: "+err.Error(), body)
	}
	return c.decodeThing(ctx, raw, uri), nil
}

// decodeLoginResponse validates a login payload and builds a Session from
// the cookies that came with it.
func (c codec) decodeLoginResponse(body []byte, cookies []*http.Cookie, domain string, now time.Time) (*Session, error) {
	if classify(body) != shapeLogin {
		return nil, newProtocolError("login response carries no "+loginMarker+" field", body)
	}
	sess := newSession(cookies, domain, now)
	if sess.ID() == "" {
		return nil, newProtocolError("login response set no "+SessionCookieName+" cookie", nil)
	}
	return sess, nil
}

func (c codec) decodeThing(ctx context.Context, raw map[string]any, fallbackURI string) Thing {
	var t Thing
	for wire, value := range raw {
		wf, ok := wireFields[wire]
		if !ok {
			c.log(ctx, slog.LevelInfo, "unknown_field", slog.String("field", wire))
			continue
		}
		c.assign(ctx, &t, wire, wf, value)
	}

	if t.URI == "" {
		switch {
		case fallbackURI != "":
			t.URI = fallbackURI
			t.mark(FieldURI)
		case t.Serial != "":
			t.URI = URIForSerial(t.Serial)
			t.mark(FieldURI)
		}
	}
	return t
}

func (c codec) assign(ctx context.Context, t *Thing, wire string, wf wireField, value any) {
	skip := func(reason string) {
		c.log(ctx, slog.LevelWarn, "field_skipped",
			slog.String("field", wire),
			slog.String("reason", reason),
			slog.Any("value", value),
		)
	}

	switch wf.kind {
	case kindString, kindQuoted:
		s, ok := coerceString(value)
		if !ok {
			skip("not a string")
			return
		}
		if wf.kind == kindQuoted {
			s = strings.Trim(s, `"`)
		}
		t.setString(wf.field, s)

	case kindInt, kindPosition:
		n, ok := coerceInt(value)
		if !ok {
			skip("not an integer")
			return
		}
		if n > math.MaxInt || n < math.MinInt {
			skip("integer overflows int")
			return
		}
		if wf.kind == kindPosition && (n < 0 || n > 100) {
			skip("position out of range")
			return
		}
		t.setInt(wf.field, int(n))

	case kindTimestamp:
		n, ok := coerceInt(value)
		if !ok {
			skip("not an integer")
			return
		}
		t.setTimestamp(n)
	}
}

func coerceString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case json.Number:
		return s.String(), true
	}
	return "", false
}

// coerceInt accepts JSON numbers and numeric strings, rejecting fractions
// and values that do not fit an int64.
func coerceInt(v any) (int64, bool) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
			return 0, false
		}
		s = strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return 0, false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= float64(math.MaxInt64) || f < float64(math.MinInt64) {
		return 0, false
	}
	return int64(f), true
}
