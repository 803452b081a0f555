package decoders

/*
 * JSONDecoder turns one line holding a flat JSON object into a Record.
 *
 * Recognized keys map onto Record fields:
 *   timestamp    -> Timestamp (number, seconds since epoch)
 *   host         -> Hostname
 *   message      -> Msg
 *   level        -> Severity (unsigned integer 0..7)
 * Every other key lands in StructuredData under an underscore-prefixed name, keeping input order.
 */

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/valyala/fastjson"
	t "xaas-logging.log-shipper/pkg/types"
)

var (
	ErrInvalidJSON      = errors.New("invalid JSON")
	ErrNotAnObject      = errors.New("empty or invalid JSON object")
	ErrInvalidUTF8      = errors.New("line is not valid UTF-8")
	ErrInvalidTimestamp = errors.New("timestamp must be a number")
	ErrInvalidHost      = errors.New("host name must be a string")
	ErrInvalidMessage   = errors.New("message must be a string")
	ErrInvalidSeverity  = errors.New("invalid severity level")
	ErrSeverityTooHigh  = errors.New("invalid severity level (too high)")
	ErrInvalidSDValue   = errors.New("invalid value type in structured data")
)

type JSONDecoder struct {
	parsers fastjson.ParserPool
}

// NewJSONDecoder() creates a json decoder. The decoder is safe for concurrent use.
func NewJSONDecoder() t.Decoder {
	return &JSONDecoder{}
}

// parse() parses the line, retrying once with raw newlines escaped. The returned value is only valid
// until the parser goes back to the pool.
func (d *JSONDecoder) parse(p *fastjson.Parser, line string) (*fastjson.Value, error) {
	v, err := p.Parse(line)
	if err == nil {
		return v, nil
	}
	if !strings.Contains(line, "\n") {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	v, err = p.Parse(strings.ReplaceAll(line, "\n", `\n`))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return v, nil
}

// Decode() implements types.Decoder
func (d *JSONDecoder) Decode(line string) (t.Record, error) {
	if !utf8.ValidString(line) {
		return t.Record{}, ErrInvalidUTF8
	}

	p := d.parsers.Get()
	defer d.parsers.Put(p)

	v, err := d.parse(p, line)
	if err != nil {
		return t.Record{}, err
	}

	obj, err := v.Object()
	if err != nil {
		return t.Record{}, ErrNotAnObject
	}

	record := t.Record{Hostname: t.DefaultHostname}
	hasTimestamp := false
	var pairs []t.Pair

	// Visit walks keys in input order. Strings are copied since the parser owns its buffers.
	obj.Visit(func(key []byte, val *fastjson.Value) {
		if err != nil {
			return
		}
		switch string(key) {
		case "timestamp":
			if val.Type() == fastjson.TypeNumber {
				record.Timestamp, err = val.Float64()
				if err != nil {
					err = fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
					return
				}
				hasTimestamp = true
			}
		case "host":
			if val.Type() != fastjson.TypeString {
				err = ErrInvalidHost
				return
			}
			record.Hostname = string(val.GetStringBytes())
		case "message":
			if val.Type() != fastjson.TypeString {
				err = fmt.Errorf("%w: message", ErrInvalidMessage)
				return
			}
			msg := string(val.GetStringBytes())
			record.Msg = &msg
		case "level":
			level, e := val.Uint64()
			if e != nil {
				err = ErrInvalidSeverity
				return
			}
			if level > uint64(t.SeverityMax) {
				err = ErrSeverityTooHigh
				return
			}
			severity := uint8(level)
			record.Severity = &severity
		default:
			var sd t.SDValue
			sd, err = sdValue(val)
			if err != nil {
				return
			}
			pairs = append(pairs, t.Pair{Name: t.NormalizeSDName(string(key)), Value: sd})
		}
	})
	if err != nil {
		return t.Record{}, err
	}

	if !hasTimestamp {
		record.Timestamp = t.PreciseTimestamp()
	}
	record.StructuredData = t.NewStructuredData(pairs)

	return record, nil
}

// sdValue() maps a JSON scalar onto the closed set of structured data values
func sdValue(val *fastjson.Value) (t.SDValue, error) {
	switch val.Type() {
	case fastjson.TypeString:
		return t.StringValue(string(val.GetStringBytes())), nil
	case fastjson.TypeTrue:
		return t.BoolValue(true), nil
	case fastjson.TypeFalse:
		return t.BoolValue(false), nil
	case fastjson.TypeNull:
		return t.NullValue(), nil
	case fastjson.TypeNumber:
		// integers keep their exact value, everything else becomes a float
		raw := val.String()
		if !strings.ContainsAny(raw, ".eE") {
			if u, err := val.Uint64(); err == nil {
				return t.Uint64Value(u), nil
			}
			if i, err := val.Int64(); err == nil {
				return t.Int64Value(i), nil
			}
		}
		f, err := val.Float64()
		if err != nil {
			return t.SDValue{}, fmt.Errorf("%w: %v", ErrInvalidSDValue, err)
		}
		return t.Float64Value(f), nil
	default:
		return t.SDValue{}, ErrInvalidSDValue
	}
}
