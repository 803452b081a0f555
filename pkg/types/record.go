package types

/*
 * Record is the canonical in-memory log event. A Record is built once per input line by a Decoder,
 * handed to an Encoder and then dropped. It is never mutated after construction.
 */

import (
	"fmt"
	"strings"
	"time"
)

const (
	// SeverityMax is the highest syslog severity (debug)
	SeverityMax uint8 = 7

	// DefaultHostname is used when the input does not carry a host
	DefaultHostname = "unknown"
)

// Record is one parsed log event
type Record struct {
	Timestamp      float64 // seconds since epoch, fractional part preserved
	Hostname       string
	Facility       *uint8
	Severity       *uint8
	Appname        *string
	Procid         *string
	Msgid          *string
	Msg            *string
	FullMsg        *string
	StructuredData *StructuredData // nil unless at least one pair exists
}

// Pair is a single structured data entry
type Pair struct {
	Name  string
	Value SDValue
}

// StructuredData holds the extra (non-standard) fields of a record in input order
type StructuredData struct {
	Pairs []Pair
}

// SDKind enumerates the closed set of structured data value shapes
type SDKind uint8

const (
	SDNull SDKind = iota
	SDString
	SDBool
	SDFloat64
	SDInt64
	SDUint64
)

var sdKindNames = [...]string{"null", "string", "bool", "f64", "i64", "u64"}

func (k SDKind) String() string {
	if int(k) < len(sdKindNames) {
		return sdKindNames[k]
	}
	return fmt.Sprintf("SDKind(%d)", uint8(k))
}

// SDValue is a structured data value. Only the field matching Kind is meaningful.
type SDValue struct {
	Kind SDKind
	Str  string
	Bool bool
	F64  float64
	I64  int64
	U64  uint64
}

func NullValue() SDValue             { return SDValue{Kind: SDNull} }
func StringValue(s string) SDValue   { return SDValue{Kind: SDString, Str: s} }
func BoolValue(b bool) SDValue       { return SDValue{Kind: SDBool, Bool: b} }
func Float64Value(f float64) SDValue { return SDValue{Kind: SDFloat64, F64: f} }
func Int64Value(i int64) SDValue     { return SDValue{Kind: SDInt64, I64: i} }
func Uint64Value(u uint64) SDValue   { return SDValue{Kind: SDUint64, U64: u} }

func (v SDValue) String() string {
	switch v.Kind {
	case SDString:
		return v.Str
	case SDBool:
		return fmt.Sprint(v.Bool)
	case SDFloat64:
		return fmt.Sprint(v.F64)
	case SDInt64:
		return fmt.Sprint(v.I64)
	case SDUint64:
		return fmt.Sprint(v.U64)
	default:
		return "null"
	}
}

// NewStructuredData returns nil for an empty pair list so that "no extra fields" is always
// represented as absent
func NewStructuredData(pairs []Pair) *StructuredData {
	if len(pairs) == 0 {
		return nil
	}
	return &StructuredData{Pairs: pairs}
}

// Get returns the value stored under name
func (sd *StructuredData) Get(name string) (SDValue, bool) {
	if sd == nil {
		return SDValue{}, false
	}
	for _, p := range sd.Pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return SDValue{}, false
}

// NormalizeSDName prefixes a structured data key with exactly one underscore
func NormalizeSDName(name string) string {
	if strings.HasPrefix(name, "_") {
		return name
	}
	return "_" + name
}

// PreciseTimestamp returns the current time as fractional seconds since epoch
func PreciseTimestamp() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
