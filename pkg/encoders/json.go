package encoders

import (
	"fmt"
	"math"
	"strconv"

	"github.com/valyala/fastjson"
	t "xaas-logging.log-shipper/pkg/types"
)

// JSONEncoder writes a Record as a single-line JSON object. Standard fields come first in a fixed
// order, followed by the structured data pairs in their original order.
type JSONEncoder struct {
	arenas fastjson.ArenaPool
}

func NewJSONEncoder() t.Encoder {
	return &JSONEncoder{}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Encode() implements types.Encoder
func (e *JSONEncoder) Encode(record t.Record) ([]byte, error) {
	if !finite(record.Timestamp) {
		return nil, fmt.Errorf("%w: timestamp", ErrNonFiniteNumber)
	}
	if err := uniqueNames(record); err != nil {
		return nil, err
	}

	a := e.arenas.Get()
	defer e.arenas.Put(a)
	a.Reset()

	obj := a.NewObject()
	obj.Set("timestamp", a.NewNumberString(formatFloat(record.Timestamp)))
	obj.Set("host", a.NewString(record.Hostname))

	setString := func(key string, s *string) {
		if s != nil {
			obj.Set(key, a.NewString(*s))
		}
	}
	setUint := func(key string, u *uint8) {
		if u != nil {
			obj.Set(key, a.NewNumberInt(int(*u)))
		}
	}

	setString("message", record.Msg)
	setString("full_message", record.FullMsg)
	setUint("level", record.Severity)
	setUint("facility", record.Facility)
	setString("appname", record.Appname)
	setString("procid", record.Procid)
	setString("msgid", record.Msgid)

	if record.StructuredData != nil {
		for _, pair := range record.StructuredData.Pairs {
			v, err := jsonValue(a, pair.Value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", pair.Name, err)
			}
			obj.Set(pair.Name, v)
		}
	}

	// MarshalTo(nil) allocates, so the result outlives the arena
	return obj.MarshalTo(nil), nil
}

func jsonValue(a *fastjson.Arena, v t.SDValue) (*fastjson.Value, error) {
	switch v.Kind {
	case t.SDString:
		return a.NewString(v.Str), nil
	case t.SDBool:
		if v.Bool {
			return a.NewTrue(), nil
		}
		return a.NewFalse(), nil
	case t.SDFloat64:
		if !finite(v.F64) {
			return nil, ErrNonFiniteNumber
		}
		return a.NewNumberString(formatFloat(v.F64)), nil
	case t.SDInt64:
		return a.NewNumberString(strconv.FormatInt(v.I64, 10)), nil
	case t.SDUint64:
		return a.NewNumberString(strconv.FormatUint(v.U64, 10)), nil
	default:
		return a.NewNull(), nil
	}
}
