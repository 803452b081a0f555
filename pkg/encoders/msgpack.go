package encoders

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
	t "xaas-logging.log-shipper/pkg/types"
)

// MsgpackEncoder writes a Record as a msgpack map with the same keys as the json encoder.
// Float timestamps are kept as float64 so sub-second precision survives.
type MsgpackEncoder struct{}

func NewMsgpackEncoder() t.Encoder {
	return &MsgpackEncoder{}
}

func fieldCount(record t.Record) int {
	n := 2
	for _, s := range []*string{record.Msg, record.FullMsg, record.Appname, record.Procid, record.Msgid} {
		if s != nil {
			n++
		}
	}
	if record.Severity != nil {
		n++
	}
	if record.Facility != nil {
		n++
	}
	if record.StructuredData != nil {
		n += len(record.StructuredData.Pairs)
	}
	return n
}

// Encode() implements types.Encoder
func (e *MsgpackEncoder) Encode(record t.Record) ([]byte, error) {
	if err := uniqueNames(record); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	var err error
	// keep the first error, the encoder only fails on write errors which a bytes.Buffer never returns
	check := func(encErr error) {
		if err == nil {
			err = encErr
		}
	}

	check(enc.EncodeMapLen(fieldCount(record)))
	check(enc.EncodeString("timestamp"))
	check(enc.EncodeFloat64(record.Timestamp))
	check(enc.EncodeString("host"))
	check(enc.EncodeString(record.Hostname))

	putString := func(key string, s *string) {
		if s != nil {
			check(enc.EncodeString(key))
			check(enc.EncodeString(*s))
		}
	}
	putUint := func(key string, u *uint8) {
		if u != nil {
			check(enc.EncodeString(key))
			check(enc.EncodeUint(uint64(*u)))
		}
	}

	putString("message", record.Msg)
	putString("full_message", record.FullMsg)
	putUint("level", record.Severity)
	putUint("facility", record.Facility)
	putString("appname", record.Appname)
	putString("procid", record.Procid)
	putString("msgid", record.Msgid)

	if record.StructuredData != nil {
		for _, pair := range record.StructuredData.Pairs {
			check(enc.EncodeString(pair.Name))
			switch pair.Value.Kind {
			case t.SDString:
				check(enc.EncodeString(pair.Value.Str))
			case t.SDBool:
				check(enc.EncodeBool(pair.Value.Bool))
			case t.SDFloat64:
				check(enc.EncodeFloat64(pair.Value.F64))
			case t.SDInt64:
				check(enc.EncodeInt(pair.Value.I64))
			case t.SDUint64:
				check(enc.EncodeUint(pair.Value.U64))
			default:
				check(enc.EncodeNil())
			}
		}
	}

	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
