package exdatum

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = Datum{}
	_ msgpack.CustomDecoder = (*Datum)(nil)
	_ json.Marshaler        = Datum{}
	_ json.Unmarshaler      = (*Datum)(nil)
)

// EncodeMsgpack writes d as a msgpack bin holding its compact form (nil for a
// null datum), so that expanded values can be embedded in msgpack documents.
func (d Datum) EncodeMsgpack(enc *msgpack.Encoder) error {
	if d.IsNull() {
		return enc.EncodeNil()
	}
	return enc.EncodeBytes(d.Flat())
}

// DecodeMsgpack reads a compact datum. The bytes are validated lazily, on
// expansion.
func (d *Datum) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeBytes()
	if err != nil {
		return fmt.Errorf("exdatum: failed to decode datum from msgpack: %w", err)
	}
	*d = CompactDatum(raw)
	return nil
}

func (d Datum) MarshalJSON() ([]byte, error) {
	if d.IsNull() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Flat())
}

func (d *Datum) UnmarshalJSON(data []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("exdatum: failed to decode datum from JSON: %w", err)
	}
	*d = CompactDatum(raw)
	return nil
}
