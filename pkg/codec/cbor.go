// Package codec provides the CBOR encoding used for bundle manifests and
// machine-readable CLI output.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): map keys are
// sorted and integers use their shortest form, so the same logical value
// always produces the same bytes. Bundle hashes depend on this.
package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Metadata maps are map[string]any throughout; the CBOR default of
		// map[interface{}]interface{} does not round-trip through JSON.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v deterministically.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder.
type Encoder = cbor.Encoder

// NewEncoder returns a deterministic CBOR encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
