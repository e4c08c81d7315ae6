package jsonmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
)

// Object is an insertion-order-preserving JSON object. Values are one of:
// *Object via the ordered map, []any, string, json.Number, bool, nil.
type Object = orderedmap.OrderedMap[string, any]

// ParseDocument decodes a JSON document while preserving object key order.
// Numbers are kept as json.Number so they serialize back verbatim.
func ParseDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidJSON, err)
	}
	// Trailing content after the top-level value is malformed.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing content after document", models.ErrInvalidJSON)
	}
	return v, nil
}

// SerializeDocument renders the document with two-space indentation.
func SerializeDocument(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidJSON, err)
	}
	return out, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", t)
		}
	default:
		// string, json.Number, bool or nil
		return tok, nil
	}
}

func parseObject(dec *json.Decoder) (*Object, error) {
	obj := orderedmap.New[string, any]()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		obj.Set(key, val)
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) ([]any, error) {
	arr := []any{}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// consume closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}

// firstObject returns the first object reached in depth-first order, which
// hosts the watermark field when the document root is not itself an object.
func firstObject(v any) *Object {
	switch t := v.(type) {
	case *Object:
		return t
	case []any:
		for _, item := range t {
			if obj := firstObject(item); obj != nil {
				return obj
			}
		}
	}
	return nil
}
