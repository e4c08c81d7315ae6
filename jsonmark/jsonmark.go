package jsonmark

import (
	"fmt"
	"math/rand/v2"
	"regexp"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

// obfuscationMagic tags the first element of an obfuscated watermark tuple
// so extraction can identify the mark by value shape instead of key name.
const obfuscationMagic = "bw1\x00"

var md5HexPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// EncodeValue turns the payload text into the stored string under the
// requested mode.
func EncodeValue(text string, mode models.EncodingMode, aesKey string) (string, error) {
	switch mode {
	case models.ModePlaintext:
		return text, nil
	case models.ModeAES:
		if aesKey == "" {
			return "", fmt.Errorf("%w: aes mode requires a key", models.ErrInvalidConfig)
		}
		return security.EncryptValue(text, aesKey)
	default:
		return security.MD5Hex(text), nil
	}
}

// DecodeValue classifies a stored string and, for AES payloads, attempts
// decryption. The returned mode is one of "md5", "plaintext" or "aes";
// decrypted is false only for AES payloads that could not be opened.
func DecodeValue(raw string, aesKey string) (value, mode string, decrypted bool) {
	if md5HexPattern.MatchString(raw) {
		return raw, string(models.ModeMD5), true
	}
	if security.LooksEncrypted(raw) {
		if aesKey != "" {
			if plain, err := security.DecryptValue(raw, aesKey); err == nil {
				return plain, string(models.ModeAES), true
			}
		}
		return raw, string(models.ModeAES), false
	}
	return raw, string(models.ModePlaintext), true
}

// Embed parses the document, stores the encoded payload and serializes the
// result, preserving the document's key order throughout.
//
// Plain embedding sets field on the first top-level object (wrapping pure
// array documents). Obfuscated embedding invents a random field name,
// removes any previously embedded mark, and inserts the magic-tagged tuple
// next to a randomly chosen string-valued sibling.
func Embed(doc []byte, text, field string, mode models.EncodingMode, aesKey string, obfuscate bool) ([]byte, error) {
	root, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeValue(text, mode, aesKey)
	if err != nil {
		return nil, err
	}

	host := firstObject(root)
	if host == nil {
		// Pure array document with no object anywhere: wrap it so the mark
		// has a home. Obfuscation has no siblings to hide behind here, so
		// both paths use the wrapper.
		arr, ok := root.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: top-level value is not an object or array", models.ErrInvalidJSON)
		}
		wrapper := orderedmap.New[string, any]()
		wrapper.Set("_", arr)
		wrapper.Set(field, encoded)
		return SerializeDocument(wrapper)
	}

	if obfuscate {
		embedObfuscated(host, field, encoded)
	} else {
		host.Set(field, encoded)
	}
	return SerializeDocument(root)
}

func embedObfuscated(host *Object, field, encoded string) {
	// A file carries exactly one mark: drop the named field and any earlier
	// obfuscated tuple before inserting the new one.
	host.Delete(field)
	for pair := host.Oldest(); pair != nil; {
		next := pair.Next()
		if isMagicTuple(pair.Value) {
			host.Delete(pair.Key)
		}
		pair = next
	}

	name := randomFieldName(host)
	anchor := randomStringSibling(host)
	tuple := []any{obfuscationMagic, encoded}

	if anchor == "" {
		host.Set(name, tuple)
		return
	}
	insertAfter(host, anchor, name, tuple)
}

// insertAfter rebuilds the map so that key lands immediately after anchor in
// insertion order.
func insertAfter(host *Object, anchor, key string, value any) {
	type entry struct {
		k string
		v any
	}
	var entries []entry
	for pair := host.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, entry{pair.Key, pair.Value})
		if pair.Key == anchor {
			entries = append(entries, entry{key, value})
		}
	}
	for pair := host.Oldest(); pair != nil; {
		next := pair.Next()
		host.Delete(pair.Key)
		pair = next
	}
	for _, e := range entries {
		host.Set(e.k, e.v)
	}
}

const fieldNameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// randomFieldName picks a 6-12 character lowercase-alphanumeric name that
// does not collide with an existing sibling key.
func randomFieldName(host *Object) string {
	for {
		n := 6 + rand.IntN(7)
		buf := make([]byte, n)
		// First character alphabetic, the rest from the full alphabet.
		buf[0] = fieldNameAlphabet[rand.IntN(26)]
		for i := 1; i < n; i++ {
			buf[i] = fieldNameAlphabet[rand.IntN(len(fieldNameAlphabet))]
		}
		name := string(buf)
		if _, exists := host.Get(name); !exists {
			return name
		}
	}
}

// randomStringSibling returns the key of a uniformly chosen string-valued
// member of host, or "" when none exists.
func randomStringSibling(host *Object) string {
	var keys []string
	for pair := host.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := pair.Value.(string); ok {
			keys = append(keys, pair.Key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	return keys[rand.IntN(len(keys))]
}

// Extract walks every object in the document and collects watermark
// candidates: string values stored under field, and magic-tagged tuples
// regardless of their key.
func Extract(doc []byte, field string, aesKey string) ([]models.WatermarkFinding, error) {
	root, err := ParseDocument(doc)
	if err != nil {
		return nil, err
	}
	var findings []models.WatermarkFinding
	walkValues(root, func(key string, value any) {
		var raw string
		switch {
		case key == field:
			s, ok := value.(string)
			if !ok {
				return
			}
			raw = s
		case isMagicTuple(value):
			raw = value.([]any)[1].(string)
		default:
			return
		}
		v, mode, decrypted := DecodeValue(raw, aesKey)
		findings = append(findings, models.WatermarkFinding{Value: v, Mode: mode, Decrypted: decrypted})
	})
	return findings, nil
}

// HasMark reports whether the document already carries a mark under field or
// as an obfuscated tuple.
func HasMark(doc []byte, field string) bool {
	findings, err := Extract(doc, field, "")
	return err == nil && len(findings) > 0
}

func walkValues(v any, visit func(key string, value any)) {
	switch t := v.(type) {
	case *Object:
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			visit(pair.Key, pair.Value)
			walkValues(pair.Value, visit)
		}
	case []any:
		for _, item := range t {
			walkValues(item, visit)
		}
	}
}

func isMagicTuple(v any) bool {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return false
	}
	marker, ok := arr[0].(string)
	if !ok || marker != obfuscationMagic {
		return false
	}
	_, ok = arr[1].(string)
	return ok
}
