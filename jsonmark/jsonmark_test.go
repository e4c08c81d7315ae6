package jsonmark

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/Wxl-c137/BlindMarkerMaster/models"
	"github.com/Wxl-c137/BlindMarkerMaster/security"
)

func extractOne(t *testing.T, doc []byte, field, aesKey string) models.WatermarkFinding {
	t.Helper()
	findings, err := Extract(doc, field, aesKey)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d: %+v", len(findings), findings)
	}
	return findings[0]
}

func TestEmbedMD5Mode(t *testing.T) {
	doc := []byte(`{"name": "test", "version": "1.0"}`)
	out, err := Embed(doc, "hello world", "_watermark", models.ModeMD5, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	f := extractOne(t, out, "_watermark", "")
	if f.Mode != "md5" || !f.Decrypted {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if f.Value != security.MD5Hex("hello world") {
		t.Fatalf("stored %s, want md5 digest", f.Value)
	}
}

func TestEmbedPlaintextMode(t *testing.T) {
	doc := []byte(`{"x": 1}`)
	out, err := Embed(doc, "hello", "_wm", models.ModePlaintext, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if parsed["_wm"] != "hello" {
		t.Fatalf("stored %v, want \"hello\"", parsed["_wm"])
	}
	if parsed["x"] != float64(1) {
		t.Fatalf("original field damaged: %v", parsed["x"])
	}
}

func TestEmbedAESRoundtrip(t *testing.T) {
	doc := []byte(`{"data": [1, 2]}`)
	out, err := Embed(doc, "secret", "_watermark", models.ModeAES, "pw", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	withKey := extractOne(t, out, "_watermark", "pw")
	if withKey.Value != "secret" || withKey.Mode != "aes" || !withKey.Decrypted {
		t.Fatalf("unexpected finding with correct key: %+v", withKey)
	}

	wrongKey := extractOne(t, out, "_watermark", "wrong")
	if wrongKey.Mode != "aes" || wrongKey.Decrypted {
		t.Fatalf("unexpected finding with wrong key: %+v", wrongKey)
	}
	if wrongKey.Value == "secret" {
		t.Fatal("wrong key must not reveal the plaintext")
	}

	noKey := extractOne(t, out, "_watermark", "")
	if noKey.Decrypted {
		t.Fatal("missing key must report decrypted=false")
	}
}

func TestEmbedAESRequiresKey(t *testing.T) {
	if _, err := Embed([]byte(`{}`), "x", "_watermark", models.ModeAES, "", false); err == nil {
		t.Fatal("expected error for aes mode without key")
	}
}

func TestEmbedPreservesKeyOrder(t *testing.T) {
	doc := []byte(`{"zebra": 1, "apple": "two", "mango": [3], "banana": {"x": "y"}}`)
	out, err := Embed(doc, "order", "_watermark", models.ModeMD5, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	root, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	obj := root.(*Object)
	var keys []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	want := []string{"zebra", "apple", "mango", "banana", "_watermark"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("key order %v, want %v", keys, want)
	}
}

func TestEmbedOverwritesExistingMark(t *testing.T) {
	doc := []byte(`{"key": "value", "_watermark": "old"}`)
	out, err := Embed(doc, "new text", "_watermark", models.ModeMD5, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	f := extractOne(t, out, "_watermark", "")
	if f.Value != security.MD5Hex("new text") {
		t.Fatalf("stored %s, want digest of replacement", f.Value)
	}
}

func TestEmbedArrayRootWrapsObject(t *testing.T) {
	doc := []byte(`[1, 2, 3]`)
	out, err := Embed(doc, "arr", "_watermark", models.ModePlaintext, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if parsed["_watermark"] != "arr" {
		t.Fatalf("missing watermark in wrapper: %s", out)
	}
	if _, ok := parsed["_"].([]any); !ok {
		t.Fatalf("original array not preserved: %s", out)
	}
}

func TestEmbedArrayWithNestedObject(t *testing.T) {
	// The first object in depth-first order hosts the mark; no wrapper.
	doc := []byte(`[{"a": 1}, {"b": 2}]`)
	out, err := Embed(doc, "nested", "_watermark", models.ModePlaintext, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	var parsed []map[string]any
	if err := json.Unmarshal(out, &parsed); err != nil {
		t.Fatalf("output shape changed: %v", err)
	}
	if parsed[0]["_watermark"] != "nested" {
		t.Fatalf("first object does not carry the mark: %s", out)
	}
}

func TestEmbedInvalidJSON(t *testing.T) {
	if _, err := Embed([]byte(`{not json`), "x", "_watermark", models.ModeMD5, "", false); err == nil {
		t.Fatal("expected parse error")
	}
}

var obfuscatedKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9]{5,11}$`)

func TestObfuscatedEmbed(t *testing.T) {
	doc := []byte(`{"a": "x", "b": "y"}`)
	out, err := Embed(doc, "zz", "_watermark", models.ModePlaintext, "", true)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if strings.Contains(string(out), "_watermark") {
		t.Fatalf("obfuscated output must not contain the field name: %s", out)
	}

	root, err := ParseDocument(out)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	obj := root.(*Object)
	if obj.Len() != 3 {
		t.Fatalf("expected 3 keys, got %d: %s", obj.Len(), out)
	}

	var disguised string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "a" || pair.Key == "b" {
			continue
		}
		disguised = pair.Key
		if !isMagicTuple(pair.Value) {
			t.Fatalf("disguised value is not a magic tuple: %v", pair.Value)
		}
	}
	if !obfuscatedKeyPattern.MatchString(disguised) {
		t.Fatalf("disguised key %q is not 6-12 lowercase alphanumerics", disguised)
	}

	f := extractOne(t, out, "_watermark", "")
	if f.Value != "zz" || f.Mode != "plaintext" {
		t.Fatalf("unexpected finding: %+v", f)
	}
}

func TestObfuscatedInsertionAdjacency(t *testing.T) {
	doc := []byte(`{"first": "s1", "second": 2, "third": "s3"}`)
	out, err := Embed(doc, "adj", "_watermark", models.ModePlaintext, "", true)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	root, _ := ParseDocument(out)
	obj := root.(*Object)

	var keys []string
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	// The disguised key sits immediately after a string-valued sibling.
	for i, key := range keys {
		if key == "first" || key == "second" || key == "third" {
			continue
		}
		if i == 0 {
			t.Fatalf("disguised key %q is first, not adjacent to a sibling: %v", key, keys)
		}
		prev := keys[i-1]
		if prev != "first" && prev != "third" {
			t.Fatalf("disguised key %q follows %q, want a string-valued sibling: %v", key, prev, keys)
		}
		return
	}
	t.Fatalf("no disguised key found in %v", keys)
}

func TestObfuscatedReplacesOldMark(t *testing.T) {
	doc := []byte(`{"a": "x"}`)
	once, err := Embed(doc, "one", "_watermark", models.ModePlaintext, "", true)
	if err != nil {
		t.Fatalf("first embed: %v", err)
	}
	twice, err := Embed(once, "two", "_watermark", models.ModePlaintext, "", true)
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}
	f := extractOne(t, twice, "_watermark", "")
	if f.Value != "two" {
		t.Fatalf("stale mark survived: %+v", f)
	}
}

func TestObfuscatedAllThreeModes(t *testing.T) {
	doc := []byte(`{"licenseType": "CC BY-NC-SA", "creatorName": "Dnaddr"}`)

	plain, err := Embed(doc, "张三", "_watermark", models.ModePlaintext, "", true)
	if err != nil {
		t.Fatalf("plaintext: %v", err)
	}
	if f := extractOne(t, plain, "_watermark", ""); f.Value != "张三" || f.Mode != "plaintext" {
		t.Fatalf("plaintext finding: %+v", f)
	}

	hashed, err := Embed(doc, "张三", "_watermark", models.ModeMD5, "", true)
	if err != nil {
		t.Fatalf("md5: %v", err)
	}
	if f := extractOne(t, hashed, "_watermark", ""); f.Mode != "md5" {
		t.Fatalf("md5 finding: %+v", f)
	}

	sealed, err := Embed(doc, "张三", "_watermark", models.ModeAES, "key123", true)
	if err != nil {
		t.Fatalf("aes: %v", err)
	}
	if f := extractOne(t, sealed, "_watermark", "key123"); f.Value != "张三" || !f.Decrypted {
		t.Fatalf("aes finding: %+v", f)
	}
}

func TestExtractNestedField(t *testing.T) {
	doc := []byte(`{"outer": {"inner": {"_watermark": "deep"}}}`)
	f := extractOne(t, doc, "_watermark", "")
	if f.Value != "deep" || f.Mode != "plaintext" {
		t.Fatalf("unexpected finding: %+v", f)
	}
}

func TestExtractCleanDocument(t *testing.T) {
	findings, err := Extract([]byte(`{"a": 1, "b": "two"}`), "_watermark", "")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("expected no findings, got %+v", findings)
	}
}

func TestDecodeValueClassification(t *testing.T) {
	digest := security.MD5Hex("x")
	if _, mode, ok := DecodeValue(digest, ""); mode != "md5" || !ok {
		t.Fatalf("md5 digest classified as %s", mode)
	}
	if v, mode, ok := DecodeValue("just some text", ""); mode != "plaintext" || !ok || v != "just some text" {
		t.Fatalf("plaintext classified as %s", mode)
	}
	blob, err := security.EncryptValue("hi", "k")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, mode, ok := DecodeValue(blob, ""); mode != "aes" || ok {
		t.Fatalf("aes blob without key classified as %s decrypted=%v", mode, ok)
	}
	if v, mode, ok := DecodeValue(blob, "k"); mode != "aes" || !ok || v != "hi" {
		t.Fatalf("aes blob with key: %s %s %v", v, mode, ok)
	}
}

func TestNumbersSurviveReserialization(t *testing.T) {
	doc := []byte(`{"big": 12345678901234567890, "float": 0.1}`)
	out, err := Embed(doc, "n", "_watermark", models.ModePlaintext, "", false)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "12345678901234567890") {
		t.Fatalf("large integer mangled: %s", s)
	}
	if !strings.Contains(s, "0.1") {
		t.Fatalf("float mangled: %s", s)
	}
}
