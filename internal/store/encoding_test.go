package store

import (
	"testing"

	"github.com/rdfkit/trigraph/pkg/rdf"
)

func TestTermEncoder_RoundTrip_NamedNode(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	term := rdf.NewNamedNode("http://example.org/s")
	encoded, str, err := enc.EncodeTerm(term)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if str == nil {
		t.Fatal("expected named node to require a dictionary entry")
	}

	decoded, err := dec.DecodeTerm(encoded, str)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equals(term) {
		t.Errorf("round-trip mismatch: got %s, want %s", decoded, term)
	}
}

func TestTermEncoder_RoundTrip_IntegerLiteral(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	term := rdf.NewIntegerLiteral(-42)
	encoded, str, err := enc.EncodeTerm(term)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if str != nil {
		t.Error("integer literals should be inline, not dictionary-interned")
	}

	decoded, err := dec.DecodeTerm(encoded, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equals(term) {
		t.Errorf("round-trip mismatch: got %s, want %s", decoded, term)
	}
}

func TestTermEncoder_RoundTrip_ShortStringLiteral(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	term := rdf.NewLiteral("short")
	encoded, str, err := enc.EncodeTerm(term)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if str != nil {
		t.Error("short string literals should be inline")
	}

	decoded, err := dec.DecodeTerm(encoded, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equals(term) {
		t.Errorf("round-trip mismatch: got %s, want %s", decoded, term)
	}
}

func TestTermEncoder_RoundTrip_LongStringLiteral(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	term := rdf.NewLiteral("this literal is definitely longer than sixteen bytes")
	encoded, str, err := enc.EncodeTerm(term)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if str == nil {
		t.Fatal("long string literals must be dictionary-interned")
	}

	decoded, err := dec.DecodeTerm(encoded, str)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equals(term) {
		t.Errorf("round-trip mismatch: got %s, want %s", decoded, term)
	}
}

func TestTermEncoder_RoundTrip_LangStringLiteral(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	term := rdf.NewLiteralWithLanguage("bonjour", "fr")
	encoded, str, err := enc.EncodeTerm(term)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := dec.DecodeTerm(encoded, str)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.Equals(term) {
		t.Errorf("round-trip mismatch: got %s, want %s", decoded, term)
	}
}

func TestTermEncoder_RoundTrip_BooleanLiteral(t *testing.T) {
	enc := NewTermEncoder()
	dec := NewTermDecoder()

	for _, v := range []bool{true, false} {
		term := rdf.NewBooleanLiteral(v)
		encoded, _, err := enc.EncodeTerm(term)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		decoded, err := dec.DecodeTerm(encoded, nil)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !decoded.Equals(term) {
			t.Errorf("round-trip mismatch for %v: got %s", v, decoded)
		}
	}
}

func TestTermEncoder_IntegerAndDecimalDoNotCollide(t *testing.T) {
	enc := NewTermEncoder()

	intTerm := rdf.NewIntegerLiteral(1)
	decTerm := rdf.NewLiteralWithDatatype("1", rdf.XSDDecimal)

	intEnc, _, err := enc.EncodeTerm(intTerm)
	if err != nil {
		t.Fatalf("encode int: %v", err)
	}
	decEnc, _, err := enc.EncodeTerm(decTerm)
	if err != nil {
		t.Fatalf("encode decimal: %v", err)
	}
	if intEnc == decEnc {
		t.Error("xsd:integer and xsd:decimal encodings of the same lexical value must differ")
	}
	if intEnc.Type() == decEnc.Type() {
		t.Error("expected distinct type tags for xsd:integer and xsd:decimal")
	}
}

func TestHash128_Deterministic(t *testing.T) {
	a := Hash128("http://example.org/a")
	b := Hash128("http://example.org/a")
	c := Hash128("http://example.org/b")
	if a != b {
		t.Error("expected identical hashes for identical strings")
	}
	if a == c {
		t.Error("expected different hashes for different strings")
	}
}

func TestEncodeQuadKey_OrderAffectsBytes(t *testing.T) {
	enc := NewTermEncoder()
	s, _, _ := enc.EncodeTerm(rdf.NewNamedNode("http://example.org/s"))
	p, _, _ := enc.EncodeTerm(rdf.NewNamedNode("http://example.org/p"))
	o, _, _ := enc.EncodeTerm(rdf.NewNamedNode("http://example.org/o"))

	spo := EncodeQuadKey(s, p, o)
	pos := EncodeQuadKey(p, o, s)
	if len(spo) != 3*EncodedTermSize || len(pos) != 3*EncodedTermSize {
		t.Fatalf("unexpected key length: spo=%d pos=%d", len(spo), len(pos))
	}
	if string(spo) == string(pos) {
		t.Error("different key orderings over the same terms must produce different bytes")
	}
}
