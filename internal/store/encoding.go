package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rdfkit/trigraph/pkg/rdf"
	"github.com/zeebo/xxh3"
)

const (
	// MaxInlineStringSize is the largest lexical form (in bytes) stored
	// inline in an EncodedTerm rather than hashed into the dictionary.
	MaxInlineStringSize = 16

	// EncodedTermSize is the fixed width of an EncodedTerm: one type-tag
	// byte plus 16 bytes of inline data or a 128-bit dictionary hash.
	EncodedTermSize = 17
)

// EncodedTerm is the fixed-width identifier standing in for an rdf.Term
// everywhere inside the storage layer (spec.md §3); the evaluator works on
// decoded rdf.Term values instead. Byte 0
// is a type tag; bytes 1-16 hold either an inline value or a dictionary
// hash key.
type EncodedTerm [EncodedTermSize]byte

// Type extracts the type tag of an encoded term.
func (e EncodedTerm) Type() rdf.TermType { return rdf.TermType(e[0]) }

// HashKey returns the dictionary-lookup portion of the encoded term (bytes
// 1-16), used as the key into TableID2Str.
func (e EncodedTerm) HashKey() []byte { return e[1:] }

// TermEncoder turns rdf.Terms into EncodedTerms, optionally producing a
// string to be interned in the dictionary.
type TermEncoder struct{}

func NewTermEncoder() *TermEncoder { return &TermEncoder{} }

// Hash128 computes a 128-bit xxh3 hash of s, used as the dictionary key
// for any lexical form too large to inline (spec.md §3, String dictionary).
func Hash128(s string) [16]byte {
	h := xxh3.Hash128([]byte(s))
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], h.Hi)
	binary.BigEndian.PutUint64(out[8:16], h.Lo)
	return out
}

// EncodeTerm encodes term. The returned *string, when non-nil, must be
// interned into TableID2Str keyed by the returned EncodedTerm's HashKey.
func (e *TermEncoder) EncodeTerm(term rdf.Term) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	switch t := term.(type) {
	case *rdf.NamedNode:
		return e.encodeNamedNode(t)
	case *rdf.BlankNode:
		return e.encodeBlankNode(t)
	case *rdf.Literal:
		return e.encodeLiteral(t)
	case *rdf.DefaultGraph:
		enc[0] = byte(rdf.TermTypeDefaultGraph)
		return enc, nil, nil
	case *rdf.QuotedTriple:
		return e.encodeQuotedTriple(t)
	default:
		return enc, nil, fmt.Errorf("encode: unknown term type %T", term)
	}
}

func (e *TermEncoder) encodeNamedNode(n *rdf.NamedNode) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeNamedNode)
	h := Hash128(n.IRI)
	copy(enc[1:], h[:])
	iri := n.IRI
	return enc, &iri, nil
}

func (e *TermEncoder) encodeBlankNode(b *rdf.BlankNode) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeBlankNode)
	if num, err := strconv.ParseUint(b.ID, 10, 64); err == nil && strconv.FormatUint(num, 10) == b.ID {
		binary.BigEndian.PutUint64(enc[1:9], num)
		return enc, nil, nil
	}
	h := Hash128(b.ID)
	copy(enc[1:], h[:])
	id := b.ID
	return enc, &id, nil
}

func (e *TermEncoder) encodeLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	if lit.Datatype != nil {
		switch lit.Datatype.IRI {
		case rdf.XSDInteger.IRI:
			return e.encodeIntegerLiteral(lit)
		case rdf.XSDDecimal.IRI:
			return e.encodeDecimalLiteral(lit)
		case rdf.XSDDouble.IRI, rdf.XSDFloat.IRI:
			return e.encodeDoubleLiteral(lit)
		case rdf.XSDBoolean.IRI:
			return e.encodeBooleanLiteral(lit)
		case rdf.XSDDateTime.IRI:
			return e.encodeDateTimeLiteral(lit)
		case rdf.XSDDate.IRI:
			return e.encodeDateLiteral(lit)
		default:
			return e.encodeTypedLiteral(lit)
		}
	}
	if lit.Language != "" {
		return e.encodeLangStringLiteral(lit)
	}
	return e.encodeStringLiteral(lit)
}

func (e *TermEncoder) encodeStringLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeStringLiteral)
	if len(lit.Value) <= MaxInlineStringSize {
		copy(enc[1:], []byte(lit.Value))
		return enc, nil, nil
	}
	h := Hash128(lit.Value)
	copy(enc[1:], h[:])
	v := lit.Value
	return enc, &v, nil
}

func (e *TermEncoder) encodeLangStringLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeLangStringLiteral)
	combined := lit.Value + "\x00" + lit.Language + "\x00" + lit.Direction
	h := Hash128(combined)
	copy(enc[1:], h[:])
	return enc, &combined, nil
}

func (e *TermEncoder) encodeTypedLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeTypedLiteral)
	combined := lit.Value + "\x00" + lit.Datatype.IRI
	h := Hash128(combined)
	copy(enc[1:], h[:])
	return enc, &combined, nil
}

func (e *TermEncoder) encodeIntegerLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeIntegerLiteral)
	v, err := strconv.ParseInt(lit.Value, 10, 64)
	if err != nil {
		return enc, nil, fmt.Errorf("%w: invalid xsd:integer %q: %v", rdf.ErrTermSyntax, lit.Value, err)
	}
	binary.BigEndian.PutUint64(enc[1:9], uint64(v))
	return enc, nil, nil
}

func (e *TermEncoder) encodeDecimalLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeDecimalLiteral)
	v, err := strconv.ParseFloat(lit.Value, 64)
	if err != nil {
		return enc, nil, fmt.Errorf("%w: invalid xsd:decimal %q: %v", rdf.ErrTermSyntax, lit.Value, err)
	}
	binary.BigEndian.PutUint64(enc[1:9], math.Float64bits(v))
	return enc, nil, nil
}

func (e *TermEncoder) encodeDoubleLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeDoubleLiteral)
	v, err := strconv.ParseFloat(lit.Value, 64)
	if err != nil {
		return enc, nil, fmt.Errorf("%w: invalid xsd:double %q: %v", rdf.ErrTermSyntax, lit.Value, err)
	}
	binary.BigEndian.PutUint64(enc[1:9], math.Float64bits(v))
	return enc, nil, nil
}

func (e *TermEncoder) encodeBooleanLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeBooleanLiteral)
	v, err := strconv.ParseBool(lit.Value)
	if err != nil {
		return enc, nil, fmt.Errorf("%w: invalid xsd:boolean %q: %v", rdf.ErrTermSyntax, lit.Value, err)
	}
	if v {
		enc[1] = 1
	}
	return enc, nil, nil
}

func (e *TermEncoder) encodeDateTimeLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeDateTimeLiteral)
	trimmed := strings.TrimSpace(lit.Value)
	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05", trimmed)
		if err != nil {
			return enc, nil, fmt.Errorf("%w: invalid xsd:dateTime %q: %v", rdf.ErrTermSyntax, lit.Value, err)
		}
		t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	}
	binary.BigEndian.PutUint64(enc[1:9], uint64(t.UnixNano()))
	return enc, nil, nil
}

func (e *TermEncoder) encodeDateLiteral(lit *rdf.Literal) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeDateLiteral)
	t, err := time.Parse("2006-01-02", strings.TrimSpace(lit.Value))
	if err != nil {
		return enc, nil, fmt.Errorf("%w: invalid xsd:date %q: %v", rdf.ErrTermSyntax, lit.Value, err)
	}
	days := t.Unix() / 86400
	binary.BigEndian.PutUint64(enc[1:9], uint64(days))
	return enc, nil, nil
}

func (e *TermEncoder) encodeQuotedTriple(qt *rdf.QuotedTriple) (EncodedTerm, *string, error) {
	var enc EncodedTerm
	enc[0] = byte(rdf.TermTypeQuotedTriple)
	serialized := qt.String()
	h := Hash128(serialized)
	copy(enc[1:], h[:])
	return enc, &serialized, nil
}

// EncodeQuadKey concatenates encoded terms in index-key order, producing a
// big-endian byte sequence whose lexicographic order matches the index's
// declared ordering.
func EncodeQuadKey(terms ...EncodedTerm) []byte {
	out := make([]byte, 0, len(terms)*EncodedTermSize)
	for _, t := range terms {
		out = append(out, t[:]...)
	}
	return out
}

// TermDecoder turns EncodedTerms back into rdf.Terms, resolving dictionary
// lookups the caller has already performed.
type TermDecoder struct{}

func NewTermDecoder() *TermDecoder { return &TermDecoder{} }

// DecodeTerm decodes enc. stringValue must be supplied whenever the
// encoding requires a dictionary lookup (named nodes, hashed blank nodes,
// hashed/lang/typed literals, quoted triples); its absence there signals
// storage corruption (a dictionary entry went missing), which is reported
// via CorruptionError by the caller, not here.
func (d *TermDecoder) DecodeTerm(enc EncodedTerm, stringValue *string) (rdf.Term, error) {
	switch enc.Type() {
	case rdf.TermTypeNamedNode:
		if stringValue == nil {
			return nil, fmt.Errorf("missing dictionary entry for named node")
		}
		return rdf.NewNamedNode(*stringValue), nil

	case rdf.TermTypeBlankNode:
		if stringValue != nil {
			return rdf.NewBlankNode(*stringValue), nil
		}
		id := binary.BigEndian.Uint64(enc[1:9])
		return rdf.NewBlankNode(strconv.FormatUint(id, 10)), nil

	case rdf.TermTypeStringLiteral:
		if stringValue != nil {
			return rdf.NewLiteral(*stringValue), nil
		}
		end := 1
		for end < EncodedTermSize && enc[end] != 0 {
			end++
		}
		return rdf.NewLiteral(string(enc[1:end])), nil

	case rdf.TermTypeLangStringLiteral:
		if stringValue == nil {
			return nil, fmt.Errorf("missing dictionary entry for language literal")
		}
		parts := strings.SplitN(*stringValue, "\x00", 3)
		if len(parts) < 2 {
			return nil, fmt.Errorf("malformed language literal dictionary entry")
		}
		direction := ""
		if len(parts) == 3 {
			direction = parts[2]
		}
		return &rdf.Literal{Value: parts[0], Language: parts[1], Direction: direction}, nil

	case rdf.TermTypeTypedLiteral:
		if stringValue == nil {
			return nil, fmt.Errorf("missing dictionary entry for typed literal")
		}
		parts := strings.SplitN(*stringValue, "\x00", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed typed literal dictionary entry")
		}
		return rdf.NewLiteralWithDatatype(parts[0], rdf.NewNamedNode(parts[1])), nil

	case rdf.TermTypeIntegerLiteral:
		v := int64(binary.BigEndian.Uint64(enc[1:9]))
		return rdf.NewIntegerLiteral(v), nil

	case rdf.TermTypeDecimalLiteral:
		v := math.Float64frombits(binary.BigEndian.Uint64(enc[1:9]))
		return rdf.NewDecimalLiteral(v), nil

	case rdf.TermTypeDoubleLiteral:
		v := math.Float64frombits(binary.BigEndian.Uint64(enc[1:9]))
		return rdf.NewDoubleLiteral(v), nil

	case rdf.TermTypeBooleanLiteral:
		return rdf.NewBooleanLiteral(enc[1] != 0), nil

	case rdf.TermTypeDateTimeLiteral:
		nanos := int64(binary.BigEndian.Uint64(enc[1:9]))
		return rdf.NewLiteralWithDatatype(time.Unix(0, nanos).UTC().Format(time.RFC3339), rdf.XSDDateTime), nil

	case rdf.TermTypeDateLiteral:
		days := int64(binary.BigEndian.Uint64(enc[1:9]))
		return rdf.NewLiteralWithDatatype(time.Unix(days*86400, 0).UTC().Format("2006-01-02"), rdf.XSDDate), nil

	case rdf.TermTypeDefaultGraph:
		return rdf.NewDefaultGraph(), nil

	case rdf.TermTypeQuotedTriple:
		if stringValue == nil {
			return nil, fmt.Errorf("missing dictionary entry for quoted triple")
		}
		// The dictionary stores the canonical `<< s p o >>` string only for
		// hashing/round-trip identity checks; reconstructing the structured
		// QuotedTriple from it is the evaluator's job when it needs to
		// materialize one (it keeps the sub-term EncodedTerms alongside).
		return nil, fmt.Errorf("quoted triple requires structured decode, not string form")

	default:
		return nil, fmt.Errorf("unknown encoded term type %d", enc.Type())
	}
}
