package rdf

import "testing"

func TestNamedNode_Equals(t *testing.T) {
	a := NewNamedNode("http://example.org/a")
	b := NewNamedNode("http://example.org/a")
	c := NewNamedNode("http://example.org/b")

	if !a.Equals(b) {
		t.Error("expected equal IRIs to be equal")
	}
	if a.Equals(c) {
		t.Error("expected different IRIs to not be equal")
	}
	if a.Equals(NewLiteral("x")) {
		t.Error("NamedNode should not equal Literal")
	}
}

func TestLiteral_EqualityIsLexicalNotValue(t *testing.T) {
	intLit := NewIntegerLiteral(1)
	decLit := NewLiteralWithDatatype("1", XSDDecimal)

	if intLit.Equals(decLit) {
		t.Error("literals with different datatypes must not be Equal even with the same numeric value")
	}

	a := NewLiteralWithLanguage("chat", "en")
	b := NewLiteralWithLanguage("chat", "en")
	c := NewLiteralWithLanguage("chat", "fr")
	if !a.Equals(b) {
		t.Error("expected matching language-tagged literals to be equal")
	}
	if a.Equals(c) {
		t.Error("expected different language tags to not be equal")
	}
}

func TestLiteral_DirectionAffectsEquality(t *testing.T) {
	a := NewLiteralWithLanguageAndDirection("hello", "en", "ltr")
	b := NewLiteralWithLanguageAndDirection("hello", "en", "rtl")
	if a.Equals(b) {
		t.Error("different base directions must not be equal")
	}
}

func TestLiteral_EffectiveDatatype(t *testing.T) {
	if dt := NewLiteral("x").EffectiveDatatype(); !dt.Equals(XSDString) {
		t.Errorf("simple literal should default to xsd:string, got %s", dt)
	}
	if dt := NewLiteralWithLanguage("x", "en").EffectiveDatatype(); !dt.Equals(RDFLangString) {
		t.Errorf("language literal should default to rdf:langString, got %s", dt)
	}
	if dt := NewLiteralWithLanguageAndDirection("x", "en", "ltr").EffectiveDatatype(); !dt.Equals(RDFDirLangString) {
		t.Errorf("directional literal should default to rdf:dirLangString, got %s", dt)
	}
}

func TestQuotedTriple_RoleValidation(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")

	if _, err := NewQuotedTriple(s, p, o); err != nil {
		t.Fatalf("valid quoted triple rejected: %v", err)
	}
	if _, err := NewQuotedTriple(o, p, o); err == nil {
		t.Error("expected error for literal subject")
	}
	if _, err := NewQuotedTriple(s, o, o); err == nil {
		t.Error("expected error for non-IRI predicate")
	}
}

func TestQuotedTriple_NestedAsSubject(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")
	inner, err := NewQuotedTriple(s, p, o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewQuotedTriple(inner, p, o); err != nil {
		t.Errorf("nested quoted triple as subject should be valid: %v", err)
	}
}

func TestValidateIRI(t *testing.T) {
	valid := []string{"http://example.org/a", "urn:isbn:0451450523", "mailto:x@y.org"}
	for _, v := range valid {
		if err := ValidateIRI(v); err != nil {
			t.Errorf("expected %q to be valid, got %v", v, err)
		}
	}
	invalid := []string{"", "not-absolute", "http://bad space.org/", "<http://x.org>"}
	for _, v := range invalid {
		if err := ValidateIRI(v); err == nil {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestValidateLangTag(t *testing.T) {
	if err := ValidateLangTag("en"); err != nil {
		t.Errorf("expected en to be valid: %v", err)
	}
	if err := ValidateLangTag("en-US"); err != nil {
		t.Errorf("expected en-US to be valid: %v", err)
	}
	if err := ValidateLangTag("this is not a tag"); err == nil {
		t.Error("expected invalid tag to be rejected")
	}
}

func TestQuad_IsDefaultGraph(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")

	q := NewQuad(s, p, o, NewDefaultGraph())
	if !q.IsDefaultGraph() {
		t.Error("expected default graph quad")
	}

	named := NewQuad(s, p, o, NewNamedNode("http://example.org/g"))
	if named.IsDefaultGraph() {
		t.Error("expected named graph quad to not be default")
	}
}

func TestQuad_Equals(t *testing.T) {
	s := NewNamedNode("http://example.org/s")
	p := NewNamedNode("http://example.org/p")
	o := NewLiteral("o")
	g := NewDefaultGraph()

	a := NewQuad(s, p, o, g)
	b := NewQuad(s, p, o, g)
	if !a.Equals(b) {
		t.Error("expected structurally identical quads to be equal")
	}
}
