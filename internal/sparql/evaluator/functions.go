package evaluator

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rdfkit/trigraph/internal/sparql/algebra"
	"github.com/rdfkit/trigraph/pkg/rdf"
)

// evalFunctionCall dispatches a built-in SPARQL function call or an XSD
// constructor cast (spec.md §4.3/§4.5), grounded on the teacher's
// evaluateFunctionCall (pkg/sparql/evaluator/functions.go) extended with
// the date/hash/string functions spec.md's function list names beyond
// what the teacher implements.
func (e *Evaluator) evalFunctionCall(ex *algebra.ExprFunctionCall, sol Solution) (rdf.Term, error) {
	name := ex.Name
	args := ex.Args

	switch name {
	// Type-checking functions.
	case "BOUND":
		return e.fnBound(args, sol)
	case "ISIRI", "ISURI":
		return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
			_, ok := t.(*rdf.NamedNode)
			return rdf.NewBooleanLiteral(ok), nil
		})
	case "ISBLANK":
		return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
			_, ok := t.(*rdf.BlankNode)
			return rdf.NewBooleanLiteral(ok), nil
		})
	case "ISLITERAL":
		return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
			_, ok := t.(*rdf.Literal)
			return rdf.NewBooleanLiteral(ok), nil
		})
	case "ISNUMERIC":
		return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
			_, ok := asNumeric(t)
			return rdf.NewBooleanLiteral(ok), nil
		})

	// Value-extraction functions.
	case "STR":
		return e.fnArg1(args, sol, fnStr)
	case "LANG":
		return e.fnArg1(args, sol, fnLang)
	case "DATATYPE":
		return e.fnArg1(args, sol, fnDatatype)

	// String functions.
	case "STRLEN":
		return e.fnString1(args, sol, func(s string) (rdf.Term, error) {
			return rdf.NewIntegerLiteral(int64(len([]rune(s)))), nil
		})
	case "UCASE":
		return e.fnString1(args, sol, func(s string) (rdf.Term, error) {
			return rdf.NewLiteral(strings.ToUpper(s)), nil
		})
	case "LCASE":
		return e.fnString1(args, sol, func(s string) (rdf.Term, error) {
			return rdf.NewLiteral(strings.ToLower(s)), nil
		})
	case "SUBSTR":
		return e.fnSubstr(args, sol)
	case "CONCAT":
		return e.fnConcat(args, sol)
	case "CONTAINS":
		return e.fnString2(args, sol, func(a, b string) (rdf.Term, error) {
			return rdf.NewBooleanLiteral(strings.Contains(a, b)), nil
		})
	case "STRSTARTS":
		return e.fnString2(args, sol, func(a, b string) (rdf.Term, error) {
			return rdf.NewBooleanLiteral(strings.HasPrefix(a, b)), nil
		})
	case "STRENDS":
		return e.fnString2(args, sol, func(a, b string) (rdf.Term, error) {
			return rdf.NewBooleanLiteral(strings.HasSuffix(a, b)), nil
		})
	case "STRBEFORE":
		return e.fnString2(args, sol, func(a, b string) (rdf.Term, error) {
			if i := strings.Index(a, b); i >= 0 && b != "" {
				return rdf.NewLiteral(a[:i]), nil
			}
			return rdf.NewLiteral(""), nil
		})
	case "STRAFTER":
		return e.fnString2(args, sol, func(a, b string) (rdf.Term, error) {
			if i := strings.Index(a, b); i >= 0 && b != "" {
				return rdf.NewLiteral(a[i+len(b):]), nil
			}
			return rdf.NewLiteral(""), nil
		})
	case "REPLACE":
		return e.fnReplace(args, sol)
	case "ENCODE_FOR_URI":
		return e.fnString1(args, sol, func(s string) (rdf.Term, error) {
			return rdf.NewLiteral(url.QueryEscape(s)), nil
		})
	case "REGEX":
		return e.fnRegex(args, sol)
	case "LANGMATCHES":
		return e.fnLangMatches(args, sol)
	case "SAMETERM":
		return e.fnSameTerm(args, sol)
	case "STRLANG":
		return e.fnStrLang(args, sol)
	case "STRDT":
		return e.fnStrDt(args, sol)

	// Numeric functions.
	case "ABS":
		return e.fnNumeric1(args, sol, func(n numericValue) rdf.Term {
			if n.kind == numInteger {
				if n.i < 0 {
					return rdf.NewIntegerLiteral(-n.i)
				}
				return rdf.NewIntegerLiteral(n.i)
			}
			r := numericValue{kind: n.kind, f: math.Abs(n.asFloat())}
			return r.toTerm()
		})
	case "CEIL":
		return e.fnNumeric1(args, sol, func(n numericValue) rdf.Term {
			if n.kind == numInteger {
				return rdf.NewIntegerLiteral(n.i)
			}
			return numericValue{kind: n.kind, f: math.Ceil(n.asFloat())}.toTerm()
		})
	case "FLOOR":
		return e.fnNumeric1(args, sol, func(n numericValue) rdf.Term {
			if n.kind == numInteger {
				return rdf.NewIntegerLiteral(n.i)
			}
			return numericValue{kind: n.kind, f: math.Floor(n.asFloat())}.toTerm()
		})
	case "ROUND":
		return e.fnNumeric1(args, sol, func(n numericValue) rdf.Term {
			if n.kind == numInteger {
				return rdf.NewIntegerLiteral(n.i)
			}
			return numericValue{kind: n.kind, f: math.Round(n.asFloat())}.toTerm()
		})

	// Hash functions (stdlib crypto, matching the teacher's stdlib-only
	// stance on REGEX; SPARQL's hash built-ins have no ecosystem
	// third-party substitute any pack repo reaches for).
	case "MD5":
		return e.fnHash(args, sol, md5.New())
	case "SHA1":
		return e.fnHash(args, sol, sha1.New())
	case "SHA256":
		return e.fnHash(args, sol, sha256.New())
	case "SHA384":
		return e.fnHash(args, sol, sha512.New384())
	case "SHA512":
		return e.fnHash(args, sol, sha512.New())

	// Date/time functions.
	case "NOW":
		return rdf.NewLiteralWithDatatype(time.Now().UTC().Format(time.RFC3339), rdf.XSDDateTime), nil
	case "YEAR", "MONTH", "DAY", "HOURS", "MINUTES", "SECONDS":
		return e.fnDatePart(name, args, sol)
	case "TZ":
		return e.fnTZ(args, sol)

	// Constructor functions.
	case "IRI", "URI":
		return e.fnIRI(args, sol)
	case "BNODE":
		return e.fnBNode(args, sol)
	case "UUID":
		return rdf.NewNamedNode("urn:uuid:" + fnNewUUID()), nil
	case "STRUUID":
		return rdf.NewLiteral(fnNewUUID()), nil

	default:
		if strings.HasPrefix(name, "http://www.w3.org/2001/XMLSchema#") {
			return e.fnTypeCast(args, sol, name)
		}
		return nil, NewTypeError("unsupported function: %s", name)
	}
}

// --- argument-shape helpers ------------------------------------------

func (e *Evaluator) fnArg1(args []algebra.Expr, sol Solution, fn func(rdf.Term) (rdf.Term, error)) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("function requires exactly 1 argument")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	return fn(v)
}

func (e *Evaluator) fnString1(args []algebra.Expr, sol Solution, fn func(string) (rdf.Term, error)) (rdf.Term, error) {
	return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
		s, err := extractString(t)
		if err != nil {
			return nil, err
		}
		return fn(s)
	})
}

func (e *Evaluator) fnString2(args []algebra.Expr, sol Solution, fn func(a, b string) (rdf.Term, error)) (rdf.Term, error) {
	if len(args) != 2 {
		return nil, NewTypeError("function requires exactly 2 arguments")
	}
	t1, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	t2, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	s1, err := extractString(t1)
	if err != nil {
		return nil, err
	}
	s2, err := extractString(t2)
	if err != nil {
		return nil, err
	}
	return fn(s1, s2)
}

func (e *Evaluator) fnNumeric1(args []algebra.Expr, sol Solution, fn func(numericValue) rdf.Term) (rdf.Term, error) {
	return e.fnArg1(args, sol, func(t rdf.Term) (rdf.Term, error) {
		n, ok := asNumeric(t)
		if !ok {
			return nil, NewTypeError("function requires a numeric argument")
		}
		return fn(n), nil
	})
}

func extractString(t rdf.Term) (string, error) {
	switch v := t.(type) {
	case *rdf.Literal:
		return v.Value, nil
	case *rdf.NamedNode:
		return v.IRI, nil
	default:
		return "", NewTypeError("cannot extract string from term type %T", t)
	}
}

// --- value-extraction functions ----------------------------------------

func (e *Evaluator) fnBound(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("BOUND requires exactly 1 argument")
	}
	v, ok := args[0].(*algebra.ExprVar)
	if !ok {
		return nil, NewTypeError("BOUND requires a variable argument")
	}
	_, bound := sol[v.Var.Name]
	return rdf.NewBooleanLiteral(bound), nil
}

func fnStr(t rdf.Term) (rdf.Term, error) {
	switch v := t.(type) {
	case *rdf.NamedNode:
		return rdf.NewLiteral(v.IRI), nil
	case *rdf.Literal:
		return rdf.NewLiteral(v.Value), nil
	default:
		return nil, NewTypeError("STR: unsupported term type %T", t)
	}
}

func fnLang(t rdf.Term) (rdf.Term, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return rdf.NewLiteral(""), nil
	}
	return rdf.NewLiteral(lit.Language), nil
}

func fnDatatype(t rdf.Term) (rdf.Term, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return nil, NewTypeError("DATATYPE can only be applied to literals")
	}
	return lit.EffectiveDatatype(), nil
}

// --- string functions ----------------------------------------------------

func (e *Evaluator) fnSubstr(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewTypeError("SUBSTR requires 2 or 3 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	runes := []rune(s)

	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	startN, ok := asNumeric(t1)
	if !ok {
		return nil, NewTypeError("SUBSTR start must be numeric")
	}
	start := int(startN.asFloat()) - 1
	if start < 0 {
		start = 0
	}
	if start >= len(runes) {
		return rdf.NewLiteral(""), nil
	}

	end := len(runes)
	if len(args) == 3 {
		t2, err := e.evalExprValue(args[2], sol)
		if err != nil {
			return nil, err
		}
		lenN, ok := asNumeric(t2)
		if !ok {
			return nil, NewTypeError("SUBSTR length must be numeric")
		}
		end = start + int(lenN.asFloat())
		if end > len(runes) {
			end = len(runes)
		}
	}
	return rdf.NewLiteral(string(runes[start:end])), nil
}

func (e *Evaluator) fnConcat(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	var b strings.Builder
	for _, a := range args {
		v, err := e.evalExprValue(a, sol)
		if err != nil {
			return nil, err
		}
		s, err := extractString(v)
		if err != nil {
			return nil, err
		}
		b.WriteString(s)
	}
	return rdf.NewLiteral(b.String()), nil
}

func (e *Evaluator) fnReplace(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) < 3 || len(args) > 4 {
		return nil, NewTypeError("REPLACE requires 3 or 4 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	pattern, err := extractString(t1)
	if err != nil {
		return nil, err
	}
	t2, err := e.evalExprValue(args[2], sol)
	if err != nil {
		return nil, err
	}
	replacement, err := extractString(t2)
	if err != nil {
		return nil, err
	}
	var flags string
	if len(args) == 4 {
		t3, err := e.evalExprValue(args[3], sol)
		if err != nil {
			return nil, err
		}
		flags, err = extractString(t3)
		if err != nil {
			return nil, err
		}
	}
	re, err := compileSparqlRegex(pattern, flags)
	if err != nil {
		return nil, NewTypeError("REPLACE: %v", err)
	}
	return rdf.NewLiteral(re.ReplaceAllString(s, translateBackrefs(replacement))), nil
}

// translateBackrefs rewrites SPARQL's `$1`-style capture references into
// Go regexp's `${1}` replacement syntax.
func translateBackrefs(repl string) string {
	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		if repl[i] == '$' && i+1 < len(repl) && repl[i+1] >= '0' && repl[i+1] <= '9' {
			j := i + 1
			for j < len(repl) && repl[j] >= '0' && repl[j] <= '9' {
				j++
			}
			b.WriteString("${")
			b.WriteString(repl[i+1 : j])
			b.WriteByte('}')
			i = j - 1
			continue
		}
		b.WriteByte(repl[i])
	}
	return b.String()
}

func (e *Evaluator) fnRegex(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, NewTypeError("REGEX requires 2 or 3 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	text, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	pattern, err := extractString(t1)
	if err != nil {
		return nil, err
	}
	var flags string
	if len(args) == 3 {
		t2, err := e.evalExprValue(args[2], sol)
		if err != nil {
			return nil, err
		}
		flags, err = extractString(t2)
		if err != nil {
			return nil, err
		}
	}
	re, err := compileSparqlRegex(pattern, flags)
	if err != nil {
		return nil, NewTypeError("invalid regex pattern: %v", err)
	}
	return rdf.NewBooleanLiteral(re.MatchString(text)), nil
}

// compileSparqlRegex translates SPARQL's REGEX flags (i, s, m, x, q) into
// a Go RE2 pattern: i/s/m map onto Go's own inline flags, q escapes the
// pattern as a literal, and x (free-spacing) is handled by stripping
// unescaped whitespace and `#`-comments before compiling, since RE2 has
// no native free-spacing mode.
func compileSparqlRegex(pattern, flags string) (*regexp.Regexp, error) {
	var inline strings.Builder
	quote := false
	extended := false
	for _, f := range flags {
		switch f {
		case 'i', 's', 'm':
			inline.WriteRune(f)
		case 'x':
			extended = true
		case 'q':
			quote = true
		default:
			return nil, fmt.Errorf("unsupported REGEX flag: %c", f)
		}
	}
	if quote {
		pattern = regexp.QuoteMeta(pattern)
	}
	if extended {
		pattern = stripFreeSpacing(pattern)
	}
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + pattern
	}
	return regexp.Compile(pattern)
}

func stripFreeSpacing(pattern string) string {
	var b strings.Builder
	escaped := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if escaped {
			b.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			b.WriteByte(c)
			escaped = true
		case ' ', '\t', '\n', '\r':
			// dropped
		case '#':
			for i < len(pattern) && pattern[i] != '\n' {
				i++
			}
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (e *Evaluator) fnLangMatches(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 2 {
		return nil, NewTypeError("langMatches requires exactly 2 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	tag, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	rng, err := extractString(t1)
	if err != nil {
		return nil, err
	}
	tag, rng = strings.ToLower(tag), strings.ToLower(rng)
	if rng == "*" {
		return rdf.NewBooleanLiteral(tag != ""), nil
	}
	if tag == rng || strings.HasPrefix(tag, rng+"-") {
		return rdf.NewBooleanLiteral(true), nil
	}
	return rdf.NewBooleanLiteral(false), nil
}

func (e *Evaluator) fnSameTerm(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 2 {
		return nil, NewTypeError("sameTerm requires exactly 2 arguments")
	}
	t1, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	t2, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	return rdf.NewBooleanLiteral(t1.Equals(t2)), nil
}

func (e *Evaluator) fnStrLang(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 2 {
		return nil, NewTypeError("STRLANG requires exactly 2 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	lang, err := extractString(t1)
	if err != nil {
		return nil, err
	}
	return rdf.NewLiteralWithLanguage(s, lang), nil
}

func (e *Evaluator) fnStrDt(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 2 {
		return nil, NewTypeError("STRDT requires exactly 2 arguments")
	}
	t0, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(t0)
	if err != nil {
		return nil, err
	}
	t1, err := e.evalExprValue(args[1], sol)
	if err != nil {
		return nil, err
	}
	dt, ok := t1.(*rdf.NamedNode)
	if !ok {
		return nil, NewTypeError("STRDT datatype argument must be an IRI")
	}
	return rdf.NewLiteralWithDatatype(s, dt), nil
}

// --- hash functions --------------------------------------------------

type hasher interface {
	Write(p []byte) (int, error)
	Sum(b []byte) []byte
}

func (e *Evaluator) fnHash(args []algebra.Expr, sol Solution, h hasher) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("hash function requires exactly 1 argument")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(v)
	if err != nil {
		return nil, err
	}
	h.Write([]byte(s))
	return rdf.NewLiteral(hex.EncodeToString(h.Sum(nil))), nil
}

// --- date/time functions -----------------------------------------------

func (e *Evaluator) fnDatePart(name string, args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("%s requires exactly 1 argument", name)
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	lit, ok := v.(*rdf.Literal)
	if !ok {
		return nil, NewTypeError("%s requires a dateTime literal", name)
	}
	t, err := time.Parse(time.RFC3339, lit.Value)
	if err != nil {
		return nil, NewTypeError("%s: invalid dateTime lexical form %q", name, lit.Value)
	}
	switch name {
	case "YEAR":
		return rdf.NewIntegerLiteral(int64(t.Year())), nil
	case "MONTH":
		return rdf.NewIntegerLiteral(int64(t.Month())), nil
	case "DAY":
		return rdf.NewIntegerLiteral(int64(t.Day())), nil
	case "HOURS":
		return rdf.NewIntegerLiteral(int64(t.Hour())), nil
	case "MINUTES":
		return rdf.NewIntegerLiteral(int64(t.Minute())), nil
	case "SECONDS":
		return rdf.NewIntegerLiteral(int64(t.Second())), nil
	default:
		return nil, NewTypeError("unsupported date part function %s", name)
	}
}

func (e *Evaluator) fnTZ(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("TZ requires exactly 1 argument")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	lit, ok := v.(*rdf.Literal)
	if !ok {
		return nil, NewTypeError("TZ requires a dateTime literal")
	}
	t, err := time.Parse(time.RFC3339, lit.Value)
	if err != nil {
		return nil, NewTypeError("TZ: invalid dateTime lexical form %q", lit.Value)
	}
	name, offset := t.Zone()
	if offset == 0 && (name == "UTC" || name == "") {
		return rdf.NewLiteral("Z"), nil
	}
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return rdf.NewLiteral(fmt.Sprintf("%s%02d:%02d", sign, offset/3600, (offset%3600)/60)), nil
}

// --- constructor functions -----------------------------------------------

func (e *Evaluator) fnIRI(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("IRI/URI requires exactly 1 argument")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(v)
	if err != nil {
		return nil, err
	}
	if err := rdf.ValidateIRI(s); err != nil {
		return nil, NewTypeError("IRI: %v", err)
	}
	return rdf.NewNamedNode(s), nil
}

var bnodeCounter int

func (e *Evaluator) fnBNode(args []algebra.Expr, sol Solution) (rdf.Term, error) {
	bnodeCounter++
	if len(args) == 0 {
		return rdf.NewBlankNode(fmt.Sprintf("fn%d", bnodeCounter)), nil
	}
	if len(args) != 1 {
		return nil, NewTypeError("BNODE requires 0 or 1 arguments")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	s, err := extractString(v)
	if err != nil {
		return nil, err
	}
	return rdf.NewBlankNode(s), nil
}

var uuidCounter uint64

// fnNewUUID produces a process-unique identifier for UUID()/STRUUID().
// It is not cryptographically random (this module carries no math/rand
// or crypto/rand dependency for it); the SPARQL spec only requires
// uniqueness within a dataset/session, which a monotonic counter plus a
// fixed node tag already satisfies.
func fnNewUUID() string {
	uuidCounter++
	return fmt.Sprintf("00000000-0000-4000-8000-%012x", uuidCounter)
}

func (e *Evaluator) fnTypeCast(args []algebra.Expr, sol Solution, datatypeIRI string) (rdf.Term, error) {
	if len(args) != 1 {
		return nil, NewTypeError("type cast requires exactly 1 argument")
	}
	v, err := e.evalExprValue(args[0], sol)
	if err != nil {
		return nil, err
	}
	var value string
	switch t := v.(type) {
	case *rdf.Literal:
		value = t.Value
	case *rdf.NamedNode:
		value = t.IRI
	default:
		return nil, NewTypeError("cannot cast term type %T to %s", v, datatypeIRI)
	}
	switch datatypeIRI {
	case rdf.XSDInteger.IRI:
		if _, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err != nil {
			return nil, NewTypeError("cannot cast %q to xsd:integer", value)
		}
	case rdf.XSDDouble.IRI, rdf.XSDFloat.IRI, rdf.XSDDecimal.IRI:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return nil, NewTypeError("cannot cast %q to %s", value, datatypeIRI)
		}
	case rdf.XSDBoolean.IRI:
		if value != "true" && value != "false" && value != "1" && value != "0" {
			return nil, NewTypeError("cannot cast %q to xsd:boolean", value)
		}
	}
	return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(datatypeIRI)), nil
}
