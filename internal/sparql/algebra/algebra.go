// Package algebra is the shared representation the parser builds and the
// optimizer rewrites in place (spec.md §4.3-§4.4): a tree of pattern
// operators plus an expression tree, with one node type per SPARQL 1.1
// algebra operator. Both queries and updates compile down to it.
package algebra

import "github.com/rdfkit/trigraph/pkg/rdf"

// Variable names an unbound position in a pattern, expression, or
// projection list.
type Variable struct {
	Name string
}

func NewVariable(name string) *Variable { return &Variable{Name: name} }

func (v *Variable) String() string { return "?" + v.Name }

// Term is either an rdf.Term or a *Variable. Using `any` for this role
// mirrors the store package's Pattern type (internal/store/index.go),
// which the evaluator ultimately hands these values to.
type Term = any

// IsVariable reports whether t is a *Variable rather than a bound rdf.Term.
func IsVariable(t Term) bool {
	_, ok := t.(*Variable)
	return ok
}

// Node is any algebra operator. The set mirrors spec.md §4.3's node list
// exactly: BGP, Join, LeftJoin, Filter, Union, Extend, Graph, Path, Minus,
// Service, Group, OrderBy, Project, Distinct, Reduced, Slice, plus Values.
type Node interface {
	algebraNode()
}

// TriplePattern is one triple pattern within a BGP, each position either a
// bound rdf.Term or a *Variable.
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// BGP is a basic graph pattern: a conjunction of triple patterns that must
// all match against the same graph.
type BGP struct {
	Patterns []*TriplePattern
}

func (*BGP) algebraNode() {}

// Join is an inner join of two sub-patterns on their shared variables.
type Join struct {
	Left, Right Node
}

func (*Join) algebraNode() {}

// LeftJoin is SPARQL OPTIONAL: every left solution is emitted, extended by
// a compatible right solution when one exists and (if Filter is set)
// passes Filter; otherwise emitted unextended.
type LeftJoin struct {
	Left, Right Node
	Filter      Expr // may be nil
}

func (*LeftJoin) algebraNode() {}

// Filter keeps only inner solutions for which Expr's effective boolean
// value is true.
type Filter struct {
	Expr  Expr
	Inner Node
}

func (*Filter) algebraNode() {}

// Union emits every solution from both branches.
type Union struct {
	Left, Right Node
}

func (*Union) algebraNode() {}

// Graph restricts Inner's evaluation to the named graph GraphTerm (a bound
// term) or, if GraphTerm is a *Variable, binds it to each graph the
// pattern matches in turn.
type Graph struct {
	GraphTerm Term
	Inner     Node
}

func (*Graph) algebraNode() {}

// Extend is SPARQL BIND: adds Var = Expr to every inner solution,
// recomputed per solution; a solution where Expr errors passes through
// unchanged rather than failing, and otherwise Var is set to the value,
// replacing any binding it already had.
type Extend struct {
	Inner Node
	Var   *Variable
	Expr  Expr
}

func (*Extend) algebraNode() {}

// Minus removes left solutions that are compatible with, and share at
// least one variable with, some right solution (spec.md §4.5).
type Minus struct {
	Left, Right Node
}

func (*Minus) algebraNode() {}

// Service is SPARQL federation: evaluates Inner against a remote endpoint
// rather than the local store. Silent suppresses EvaluationError::Service.
type Service struct {
	Endpoint Term // rdf.Term (IRI) or *Variable
	Inner    Node
	Silent   bool
}

func (*Service) algebraNode() {}

// Path is a property-path triple pattern: Subject PathExpr Object.
type Path struct {
	Subject Term
	Path    PathExpr
	Object  Term
}

func (*Path) algebraNode() {}

// Values is an inline VALUES data block. A nil entry in a row means that
// variable is unbound in that row (SPARQL UNDEF).
type Values struct {
	Vars []*Variable
	Rows [][]rdf.Term
}

func (*Values) algebraNode() {}

// Aggregate is one SELECT-list or HAVING aggregate: Var receives the
// accumulated result of Func(Expr) per group (spec.md §4.5 Aggregation).
type Aggregate struct {
	Var       *Variable
	Func      AggregateFunc
	Expr      Expr // nil for COUNT(*)
	Distinct  bool
	Separator Expr // GROUP_CONCAT's SEPARATOR, or nil (defaults to " ")
}

type AggregateFunc int

const (
	AggCount AggregateFunc = iota
	AggSum
	AggAvg
	AggMin
	AggMax
	AggSample
	AggGroupConcat
)

// Group partitions Inner's solutions by Keys and computes Aggs per
// partition.
type Group struct {
	Keys  []Expr
	Aggs  []*Aggregate
	Inner Node
}

func (*Group) algebraNode() {}

// OrderCondition is one ORDER BY clause; Desc reverses its comparison.
type OrderCondition struct {
	Expr Expr
	Desc bool
}

// OrderBy fully materializes Inner and sorts by Conditions in order.
type OrderBy struct {
	Conditions []*OrderCondition
	Inner      Node
}

func (*OrderBy) algebraNode() {}

// Project restricts each solution to Vars, in order.
type Project struct {
	Vars  []*Variable
	Inner Node
}

func (*Project) algebraNode() {}

// Distinct removes duplicate solutions via a streaming hash set.
type Distinct struct {
	Inner Node
}

func (*Distinct) algebraNode() {}

// Reduced permits (but does not require) duplicate elimination.
type Reduced struct {
	Inner Node
}

func (*Reduced) algebraNode() {}

// Slice applies OFFSET/LIMIT. Offset < 0 means unset; Limit < 0 means
// unbounded.
type Slice struct {
	Offset int
	Limit  int
	Inner  Node
}

func (*Slice) algebraNode() {}

// --- Property paths (spec.md §4.3) -----------------------------------

type PathExpr interface{ pathNode() }

type PathIRI struct{ IRI *rdf.NamedNode }

func (*PathIRI) pathNode() {}

type PathInverse struct{ Path PathExpr }

func (*PathInverse) pathNode() {}

type PathSeq struct{ Left, Right PathExpr }

func (*PathSeq) pathNode() {}

type PathAlt struct{ Left, Right PathExpr }

func (*PathAlt) pathNode() {}

type PathZeroOrMore struct{ Path PathExpr }

func (*PathZeroOrMore) pathNode() {}

type PathOneOrMore struct{ Path PathExpr }

func (*PathOneOrMore) pathNode() {}

type PathZeroOrOne struct{ Path PathExpr }

func (*PathZeroOrOne) pathNode() {}

// PathNegatedSet is !(iri1|^iri2|...): matches any predicate not in IRIs
// (forward direction) or not in Inverse (backward direction).
type PathNegatedSet struct {
	IRIs    []*rdf.NamedNode
	Inverse []*rdf.NamedNode
}

func (*PathNegatedSet) pathNode() {}

// --- Expressions (spec.md §4.3) --------------------------------------

type Expr interface{ exprNode() }

type ExprLiteral struct{ Term rdf.Term }

func (*ExprLiteral) exprNode() {}

type ExprVar struct{ Var *Variable }

func (*ExprVar) exprNode() {}

type UnaryOp int

const (
	OpNot UnaryOp = iota
	OpNeg
	OpUnaryPlus
)

type ExprUnary struct {
	Op      UnaryOp
	Operand Expr
}

func (*ExprUnary) exprNode() {}

type BinaryOp int

const (
	OpOr BinaryOp = iota
	OpAnd
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpIn
	OpNotIn
)

type ExprBinary struct {
	Op          BinaryOp
	Left, Right Expr
	// List is used by OpIn/OpNotIn: Left IN (List...)
	List []Expr
}

func (*ExprBinary) exprNode() {}

// ExprFunctionCall covers built-ins (STR, LANG, DATATYPE, REGEX, CONTAINS,
// SUBSTR, numeric/date/hash functions, ...) and XSD constructor casts.
type ExprFunctionCall struct {
	Name string // upper-cased built-in name, or an XSD datatype IRI for casts
	Args []Expr
}

func (*ExprFunctionCall) exprNode() {}

type ExprIf struct {
	Cond, Then, Else Expr
}

func (*ExprIf) exprNode() {}

type ExprCoalesce struct{ Args []Expr }

func (*ExprCoalesce) exprNode() {}

type ExprBound struct{ Var *Variable }

func (*ExprBound) exprNode() {}

// ExprExists evaluates Pattern against the current solution's bindings;
// Negate flips EXISTS into NOT EXISTS.
type ExprExists struct {
	Pattern Node
	Negate  bool
}

func (*ExprExists) exprNode() {}

// AggregateCall is a parse-time placeholder produced wherever an
// aggregate function (COUNT/SUM/AVG/MIN/MAX/SAMPLE/GROUP_CONCAT)
// appears inside a SELECT-list expression or HAVING clause. The
// optimizer's liftAggregates pass moves it into the nearest enclosing
// Group node's Aggs list and replaces its occurrence with an ExprVar
// referencing the lifted aggregate's variable.
type AggregateCall struct {
	Name      string
	Expr      Expr // nil for COUNT(*)
	Distinct  bool
	Separator Expr // GROUP_CONCAT's SEPARATOR, or nil
}

func (*AggregateCall) exprNode() {}

// ExprAlias threads a `(expr AS ?v)` GROUP BY alias through parsing. It
// only ever appears as a direct entry of Group.Keys; the evaluator's
// group-by partitioner both computes the partition key from Expr and
// binds Var in each group's output row, rather than the optimizer
// rewriting it away beforehand.
type ExprAlias struct {
	Var  *Variable
	Expr Expr
}

func (*ExprAlias) exprNode() {}

// --- Query / Update top level -----------------------------------------

type QueryKind int

const (
	QuerySelect QueryKind = iota
	QueryConstruct
	QueryAsk
	QueryDescribe
)

// QuadPattern is a CONSTRUCT template triple, or an Update quad template,
// each position a bound rdf.Term or *Variable; Graph is nil for the
// default graph.
type QuadPattern struct {
	Subject, Predicate, Object, Graph Term
}

// Query is the parser's query-side output: Algebra is the fully built
// tree (Slice(OrderBy(Distinct/Reduced(Project(...)))) for SELECT, bare
// WHERE pattern for CONSTRUCT/ASK/DESCRIBE).
type Query struct {
	Kind          QueryKind
	Algebra       Node
	Template      []*QuadPattern // CONSTRUCT
	DescribeVars  []*Variable    // DESCRIBE ?x
	DescribeTerms []rdf.Term     // DESCRIBE <uri>
	ProjectVars   []*Variable    // the projection list, for result-column naming
}

// GraphRefKind discriminates the graph-set operands of CLEAR/DROP/ADD/
// MOVE/COPY.
type GraphRefKind int

const (
	GraphRefDefault GraphRefKind = iota
	GraphRefNamed                // a specific IRI
	GraphRefAllNamed             // NAMED: every named graph
	GraphRefAll                  // ALL: default graph + every named graph
)

type GraphRef struct {
	Kind  GraphRefKind
	Graph *rdf.NamedNode // set iff Kind == GraphRefNamed
}

// UpdateOp is one operation of a `;`-separated SPARQL Update request.
type UpdateOp interface{ updateOp() }

type InsertData struct{ Quads []*QuadPattern }

func (*InsertData) updateOp() {}

type DeleteData struct{ Quads []*QuadPattern }

func (*DeleteData) updateOp() {}

// Modify is DELETE{}INSERT{}WHERE{} (and the DELETE WHERE{} shorthand,
// where Delete == Insert == the WHERE template).
type Modify struct {
	Delete []*QuadPattern
	Insert []*QuadPattern
	Where  Node
}

func (*Modify) updateOp() {}

type Load struct {
	Source *rdf.NamedNode
	Into   *rdf.NamedNode // nil = default graph
	Silent bool
}

func (*Load) updateOp() {}

type Clear struct {
	Graph  GraphRef
	Silent bool
}

func (*Clear) updateOp() {}

type Create struct {
	Graph  *rdf.NamedNode
	Silent bool
}

func (*Create) updateOp() {}

type Drop struct {
	Graph  GraphRef
	Silent bool
}

func (*Drop) updateOp() {}

type Add struct {
	From, To GraphRef
	Silent   bool
}

func (*Add) updateOp() {}

type Move struct {
	From, To GraphRef
	Silent   bool
}

func (*Move) updateOp() {}

type Copy struct {
	From, To GraphRef
	Silent   bool
}

func (*Copy) updateOp() {}

// Update is the parser's update-side output: an ordered list of
// operations, each executed in its own storage transaction (spec.md §9
// open question 2; see internal/sparql/update's package doc).
type Update struct {
	Operations []UpdateOp
}
