// Package condexpr parses and evaluates the restricted boolean expressions
// attached to CDE definitions (abnormality conditions). Expressions are parsed
// once into a tagged-variant tree and evaluated by a tree walker over a
// variable map; no host-runtime access is ever involved.
//
// Grammar:
//
//	expr       := andExpr ( "or" andExpr )*
//	andExpr    := unary ( "and" unary )*
//	unary      := "not" unary | primary
//	primary    := "(" expr ")" | comparison
//	comparison := operand ( compOp operand | "in" list )
//	operand    := identifier | literal
//	literal    := number | quoted string | true | false
//	list       := "[" literal ( "," literal )* "]"
package condexpr

import (
	"clinreg-service/internal/pkg/exceptions"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type nodeKind int

const (
	nodeAnd nodeKind = iota
	nodeOr
	nodeNot
	nodeCompare
	nodeMembership
	nodeVariable
	nodeLiteral
)

type compareOp string

const (
	opEq compareOp = "=="
	opNe compareOp = "!="
	opLt compareOp = "<"
	opLe compareOp = "<="
	opGt compareOp = ">"
	opGe compareOp = ">="
)

// Node is one variant of the expression tree.
type Node struct {
	Kind     nodeKind
	Op       compareOp
	Left     *Node
	Right    *Node
	Name     string
	Value    interface{}
	Elements []interface{}
}

// Expression is a parsed, reusable condition.
type Expression struct {
	Source string
	root   *Node
}

// Parse compiles source into an Expression. The returned expression is safe
// for concurrent evaluation.
func Parse(source string) (*Expression, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, &exceptions.ConditionParseError{Condition: source, Reason: err.Error()}
	}
	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, &exceptions.ConditionParseError{Condition: source, Reason: err.Error()}
	}
	if !p.atEnd() {
		return nil, &exceptions.ConditionParseError{Condition: source, Reason: fmt.Sprintf("unexpected token %q", p.peek().text)}
	}
	return &Expression{Source: source, root: root}, nil
}

// Eval walks the tree against vars. Missing variables evaluate to nil, which
// compares unequal to everything and fails ordering comparisons.
func (e *Expression) Eval(vars map[string]interface{}) (bool, error) {
	v, err := evalNode(e.root, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q does not evaluate to a boolean", e.Source)
	}
	return b, nil
}

func evalNode(n *Node, vars map[string]interface{}) (interface{}, error) {
	switch n.Kind {
	case nodeAnd:
		l, err := evalBool(n.Left, vars)
		if err != nil {
			return nil, err
		}
		if !l {
			return false, nil
		}
		return evalBool(n.Right, vars)
	case nodeOr:
		l, err := evalBool(n.Left, vars)
		if err != nil {
			return nil, err
		}
		if l {
			return true, nil
		}
		return evalBool(n.Right, vars)
	case nodeNot:
		v, err := evalBool(n.Left, vars)
		if err != nil {
			return nil, err
		}
		return !v, nil
	case nodeCompare:
		l, err := evalNode(n.Left, vars)
		if err != nil {
			return nil, err
		}
		r, err := evalNode(n.Right, vars)
		if err != nil {
			return nil, err
		}
		return compare(n.Op, l, r)
	case nodeMembership:
		l, err := evalNode(n.Left, vars)
		if err != nil {
			return nil, err
		}
		for _, el := range n.Elements {
			if equal(l, el) {
				return true, nil
			}
		}
		return false, nil
	case nodeVariable:
		return vars[n.Name], nil
	case nodeLiteral:
		return n.Value, nil
	}
	return nil, fmt.Errorf("unknown node kind %d", n.Kind)
}

func evalBool(n *Node, vars map[string]interface{}) (bool, error) {
	v, err := evalNode(n, vars)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("operand is not boolean")
	}
	return b, nil
}

func compare(op compareOp, l, r interface{}) (bool, error) {
	switch op {
	case opEq:
		return equal(l, r), nil
	case opNe:
		return !equal(l, r), nil
	}

	lf, lok := toFloat(l)
	rf, rok := toFloat(r)
	if lok && rok {
		switch op {
		case opLt:
			return lf < rf, nil
		case opLe:
			return lf <= rf, nil
		case opGt:
			return lf > rf, nil
		case opGe:
			return lf >= rf, nil
		}
	}

	ls, lok := l.(string)
	rs, rok := r.(string)
	if lok && rok {
		switch op {
		case opLt:
			return ls < rs, nil
		case opLe:
			return ls <= rs, nil
		case opGt:
			return ls > rs, nil
		case opGe:
			return ls >= rs, nil
		}
	}

	return false, fmt.Errorf("cannot order %T against %T", l, r)
}

func equal(l, r interface{}) bool {
	if lf, ok := toFloat(l); ok {
		if rf, ok := toFloat(r); ok {
			return lf == rf
		}
		return false
	}
	return l == r
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOperator
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(source string) ([]token, error) {
	var tokens []token
	runes := []rune(source)
	i := 0
	for i < len(runes) {
		c := runes[i]
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			tokens = append(tokens, token{tokLParen, "("})
			i++
		case c == ')':
			tokens = append(tokens, token{tokRParen, ")"})
			i++
		case c == '[':
			tokens = append(tokens, token{tokLBracket, "["})
			i++
		case c == ']':
			tokens = append(tokens, token{tokRBracket, "]"})
			i++
		case c == ',':
			tokens = append(tokens, token{tokComma, ","})
			i++
		case c == '"' || c == '\'':
			quote := c
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			tokens = append(tokens, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case strings.ContainsRune("=!<>", c):
			if i+1 < len(runes) && runes[i+1] == '=' {
				tokens = append(tokens, token{tokOperator, string(runes[i : i+2])})
				i += 2
			} else if c == '<' || c == '>' {
				tokens = append(tokens, token{tokOperator, string(c)})
				i++
			} else {
				return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
			}
		case unicode.IsDigit(c) || c == '-' || c == '.':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			tokens = append(tokens, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return tokens, nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.tokens) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) matchIdent(word string) bool {
	if !p.atEnd() && p.tokens[p.pos].kind == tokIdent && strings.EqualFold(p.tokens[p.pos].text, word) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) parseExpr() (*Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("or") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: nodeOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (*Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.matchIdent("and") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Node{Kind: nodeAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (*Node, error) {
	if p.matchIdent("not") {
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: nodeNot, Left: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (*Node, error) {
	if p.peek().kind == tokLParen {
		p.next()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("expected ')'")
		}
		p.next()
		return inner, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (*Node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.matchIdent("in") {
		elements, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: nodeMembership, Left: left, Elements: elements}, nil
	}

	if p.peek().kind == tokOperator {
		op := compareOp(p.next().text)
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: nodeCompare, Op: op, Left: left, Right: right}, nil
	}

	// A bare variable or literal is allowed only if it is boolean-valued.
	return left, nil
}

func (p *parser) parseOperand() (*Node, error) {
	t := p.peek()
	switch t.kind {
	case tokIdent:
		p.next()
		switch strings.ToLower(t.text) {
		case "true":
			return &Node{Kind: nodeLiteral, Value: true}, nil
		case "false":
			return &Node{Kind: nodeLiteral, Value: false}, nil
		}
		return &Node{Kind: nodeVariable, Name: t.text}, nil
	case tokNumber:
		p.next()
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("bad number %q", t.text)
		}
		return &Node{Kind: nodeLiteral, Value: f}, nil
	case tokString:
		p.next()
		return &Node{Kind: nodeLiteral, Value: t.text}, nil
	}
	return nil, fmt.Errorf("expected operand, got %q", t.text)
}

func (p *parser) parseList() ([]interface{}, error) {
	if p.peek().kind != tokLBracket {
		return nil, fmt.Errorf("expected '[' after 'in'")
	}
	p.next()
	var elements []interface{}
	for {
		t := p.next()
		switch t.kind {
		case tokNumber:
			f, err := strconv.ParseFloat(t.text, 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", t.text)
			}
			elements = append(elements, f)
		case tokString:
			elements = append(elements, t.text)
		case tokIdent:
			switch strings.ToLower(t.text) {
			case "true":
				elements = append(elements, true)
			case "false":
				elements = append(elements, false)
			default:
				return nil, fmt.Errorf("only literals allowed in list, got %q", t.text)
			}
		default:
			return nil, fmt.Errorf("only literals allowed in list, got %q", t.text)
		}
		sep := p.next()
		if sep.kind == tokRBracket {
			return elements, nil
		}
		if sep.kind != tokComma {
			return nil, fmt.Errorf("expected ',' or ']' in list")
		}
	}
}
