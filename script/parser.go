package script

type (
	expr interface{ exprLine() int }
	stmt interface{ stmtLine() int }

	numberLit struct {
		val  float64
		line int
	}
	stringLit struct {
		val  string
		line int
	}
	boolLit struct {
		val  bool
		line int
	}
	nullLit struct {
		line int
	}
	identExpr struct {
		name string
		line int
	}
	arrayLit struct {
		elems []expr
		line  int
	}
	objectLit struct {
		keys []string
		vals []expr
		line int
	}
	arrowFn struct {
		params []string
		body   []stmt // nil for expression-bodied arrows
		result expr   // nil for block-bodied arrows
		line   int
	}
	callExpr struct {
		callee expr
		args   []expr
		line   int
	}
	memberExpr struct {
		obj  expr
		name string
		line int
	}
	indexExpr struct {
		obj   expr
		index expr
		line  int
	}
	unaryExpr struct {
		op   string
		x    expr
		line int
	}
	binaryExpr struct {
		op   string
		l, r expr
		line int
	}
	condExpr struct {
		cond, then, els expr
		line            int
	}
	assignExpr struct {
		target expr
		value  expr
		line   int
	}

	declStmt struct {
		name string
		init expr
		line int
	}
	exprStmt struct {
		e expr
	}
	returnStmt struct {
		e    expr // may be nil
		line int
	}
	ifStmt struct {
		cond expr
		then []stmt
		els  []stmt // may be nil
		line int
	}
)

func (e numberLit) exprLine() int  { return e.line }
func (e stringLit) exprLine() int  { return e.line }
func (e boolLit) exprLine() int    { return e.line }
func (e nullLit) exprLine() int    { return e.line }
func (e identExpr) exprLine() int  { return e.line }
func (e arrayLit) exprLine() int   { return e.line }
func (e objectLit) exprLine() int  { return e.line }
func (e *arrowFn) exprLine() int   { return e.line }
func (e callExpr) exprLine() int   { return e.line }
func (e memberExpr) exprLine() int { return e.line }
func (e indexExpr) exprLine() int  { return e.line }
func (e unaryExpr) exprLine() int  { return e.line }
func (e binaryExpr) exprLine() int { return e.line }
func (e condExpr) exprLine() int   { return e.line }
func (e assignExpr) exprLine() int { return e.line }

func (s declStmt) stmtLine() int   { return s.line }
func (s exprStmt) stmtLine() int   { return s.e.exprLine() }
func (s returnStmt) stmtLine() int { return s.line }
func (s ifStmt) stmtLine() int     { return s.line }

type parser struct {
	toks []token
	pos  int
}

// parse turns a source text into a statement list.
func parse(src string) ([]stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []stmt
	for !p.atEOF() {
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) isPunct(text string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == text
}

func (p *parser) acceptPunct(text string) bool {
	if p.isPunct(text) {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectPunct(text string) error {
	if !p.acceptPunct(text) {
		return errAt(p.cur().line, "expected %q, got %s", text, p.cur())
	}
	return nil
}

func (p *parser) isKeyword(word string) bool {
	t := p.cur()
	return t.kind == tokIdent && t.text == word
}

func (p *parser) statement() (stmt, error) {
	t := p.cur()
	switch {
	case p.isKeyword("const") || p.isKeyword("let") || p.isKeyword("var"):
		p.next()
		name := p.cur()
		if name.kind != tokIdent {
			return nil, errAt(name.line, "expected identifier after %q", t.text)
		}
		p.next()
		var init expr
		if p.acceptPunct("=") {
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			init = e
		}
		p.acceptPunct(";")
		return declStmt{name: name.text, init: init, line: t.line}, nil
	case p.isKeyword("return"):
		p.next()
		var e expr
		if !p.isPunct(";") && !p.isPunct("}") && !p.atEOF() {
			var err error
			if e, err = p.expression(); err != nil {
				return nil, err
			}
		}
		p.acceptPunct(";")
		return returnStmt{e: e, line: t.line}, nil
	case p.isKeyword("if"):
		return p.ifStatement()
	}
	e, err := p.expression()
	if err != nil {
		return nil, err
	}
	p.acceptPunct(";")
	return exprStmt{e: e}, nil
}

func (p *parser) ifStatement() (stmt, error) {
	line := p.next().line // if
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	then, err := p.blockOrSingle()
	if err != nil {
		return nil, err
	}
	var els []stmt
	if p.isKeyword("else") {
		p.next()
		if p.isKeyword("if") {
			s, err := p.ifStatement()
			if err != nil {
				return nil, err
			}
			els = []stmt{s}
		} else if els, err = p.blockOrSingle(); err != nil {
			return nil, err
		}
	}
	return ifStmt{cond: cond, then: then, els: els, line: line}, nil
}

func (p *parser) blockOrSingle() ([]stmt, error) {
	if p.acceptPunct("{") {
		var stmts []stmt
		for !p.isPunct("}") {
			if p.atEOF() {
				return nil, errAt(p.cur().line, "unterminated block")
			}
			s, err := p.statement()
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, s)
		}
		p.next() // }
		return stmts, nil
	}
	s, err := p.statement()
	if err != nil {
		return nil, err
	}
	return []stmt{s}, nil
}

func (p *parser) expression() (expr, error) {
	return p.assignment()
}

func (p *parser) assignment() (expr, error) {
	left, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.isPunct("=") {
		line := p.next().line
		switch left.(type) {
		case identExpr, memberExpr, indexExpr:
		default:
			return nil, errAt(line, "invalid assignment target")
		}
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		return assignExpr{target: left, value: value, line: line}, nil
	}
	return left, nil
}

func (p *parser) ternary() (expr, error) {
	cond, err := p.logicalOr()
	if err != nil {
		return nil, err
	}
	if !p.isPunct("?") {
		return cond, nil
	}
	line := p.next().line
	then, err := p.assignment()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	els, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return condExpr{cond: cond, then: then, els: els, line: line}, nil
}

func (p *parser) logicalOr() (expr, error) {
	return p.binaryLevel([]string{"||"}, p.logicalAnd)
}

func (p *parser) logicalAnd() (expr, error) {
	return p.binaryLevel([]string{"&&"}, p.equality)
}

func (p *parser) equality() (expr, error) {
	return p.binaryLevel([]string{"===", "!==", "==", "!="}, p.comparison)
}

func (p *parser) comparison() (expr, error) {
	return p.binaryLevel([]string{"<", "<=", ">", ">="}, p.additive)
}

func (p *parser) additive() (expr, error) {
	return p.binaryLevel([]string{"+", "-"}, p.multiplicative)
}

func (p *parser) multiplicative() (expr, error) {
	return p.binaryLevel([]string{"*", "/", "%"}, p.unary)
}

func (p *parser) binaryLevel(ops []string, sub func() (expr, error)) (expr, error) {
	left, err := sub()
	if err != nil {
		return nil, err
	}
	for {
		matched := false
		for _, op := range ops {
			if p.isPunct(op) {
				line := p.next().line
				right, err := sub()
				if err != nil {
					return nil, err
				}
				left = binaryExpr{op: op, l: left, r: right, line: line}
				matched = true
				break
			}
		}
		if !matched {
			return left, nil
		}
	}
}

func (p *parser) unary() (expr, error) {
	t := p.cur()
	if p.isPunct("!") || p.isPunct("-") || p.isPunct("+") {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return unaryExpr{op: t.text, x: x, line: t.line}, nil
	}
	// new is a no-op prefix: constructors are plain callables here.
	if p.isKeyword("new") {
		p.next()
		return p.postfix()
	}
	return p.postfix()
}

func (p *parser) postfix() (expr, error) {
	e, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.isPunct("("):
			line := p.next().line
			var args []expr
			for !p.isPunct(")") {
				a, err := p.expression()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if !p.acceptPunct(",") {
					break
				}
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			e = callExpr{callee: e, args: args, line: line}
		case p.isPunct("."):
			line := p.next().line
			name := p.cur()
			if name.kind != tokIdent {
				return nil, errAt(name.line, "expected member name after '.'")
			}
			p.next()
			e = memberExpr{obj: e, name: name.text, line: line}
		case p.isPunct("["):
			line := p.next().line
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			e = indexExpr{obj: e, index: idx, line: line}
		default:
			return e, nil
		}
	}
}

func (p *parser) primary() (expr, error) {
	t := p.cur()
	switch t.kind {
	case tokNumber:
		p.next()
		return numberLit{val: t.num, line: t.line}, nil
	case tokString:
		p.next()
		return stringLit{val: t.text, line: t.line}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			p.next()
			return boolLit{val: t.text == "true", line: t.line}, nil
		case "null", "undefined":
			p.next()
			return nullLit{line: t.line}, nil
		}
		// single-parameter arrow without parentheses
		if p.toks[p.pos+1].kind == tokPunct && p.toks[p.pos+1].text == "=>" {
			p.pos += 2
			return p.arrowTail([]string{t.text}, t.line)
		}
		p.next()
		return identExpr{name: t.text, line: t.line}, nil
	case tokPunct:
		switch t.text {
		case "(":
			if p.looksLikeArrow() {
				return p.arrow()
			}
			p.next()
			e, err := p.expression()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return e, nil
		case "[":
			p.next()
			var elems []expr
			for !p.isPunct("]") {
				e, err := p.expression()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if !p.acceptPunct(",") {
					break
				}
			}
			if err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			return arrayLit{elems: elems, line: t.line}, nil
		case "{":
			return p.objectLiteral()
		}
	}
	return nil, errAt(t.line, "unexpected %s", t)
}

func (p *parser) objectLiteral() (expr, error) {
	line := p.next().line // {
	var keys []string
	var vals []expr
	for !p.isPunct("}") {
		t := p.cur()
		if t.kind != tokIdent && t.kind != tokString {
			return nil, errAt(t.line, "expected property name, got %s", t)
		}
		p.next()
		keys = append(keys, t.text)
		if p.acceptPunct(":") {
			v, err := p.expression()
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		} else {
			// shorthand property
			vals = append(vals, identExpr{name: t.text, line: t.line})
		}
		if !p.acceptPunct(",") {
			break
		}
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return objectLit{keys: keys, vals: vals, line: line}, nil
}

// looksLikeArrow reports whether the '(' at the cursor opens an arrow
// function parameter list, by scanning ahead to the matching ')'.
func (p *parser) looksLikeArrow() bool {
	depth := 0
	for i := p.pos; p.toks[i].kind != tokEOF; i++ {
		t := p.toks[i]
		if t.kind != tokPunct {
			continue
		}
		switch t.text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				after := p.toks[i+1]
				return after.kind == tokPunct && after.text == "=>"
			}
		}
	}
	return false
}

func (p *parser) arrow() (expr, error) {
	line := p.next().line // (
	var params []string
	for !p.isPunct(")") {
		t := p.cur()
		if t.kind != tokIdent {
			return nil, errAt(t.line, "expected parameter name, got %s", t)
		}
		p.next()
		params = append(params, t.text)
		if !p.acceptPunct(",") {
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("=>"); err != nil {
		return nil, err
	}
	return p.arrowTail(params, line)
}

func (p *parser) arrowTail(params []string, line int) (expr, error) {
	if p.acceptPunct("{") {
		var body []stmt
		for !p.isPunct("}") {
			if p.atEOF() {
				return nil, errAt(p.cur().line, "unterminated function body")
			}
			s, err := p.statement()
			if err != nil {
				return nil, err
			}
			body = append(body, s)
		}
		p.next() // }
		return &arrowFn{params: params, body: body, line: line}, nil
	}
	result, err := p.assignment()
	if err != nil {
		return nil, err
	}
	return &arrowFn{params: params, result: result, line: line}, nil
}
