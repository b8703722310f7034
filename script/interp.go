package script

import "math"

type env struct {
	vars   map[string]Value
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[string]Value), parent: parent}
}

func (e *env) lookup(name string) (Value, bool) {
	for s := e; s != nil; s = s.parent {
		if v, ok := s.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func (e *env) assign(name string, v Value) bool {
	for s := e; s != nil; s = s.parent {
		if _, ok := s.vars[name]; ok {
			s.vars[name] = v
			return true
		}
	}
	return false
}

// closure is a user-defined arrow function bound to its defining scope.
type closure struct {
	fn  *arrowFn
	def *env
}

func (c *closure) Call(args []Value) (Value, error) {
	scope := newEnv(c.def)
	for i, p := range c.fn.params {
		if i < len(args) {
			scope.vars[p] = args[i]
		} else {
			scope.vars[p] = nil
		}
	}
	if c.fn.result != nil {
		return evalExpr(c.fn.result, scope)
	}
	v, returned, err := evalStmts(c.fn.body, scope)
	if err != nil || !returned {
		return nil, err
	}
	return v, nil
}

// EvalBody evaluates src as the body of a function with a single parameter.
// globals are read-only ambient bindings (the trigger hook lives here);
// everything else the program touches comes through arg.
func EvalBody(src, paramName string, arg Value, globals map[string]Value) error {
	stmts, err := parse(src)
	if err != nil {
		return err
	}
	root := newEnv(nil)
	for name, v := range globals {
		root.vars[name] = v
	}
	scope := newEnv(root)
	scope.vars[paramName] = arg
	_, _, err = evalStmts(stmts, scope)
	return err
}

// evalStmts runs statements in order; returned reports whether a return
// statement terminated the run.
func evalStmts(stmts []stmt, scope *env) (Value, bool, error) {
	for _, s := range stmts {
		switch st := s.(type) {
		case declStmt:
			var v Value
			if st.init != nil {
				var err error
				if v, err = evalExpr(st.init, scope); err != nil {
					return nil, false, err
				}
			}
			scope.vars[st.name] = v
		case exprStmt:
			if _, err := evalExpr(st.e, scope); err != nil {
				return nil, false, err
			}
		case returnStmt:
			var v Value
			if st.e != nil {
				var err error
				if v, err = evalExpr(st.e, scope); err != nil {
					return nil, false, err
				}
			}
			return v, true, nil
		case ifStmt:
			cond, err := evalExpr(st.cond, scope)
			if err != nil {
				return nil, false, err
			}
			branch := st.then
			if !Truthy(cond) {
				branch = st.els
			}
			if v, returned, err := evalStmts(branch, newEnv(scope)); err != nil || returned {
				return v, returned, err
			}
		}
	}
	return nil, false, nil
}

func evalExpr(e expr, scope *env) (Value, error) {
	switch x := e.(type) {
	case numberLit:
		return x.val, nil
	case stringLit:
		return x.val, nil
	case boolLit:
		return x.val, nil
	case nullLit:
		return nil, nil
	case identExpr:
		v, ok := scope.lookup(x.name)
		if !ok {
			return nil, errAt(x.line, "%s is not defined", x.name)
		}
		return v, nil
	case arrayLit:
		elems := make([]Value, len(x.elems))
		for i, el := range x.elems {
			v, err := evalExpr(el, scope)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return &Array{Elems: elems}, nil
	case objectLit:
		entries := make(map[string]Value, len(x.keys))
		for i, k := range x.keys {
			v, err := evalExpr(x.vals[i], scope)
			if err != nil {
				return nil, err
			}
			entries[k] = v
		}
		return &Dict{Entries: entries}, nil
	case *arrowFn:
		return &closure{fn: x, def: scope}, nil
	case callExpr:
		return evalCall(x, scope)
	case memberExpr:
		obj, err := evalExpr(x.obj, scope)
		if err != nil {
			return nil, err
		}
		return evalMember(obj, x.name, x.line)
	case indexExpr:
		return evalIndex(x, scope)
	case unaryExpr:
		v, err := evalExpr(x.x, scope)
		if err != nil {
			return nil, err
		}
		switch x.op {
		case "!":
			return !Truthy(v), nil
		case "-", "+":
			n, ok := Number(v)
			if !ok {
				return nil, errAt(x.line, "unary %q needs a number", x.op)
			}
			if x.op == "-" {
				return -n, nil
			}
			return n, nil
		}
		return nil, errAt(x.line, "unknown unary operator %q", x.op)
	case binaryExpr:
		return evalBinary(x, scope)
	case condExpr:
		cond, err := evalExpr(x.cond, scope)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return evalExpr(x.then, scope)
		}
		return evalExpr(x.els, scope)
	case assignExpr:
		return evalAssign(x, scope)
	}
	return nil, errAt(e.exprLine(), "cannot evaluate expression")
}

func evalCall(x callExpr, scope *env) (Value, error) {
	callee, err := evalExpr(x.callee, scope)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(Callable)
	if !ok {
		return nil, errAt(x.line, "value is not callable")
	}
	args := make([]Value, len(x.args))
	for i, a := range x.args {
		if args[i], err = evalExpr(a, scope); err != nil {
			return nil, err
		}
	}
	v, err := fn.Call(args)
	if err != nil {
		if _, tagged := err.(*Error); tagged {
			return nil, err
		}
		return nil, errAt(x.line, "%s", err.Error())
	}
	return v, nil
}

func evalMember(obj Value, name string, line int) (Value, error) {
	switch o := obj.(type) {
	case nil:
		return nil, errAt(line, "cannot read %q of null", name)
	case *Array:
		if name == "length" {
			return float64(len(o.Elems)), nil
		}
	case Object:
		if v, ok := o.Member(name); ok {
			return v, nil
		}
		return nil, errAt(line, "unknown member %q", name)
	}
	return nil, errAt(line, "value has no members")
}

func evalIndex(x indexExpr, scope *env) (Value, error) {
	obj, err := evalExpr(x.obj, scope)
	if err != nil {
		return nil, err
	}
	idx, err := evalExpr(x.index, scope)
	if err != nil {
		return nil, err
	}
	switch o := obj.(type) {
	case *Array:
		n, ok := Number(idx)
		if !ok {
			return nil, errAt(x.line, "array index must be a number")
		}
		i := int(n)
		if i < 0 || i >= len(o.Elems) {
			return nil, nil
		}
		return o.Elems[i], nil
	case Object:
		key, ok := idx.(string)
		if !ok {
			return nil, errAt(x.line, "object index must be a string")
		}
		if v, found := o.Member(key); found {
			return v, nil
		}
		return nil, nil
	}
	return nil, errAt(x.line, "value is not indexable")
}

func evalAssign(x assignExpr, scope *env) (Value, error) {
	v, err := evalExpr(x.value, scope)
	if err != nil {
		return nil, err
	}
	switch target := x.target.(type) {
	case identExpr:
		if !scope.assign(target.name, v) {
			return nil, errAt(x.line, "%s is not defined", target.name)
		}
	case memberExpr:
		obj, err := evalExpr(target.obj, scope)
		if err != nil {
			return nil, err
		}
		setter, ok := obj.(MemberSetter)
		if !ok {
			return nil, errAt(x.line, "member %q is not assignable", target.name)
		}
		if err := setter.SetMember(target.name, v); err != nil {
			return nil, errAt(x.line, "%s", err.Error())
		}
	case indexExpr:
		obj, err := evalExpr(target.obj, scope)
		if err != nil {
			return nil, err
		}
		idx, err := evalExpr(target.index, scope)
		if err != nil {
			return nil, err
		}
		arr, ok := obj.(*Array)
		if !ok {
			return nil, errAt(x.line, "value is not index-assignable")
		}
		n, isNum := Number(idx)
		if !isNum || int(n) < 0 || int(n) >= len(arr.Elems) {
			return nil, errAt(x.line, "array index out of range")
		}
		arr.Elems[int(n)] = v
	}
	return v, nil
}

func evalBinary(x binaryExpr, scope *env) (Value, error) {
	l, err := evalExpr(x.l, scope)
	if err != nil {
		return nil, err
	}
	// logical operators short-circuit and yield the deciding operand
	switch x.op {
	case "&&":
		if !Truthy(l) {
			return l, nil
		}
		return evalExpr(x.r, scope)
	case "||":
		if Truthy(l) {
			return l, nil
		}
		return evalExpr(x.r, scope)
	}
	r, err := evalExpr(x.r, scope)
	if err != nil {
		return nil, err
	}
	switch x.op {
	case "==", "===":
		return valueEqual(l, r), nil
	case "!=", "!==":
		return !valueEqual(l, r), nil
	case "+":
		if ls, ok := l.(string); ok {
			return ls + ToString(r), nil
		}
		if rs, ok := r.(string); ok {
			return ToString(l) + rs, nil
		}
	}
	ln, lok := Number(l)
	rn, rok := Number(r)
	if !lok || !rok {
		return nil, errAt(x.line, "operator %q needs numbers", x.op)
	}
	switch x.op {
	case "+":
		return ln + rn, nil
	case "-":
		return ln - rn, nil
	case "*":
		return ln * rn, nil
	case "/":
		return ln / rn, nil
	case "%":
		return math.Mod(ln, rn), nil
	case "<":
		return ln < rn, nil
	case "<=":
		return ln <= rn, nil
	case ">":
		return ln > rn, nil
	case ">=":
		return ln >= rn, nil
	}
	return nil, errAt(x.line, "unknown operator %q", x.op)
}

func valueEqual(l, r Value) bool {
	if ln, ok := Number(l); ok {
		rn, rok := Number(r)
		return rok && ln == rn
	}
	return l == r
}
