// Package predicate compiles CEL expressions into row filters over transaction lines.
//
// Expressions see one line at a time through these variables:
//
//	invoice_no, stock_code, description, customer_id, invoice_date, country  string
//	quantity                                                                   int
//	unit_price                                                                 double
//	has_quantity, has_price, has_customer                                      bool
//
// Null columns surface as their zero value with the matching has_* flag false.
// Example: `country == "United Kingdom" && unit_price >= 1.0`.
package predicate

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"retail-analytics/pkg/models"
)

// Compiler holds the CEL environment and a cache of compiled programs.
type Compiler struct {
	env      *cel.Env
	prgCache map[string]cel.Program
	mu       sync.RWMutex
}

// NewCompiler declares the line variables.
func NewCompiler() (*Compiler, error) {
	env, err := cel.NewEnv(
		cel.Variable("invoice_no", cel.StringType),
		cel.Variable("stock_code", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("quantity", cel.IntType),
		cel.Variable("unit_price", cel.DoubleType),
		cel.Variable("customer_id", cel.StringType),
		cel.Variable("invoice_date", cel.StringType),
		cel.Variable("country", cel.StringType),
		cel.Variable("has_quantity", cel.BoolType),
		cel.Variable("has_price", cel.BoolType),
		cel.Variable("has_customer", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Compiler{env: env, prgCache: make(map[string]cel.Program)}, nil
}

// Predicate is a compiled expression. It is safe for concurrent use.
type Predicate struct {
	expr string
	prg  cel.Program

	mu  sync.Mutex
	err error // first evaluation error
}

// Compile type-checks expr and requires a bool result.
func (c *Compiler) Compile(expr string) (*Predicate, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expr]
	c.mu.RUnlock()
	if hit {
		return &Predicate{expr: expr, prg: prg}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.prgCache[expr]; hit {
		return &Predicate{expr: expr, prg: prg}, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile %q: result is %s, want bool", expr, ast.OutputType())
	}
	p, err := c.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	c.prgCache[expr] = p
	return &Predicate{expr: expr, prg: p}, nil
}

// Eval runs the expression against one line.
func (p *Predicate) Eval(l models.TransactionLine) (bool, error) {
	out, _, err := p.prg.Eval(activation(l))
	if err != nil {
		return false, fmt.Errorf("eval %q on invoice %s: %w", p.expr, l.InvoiceNo, err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("eval %q: result not bool", p.expr)
	}
	return val, nil
}

// Match adapts Eval to a plain row filter. A line that fails to evaluate is
// excluded and the first failure is kept for Err.
func (p *Predicate) Match(l models.TransactionLine) bool {
	ok, err := p.Eval(l)
	if err != nil {
		p.mu.Lock()
		if p.err == nil {
			p.err = err
		}
		p.mu.Unlock()
		return false
	}
	return ok
}

// Err returns the first evaluation error seen by Match.
func (p *Predicate) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// String returns the source expression.
func (p *Predicate) String() string { return p.expr }

func activation(l models.TransactionLine) map[string]any {
	price := 0.0
	if l.UnitPrice.Valid {
		price = l.UnitPrice.Decimal.InexactFloat64()
	}
	return map[string]any{
		"invoice_no":   l.InvoiceNo,
		"stock_code":   l.StockCode,
		"description":  l.Description.String,
		"quantity":     l.Quantity.Int64,
		"unit_price":   price,
		"customer_id":  l.CustomerID.String,
		"invoice_date": l.InvoiceDate.String,
		"country":      l.Country,
		"has_quantity": l.Quantity.Valid,
		"has_price":    l.UnitPrice.Valid,
		"has_customer": l.HasCustomer(),
	}
}
