package repo

import (
	"strconv"
	"strings"
)

type Page struct {
	Limit  int
	Offset int
}

// conds collects WHERE clauses with numbered placeholders. Each "?" in expr becomes the next $n.
type conds struct {
	clauses []string
	args    []any
}

func (c *conds) add(expr string, arg any) {
	c.args = append(c.args, arg)
	c.clauses = append(c.clauses, strings.Replace(expr, "?", "$"+strconv.Itoa(len(c.args)), 1))
}

// addN is add for expressions with several placeholders, bound to args in order.
func (c *conds) addN(expr string, args ...any) {
	for _, a := range args {
		c.args = append(c.args, a)
		expr = strings.Replace(expr, "?", "$"+strconv.Itoa(len(c.args)), 1)
	}
	c.clauses = append(c.clauses, expr)
}

func (c *conds) where() string {
	if len(c.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders and returns the clause.
func (c *conds) page(p Page) string {
	if p.Limit <= 0 {
		return ""
	}
	c.args = append(c.args, p.Limit, p.Offset)
	n := len(c.args)
	return " LIMIT $" + strconv.Itoa(n-1) + " OFFSET $" + strconv.Itoa(n)
}
