package filter

import (
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/araddon/dateparse"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled expression evaluated against records.
// It is safe for concurrent use.
type Filter struct {
	expression string
	program    *vm.Program
	helpers    map[string]any
	envPool    *sync.Pool
}

// Compiler compiles expressions, caching the results.
type Compiler struct {
	helpers map[string]any
	cache   *lruCache[*Filter]
}

// CompilerOption configures a Compiler
type CompilerOption func(*Compiler)

// WithCache sets the number of compiled filters kept. Zero disables caching.
func WithCache(size int) CompilerOption {
	return func(c *Compiler) {
		if size > 0 {
			c.cache = newLRUCache[*Filter](size)
		} else {
			c.cache = nil
		}
	}
}

// WithCustomFunctions adds helper functions to the expression environment
func WithCustomFunctions(funcs map[string]any) CompilerOption {
	return func(c *Compiler) {
		maps.Copy(c.helpers, funcs)
	}
}

// NewCompiler creates a compiler with the default helpers and a cache of
// 100 filters.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		helpers: helperFunctions(),
		cache:   newLRUCache[*Filter](100),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile compiles expression. Record fields are referenced by their API
// names, e.g. `status == "Booked" && containsFold(notes, "vip")`. The
// built-in operators contains, startsWith and endsWith are case-sensitive;
// the *Fold helpers are not.
func (c *Compiler) Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	if c.cache != nil {
		if cached, ok := c.cache.Get(expression); ok {
			return cached, nil
		}
	}

	program, err := expr.Compile(expression,
		expr.Env(c.helpers),
		expr.AllowUndefinedVariables(),
		expr.AsBool(),
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	f := &Filter{
		expression: expression,
		program:    program,
		helpers:    c.helpers,
		envPool: &sync.Pool{
			New: func() any { return make(map[string]any, 32) },
		},
	}
	if c.cache != nil {
		c.cache.Put(expression, f)
	}
	return f, nil
}

// Size returns the number of cached filters.
func (c *Compiler) Size() int {
	if c.cache == nil {
		return 0
	}
	return c.cache.Size()
}

// Compile compiles expression with a fresh default compiler.
func Compile(expression string) (*Filter, error) {
	return NewCompiler(WithCache(0)).Compile(expression)
}

// Match reports whether rec satisfies the filter.
func (f *Filter) Match(rec Record) (bool, error) {
	env := f.envPool.Get().(map[string]any)
	defer func() {
		clear(env)
		f.envPool.Put(env)
	}()

	maps.Copy(env, f.helpers)
	maps.Copy(env, rec)
	env["record"] = map[string]any(rec)

	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, &EvaluationError{Expression: f.expression, RecordID: rec.ID(), Err: err}
	}
	matched, _ := out.(bool)
	return matched, nil
}

// Apply returns the records that match. Records that fail to evaluate are
// treated as non-matching and reported through onError, which may be nil.
func (f *Filter) Apply(records []Record, onError func(error)) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		ok, err := f.Match(rec)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			continue
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

// String returns the compiled expression
func (f *Filter) String() string {
	return f.expression
}

func helperFunctions() map[string]any {
	return map[string]any{
		// Date helpers
		"parseDate": func(s string) time.Time {
			t, err := dateparse.ParseLocal(s)
			if err != nil {
				return time.Time{}
			}
			return t
		},
		"daysSince": func(s string) int {
			t, err := dateparse.ParseLocal(s)
			if err != nil {
				return 0
			}
			return int(time.Since(t).Hours() / 24)
		},
		"daysAgo": func(days int) time.Time {
			return time.Now().AddDate(0, 0, -days)
		},
		"daysAhead": func(days int) time.Time {
			return time.Now().AddDate(0, 0, days)
		},
		"today": func() string {
			return time.Now().Format("2006-01-02")
		},
		"now": time.Now,

		// String helpers
		"containsFold": func(str, substr string) bool {
			return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
		},
		"hasPrefixFold": func(str, prefix string) bool {
			return strings.HasPrefix(strings.ToLower(str), strings.ToLower(prefix))
		},
		"hasSuffixFold": func(str, suffix string) bool {
			return strings.HasSuffix(strings.ToLower(str), strings.ToLower(suffix))
		},
		"lower": strings.ToLower,
		"upper": strings.ToUpper,
	}
}
