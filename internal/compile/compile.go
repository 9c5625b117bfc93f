// Package compile builds executable operations from schema SDL and query
// text. The operations it produces use selection.Map and stand in for
// generated selection sets.
package compile

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/go-logr/logr"
	"github.com/golang/groupcache/lru"

	"github.com/hanpama/graphcache/internal/language"
	"github.com/hanpama/graphcache/internal/selection"
	"github.com/hanpama/graphcache/internal/value"
)

var (
	ErrUnknownOperation = errors.New("compile: unknown operation")
	ErrUnknownField     = errors.New("compile: unknown field")
	ErrUnknownType      = errors.New("compile: unknown type")
	ErrUnknownFragment  = errors.New("compile: unknown fragment")
)

type Options struct {
	// CacheSize bounds the number of compiled operations kept. Zero
	// disables caching.
	CacheSize int
	// Scalars decodes custom scalars by name. Unlisted custom scalars pass
	// values through.
	Scalars map[string]value.ScalarDecoder
	Logger  logr.Logger
}

type Option func(*Options)

func WithCacheSize(n int) Option { return func(o *Options) { o.CacheSize = n } }

func WithScalar(d value.ScalarDecoder) Option {
	return func(o *Options) { o.Scalars[d.Name()] = d }
}

func WithLogger(l logr.Logger) Option { return func(o *Options) { o.Logger = l } }

// Compiler compiles operations against one schema. It is safe for
// concurrent use.
type Compiler struct {
	schema *language.Schema
	opt    Options

	mu    sync.Mutex
	cache *lru.Cache
}

func New(schema *language.Schema, opts ...Option) *Compiler {
	opt := Options{CacheSize: 128, Scalars: map[string]value.ScalarDecoder{}, Logger: logr.Discard()}
	for _, f := range opts {
		f(&opt)
	}
	c := &Compiler{schema: schema, opt: opt}
	if opt.CacheSize > 0 {
		c.cache = lru.New(opt.CacheSize)
	}
	return c
}

// FromSDL loads a schema and returns a Compiler for it.
func FromSDL(name, sdl string, opts ...Option) (*Compiler, error) {
	schema, err := language.LoadSchema(name, sdl)
	if err != nil {
		return nil, fmt.Errorf("compile: load schema: %w", err)
	}
	return New(schema, opts...), nil
}

// Schema returns the schema operations are compiled against.
func (c *Compiler) Schema() *language.Schema { return c.schema }

type cacheKey struct {
	query, operationName string
}

// Compile returns the named operation of query, or its only operation when
// operationName is empty. The returned operation's Variables hold the
// declared default values; it is shared between callers and must be bound
// with WithVariables rather than modified.
func (c *Compiler) Compile(query, operationName string) (*selection.Operation, error) {
	key := cacheKey{query, operationName}
	if c.cache != nil {
		c.mu.Lock()
		cached, ok := c.cache.Get(key)
		c.mu.Unlock()
		if ok {
			return cached.(*selection.Operation), nil
		}
	}

	op, err := c.compile(query, operationName)
	if err != nil {
		return nil, err
	}
	c.opt.Logger.V(1).Info("compiled operation", "operation", op.Name, "kind", op.Kind)

	if c.cache != nil {
		c.mu.Lock()
		c.cache.Add(key, op)
		c.mu.Unlock()
	}
	return op, nil
}

func (c *Compiler) compile(query, operationName string) (*selection.Operation, error) {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("compile: parse query: %w", err)
	}
	def, err := pickOperation(doc, operationName)
	if err != nil {
		return nil, err
	}

	var root *language.Definition
	switch def.Operation {
	case language.Mutation:
		root = c.schema.Mutation
	case language.Subscription:
		root = c.schema.Subscription
	default:
		root = c.schema.Query
	}
	if root == nil {
		return nil, fmt.Errorf("%w: schema has no %s root", ErrUnknownType, def.Operation)
	}

	b := &builder{Compiler: c, doc: doc, fragments: map[string]*selection.FragmentDefinition{}}
	set, err := b.selections(def.SelectionSet, root)
	if err != nil {
		return nil, err
	}

	defaults := map[string]any{}
	for _, v := range def.VariableDefinitions {
		if v.DefaultValue == nil {
			continue
		}
		dv, err := inputValue(v.DefaultValue)
		if err != nil {
			return nil, err
		}
		defaults[v.Variable] = dv
	}

	return &selection.Operation{
		Kind:      selection.OperationKind(def.Operation),
		Name:      def.Name,
		Document:  query,
		Variables: defaults,
		Data:      &selection.Map{TypeName: root.Name, Set: set},
	}, nil
}

func pickOperation(doc *language.QueryDocument, name string) (*language.OperationDefinition, error) {
	if name == "" {
		if len(doc.Operations) != 1 {
			return nil, fmt.Errorf("%w: document has %d operations, a name is required", ErrUnknownOperation, len(doc.Operations))
		}
		return doc.Operations[0], nil
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

type builder struct {
	*Compiler
	doc       *language.QueryDocument
	fragments map[string]*selection.FragmentDefinition
}

func (b *builder) selections(set language.SelectionSet, parent *language.Definition) ([]selection.Selection, error) {
	out := make([]selection.Selection, 0, len(set))
	for _, sel := range set {
		switch s := sel.(type) {
		case *language.Field:
			f, err := b.field(s, parent)
			if err != nil {
				return nil, err
			}
			out = append(out, f)

		case *language.InlineFragment:
			typ := parent
			if s.TypeCondition != "" {
				typ = b.schema.Types[s.TypeCondition]
				if typ == nil {
					return nil, fmt.Errorf("%w: %s", ErrUnknownType, s.TypeCondition)
				}
			}
			sub, err := b.selections(s.SelectionSet, typ)
			if err != nil {
				return nil, err
			}
			conds, err := conditions(s.Directives)
			if err != nil {
				return nil, err
			}
			out = append(out, &selection.InlineFragment{
				TypeCondition: s.TypeCondition,
				PossibleTypes: b.possibleTypes(typ),
				Type:          &selection.Map{TypeName: typ.Name, Set: sub},
				If:            conds,
			})

		case *language.FragmentSpread:
			def, err := b.fragment(s.Name)
			if err != nil {
				return nil, err
			}
			conds, err := conditions(s.Directives)
			if err != nil {
				return nil, err
			}
			out = append(out, &selection.FragmentSpread{Fragment: def, If: conds})
		}
	}
	return out, nil
}

func (b *builder) field(f *language.Field, parent *language.Definition) (*selection.Field, error) {
	conds, err := conditions(f.Directives)
	if err != nil {
		return nil, err
	}
	out := &selection.Field{Alias: f.Alias, Name: f.Name, If: conds}
	if out.Alias == f.Name {
		out.Alias = ""
	}

	if f.Name == "__typename" {
		out.Type = selection.NonNull(selection.ScalarType(value.String))
		return out, nil
	}
	def := parent.Fields.ForName(f.Name)
	if def == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, parent.Name, f.Name)
	}

	if len(f.Arguments) > 0 {
		out.Arguments = make(map[string]any, len(f.Arguments))
		for _, arg := range f.Arguments {
			v, err := inputValue(arg.Value)
			if err != nil {
				return nil, err
			}
			out.Arguments[arg.Name] = v
		}
	}

	out.Type, err = b.outputType(def.Type, f.SelectionSet)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", parent.Name, f.Name, err)
	}
	return out, nil
}

func (b *builder) outputType(t *language.Type, sub language.SelectionSet) (*selection.OutputType, error) {
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		of, err := b.outputType(&inner, sub)
		if err != nil {
			return nil, err
		}
		return selection.NonNull(of), nil
	}
	if t.Elem != nil {
		of, err := b.outputType(t.Elem, sub)
		if err != nil {
			return nil, err
		}
		return selection.ListOf(of), nil
	}

	def := b.schema.Types[t.NamedType]
	if def == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, t.NamedType)
	}
	switch def.Kind {
	case language.Scalar:
		return selection.ScalarType(b.scalar(def.Name)), nil
	case language.Enum:
		values := make([]string, len(def.EnumValues))
		for i, v := range def.EnumValues {
			values[i] = v.Name
		}
		return selection.ScalarType(value.Enum(def.Name, values...)), nil
	case language.Object, language.Interface, language.Union:
		set, err := b.selections(sub, def)
		if err != nil {
			return nil, err
		}
		return selection.ObjectType(&selection.Map{TypeName: def.Name, Set: set}), nil
	default:
		return nil, fmt.Errorf("%w: %s is not an output type", ErrUnknownType, def.Name)
	}
}

func (b *builder) scalar(name string) value.ScalarDecoder {
	if d, ok := b.opt.Scalars[name]; ok {
		return d
	}
	if d, ok := value.BuiltinScalar(name); ok {
		return d
	}
	return value.Custom(name)
}

// fragment compiles a named fragment once per operation. The definition is
// registered before its selections are built so recursive spreads share it.
func (b *builder) fragment(name string) (*selection.FragmentDefinition, error) {
	if def, ok := b.fragments[name]; ok {
		return def, nil
	}
	src := b.doc.Fragments.ForName(name)
	if src == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFragment, name)
	}
	typ := b.schema.Types[src.TypeCondition]
	if typ == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, src.TypeCondition)
	}
	m := &selection.Map{TypeName: typ.Name}
	def := &selection.FragmentDefinition{
		Name:          name,
		TypeCondition: src.TypeCondition,
		PossibleTypes: b.possibleTypes(typ),
		Type:          m,
	}
	b.fragments[name] = def

	set, err := b.selections(src.SelectionSet, typ)
	if err != nil {
		return nil, err
	}
	m.Set = set
	return def, nil
}

func (b *builder) possibleTypes(def *language.Definition) []string {
	types := b.schema.GetPossibleTypes(def)
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.Name
	}
	return out
}

func conditions(directives language.DirectiveList) ([]selection.Condition, error) {
	var out []selection.Condition
	for _, d := range directives {
		if d.Name != "skip" && d.Name != "include" {
			continue
		}
		arg := d.Arguments.ForName("if")
		if arg == nil {
			return nil, fmt.Errorf("compile: @%s requires an if argument", d.Name)
		}
		c := selection.Condition{Inverted: d.Name == "skip"}
		switch arg.Value.Kind {
		case language.Variable:
			c.Variable = arg.Value.Raw
		case language.BooleanValue:
			c.Value = arg.Value.Raw == "true"
		default:
			return nil, fmt.Errorf("compile: @%s(if:) must be a boolean", d.Name)
		}
		out = append(out, c)
	}
	return out, nil
}

// inputValue converts an argument literal, keeping variables as
// selection.Variable for substitution at execution time.
func inputValue(v *language.Value) (any, error) {
	switch v.Kind {
	case language.Variable:
		return selection.Variable{Name: v.Raw}, nil
	case language.IntValue:
		i, err := strconv.ParseInt(v.Raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("compile: invalid int %q: %w", v.Raw, err)
		}
		return i, nil
	case language.FloatValue:
		f, err := strconv.ParseFloat(v.Raw, 64)
		if err != nil {
			return nil, fmt.Errorf("compile: invalid float %q: %w", v.Raw, err)
		}
		return f, nil
	case language.StringValue, language.BlockValue, language.EnumValue:
		return v.Raw, nil
	case language.BooleanValue:
		return v.Raw == "true", nil
	case language.NullValue:
		return nil, nil
	case language.ListValue:
		out := make([]any, len(v.Children))
		for i, c := range v.Children {
			item, err := inputValue(c.Value)
			if err != nil {
				return nil, err
			}
			out[i] = item
		}
		return out, nil
	case language.ObjectValue:
		out := make(map[string]any, len(v.Children))
		for _, c := range v.Children {
			item, err := inputValue(c.Value)
			if err != nil {
				return nil, err
			}
			out[c.Name] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("compile: unsupported value kind %v", v.Kind)
	}
}
