// Package validation checks request payloads against the declarative CUE
// constraints in schema.cue. Every violated field is reported, not just the
// first.
package validation

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource []byte

// Schema names accepted by Engine.Validate.
const (
	Taxonomy      = "Taxonomy"
	MarineSpecies = "MarineSpecies"
)

// ErrValidationFailed is matched by every *ValidationError.
var ErrValidationFailed = errors.New("validation failed")

// ErrUnknownSchema is returned for a schema name not declared in schema.cue.
var ErrUnknownSchema = errors.New("validation: unknown schema")

// Violation is one failed constraint.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a payload, in declaration order.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// Fields returns the names of the violated fields.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Field
	}
	return out
}

type schema struct {
	def      cue.Value
	fields   []string          // declaration order
	messages map[string]string // from @msg attributes
}

// Engine evaluates payloads against compiled schemas. It is not safe for
// concurrent use.
type Engine struct {
	ctx     *cue.Context
	schemas map[string]*schema
}

// New compiles the embedded schema.
func New() (*Engine, error) {
	ctx := cuecontext.New()
	root := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	e := &Engine{ctx: ctx, schemas: make(map[string]*schema)}
	for _, name := range []string{Taxonomy, MarineSpecies} {
		s, err := loadSchema(root, name)
		if err != nil {
			return nil, err
		}
		e.schemas[name] = s
	}
	return e, nil
}

func loadSchema(root cue.Value, name string) (*schema, error) {
	def := root.LookupPath(cue.MakePath(cue.Def(name)))
	if !def.Exists() {
		return nil, fmt.Errorf("%w: #%s", ErrUnknownSchema, name)
	}

	s := &schema{def: def, messages: make(map[string]string)}
	it, err := def.Fields()
	if err != nil {
		return nil, fmt.Errorf("schema #%s: %w", name, err)
	}
	for it.Next() {
		field := it.Selector().String()
		s.fields = append(s.fields, field)
		attr := it.Value().Attribute("msg")
		msg, err := attr.String(0)
		if err != nil || msg == "" {
			msg = field + " is invalid"
		}
		s.messages[field] = msg
	}
	return s, nil
}

// Validate checks payload against the named schema. It returns nil or a
// *ValidationError naming each failing field once.
func (e *Engine) Validate(name string, payload any) error {
	s, ok := e.schemas[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}

	data := e.ctx.Encode(payload)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	err := s.def.Unify(data).Validate(cue.Concrete(true), cue.All())
	if err == nil {
		return nil
	}

	failed := make(map[string]bool)
	var unplaced []string
	for _, ce := range cueerrors.Errors(err) {
		field := fieldOf(ce.Path())
		if field == "" {
			unplaced = append(unplaced, ce.Error())
			continue
		}
		failed[field] = true
	}

	verr := &ValidationError{}
	for _, field := range s.fields {
		if failed[field] {
			verr.Violations = append(verr.Violations, Violation{Field: field, Message: s.messages[field]})
			delete(failed, field)
		}
	}
	// Fields the schema does not declare (a closed definition rejects them).
	extra := make([]string, 0, len(failed))
	for field := range failed {
		extra = append(extra, field)
	}
	slices.Sort(extra)
	for _, field := range extra {
		verr.Violations = append(verr.Violations, Violation{Field: field, Message: field + " is not allowed"})
	}
	for _, msg := range unplaced {
		verr.Violations = append(verr.Violations, Violation{Field: "", Message: msg})
	}
	return verr
}

// fieldOf returns the payload field an error path points into. Paths start
// with the definition selector (#Taxonomy), which is skipped.
func fieldOf(path []string) string {
	for _, sel := range path {
		if !strings.HasPrefix(sel, "#") {
			return sel
		}
	}
	return ""
}
