// Package pipeline loads pipeline definition files and builds plans from
// them.
//
// A definition names a source, a list of steps and a terminal aggregate.
// Lambda bodies are Go expressions. Identifiers that are not lambda
// parameters or builtins refer to fields of the definition's env, which
// become captured variables of the plan:
//
//	name: where-select
//	env: {threshold: 3, seed: 13}
//	source: {range: {start: 0, count: 100}}
//	steps:
//	  - where: {params: [i], body: "i % threshold == 0"}
//	  - select: {params: [i], body: "i * 4"}
//	aggregate: {seed: "seed", params: [acc, e], body: "(acc + e*27) % 100001"}
//
// Definitions are written in YAML or CUE; both decode into Definition.
package pipeline

// Definition is a pipeline file.
type Definition struct {
	// Name identifies the pipeline in output.
	Name string `yaml:"name" json:"name"`

	// Description is optional documentation.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Env holds the captured variables. Nested maps become nested
	// environments reachable with selector syntax (limits.max).
	Env map[string]any `yaml:"env,omitempty" json:"env,omitempty"`

	// Source is where elements come from.
	Source SourceDef `yaml:"source" json:"source"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Aggregate is the terminal fold.
	Aggregate AggregateDef `yaml:"aggregate" json:"aggregate"`
}

// SourceDef selects exactly one kind of source.
type SourceDef struct {
	// Array is a literal array of scalars.
	Array []any `yaml:"array,omitempty" json:"array,omitempty"`

	// Range is the integers start, start+1, ..., start+count-1.
	Range *RangeDef `yaml:"range,omitempty" json:"range,omitempty"`

	// Jagged is an array of arrays; flatten it with selectMany.
	Jagged [][]any `yaml:"jagged,omitempty" json:"jagged,omitempty"`

	// Env names an env field holding an array.
	Env string `yaml:"env,omitempty" json:"env,omitempty"`

	// SQLite reads the first column of a query.
	SQLite *SQLiteDef `yaml:"sqlite,omitempty" json:"sqlite,omitempty"`

	// Elem is the element type for empty arrays and SQLite columns:
	// int (default), float, string or bool.
	Elem string `yaml:"elem,omitempty" json:"elem,omitempty"`
}

// RangeDef is an integer range source.
type RangeDef struct {
	Start int `yaml:"start" json:"start"`
	Count int `yaml:"count" json:"count"`
}

// SQLiteDef is a SQLite column source.
type SQLiteDef struct {
	DSN   string `yaml:"dsn" json:"dsn"`
	Query string `yaml:"query" json:"query"`

	// Setup statements run once after opening, e.g. to fill an in-memory
	// database.
	Setup []string `yaml:"setup,omitempty" json:"setup,omitempty"`
}

// Step is one operator. Exactly one field is set.
type Step struct {
	Where      *LambdaDef     `yaml:"where,omitempty" json:"where,omitempty"`
	Select     *LambdaDef     `yaml:"select,omitempty" json:"select,omitempty"`
	SelectMany *SelectManyDef `yaml:"selectMany,omitempty" json:"selectMany,omitempty"`
}

// LambdaDef is a lambda written as parameter names and a Go expression.
type LambdaDef struct {
	Params []string `yaml:"params" json:"params"`
	Body   string   `yaml:"body" json:"body"`
}

// SelectManyDef is a selectMany step with an optional projection taking
// (outer, inner).
type SelectManyDef struct {
	Params     []string   `yaml:"params" json:"params"`
	Body       string     `yaml:"body" json:"body"`
	Projection *LambdaDef `yaml:"projection,omitempty" json:"projection,omitempty"`
}

// AggregateDef is the terminal fold. Seed is an expression over env fields
// and literals; Params are (accumulator, element).
type AggregateDef struct {
	Seed   string   `yaml:"seed" json:"seed"`
	Params []string `yaml:"params" json:"params"`
	Body   string   `yaml:"body" json:"body"`
}
