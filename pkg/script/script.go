// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package script defines migration scripts and the variables substituted into them.
package script

import "maps"

// SchemaVariable is the reserved variable naming the target schema.
const SchemaVariable = "schema"

// Script is a named block of raw SQL text.
//
// Scripts are read-only once produced by a provider.
type Script struct {
	Name     string
	Contents string
}

// New creates a script.
func New(name, contents string) Script {
	return Script{
		Name:     name,
		Contents: contents,
	}
}

// Variables maps variable names to substitution values.
type Variables map[string]string

// Merge returns a new set of variables with overrides layered over v.
//
// Neither v nor overrides is modified.
func (v Variables) Merge(overrides Variables) Variables {
	result := make(Variables, len(v)+len(overrides))

	maps.Copy(result, v)
	maps.Copy(result, overrides)

	return result
}

// WithSchema returns a copy of v which always carries the schema variable.
//
// An explicitly provided schema variable wins over the default.
func (v Variables) WithSchema(defaultSchema string) Variables {
	return Variables{SchemaVariable: defaultSchema}.Merge(v)
}

// Lookup returns the value of a variable.
func (v Variables) Lookup(name string) (string, bool) {
	value, ok := v[name]

	return value, ok
}
