// Package entity defines the record types shared by the ingestion pipeline
// and the governance engine: entity types, their canonical field schemas,
// enum vocabularies and raw value coercion.
package entity

import (
	"sort"
	"strings"

	"github.com/teranos/govpipe/errors"
)

// Type identifies a kind of record
type Type string

const (
	Incident  Type = "incident"
	Complaint Type = "complaint"
	Collision Type = "collision"
	// Analysis is a root-cause analysis record. It is evaluated by the
	// governance engine but never imported.
	Analysis Type = "analysis"
)

// ErrUnknownType is returned for entity type names outside the fixed set
var ErrUnknownType = errors.New("unknown entity type")

// ErrNotImportable is returned when a governance-only type is given to the pipeline
var ErrNotImportable = errors.New("entity type cannot be imported")

var resourcePaths = map[Type]string{
	Incident:  "/incidents",
	Complaint: "/complaints",
	Collision: "/collisions",
}

// All returns every known entity type in a stable order
func All() []Type {
	return []Type{Incident, Complaint, Collision, Analysis}
}

// Importable returns the entity types the pipeline can import, in a stable order
func Importable() []Type {
	return []Type{Incident, Complaint, Collision}
}

// Parse resolves a type name case-insensitively
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All() {
		if t == known {
			return t, nil
		}
	}
	return "", errors.WithHintf(errors.Wrapf(ErrUnknownType, "%q", s),
		"valid entity types: %s", strings.Join(names(All()), ", "))
}

// ParseImportable resolves a type name and rejects governance-only types
func ParseImportable(s string) (Type, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	if !t.Importable() {
		return "", errors.WithHintf(errors.Wrapf(ErrNotImportable, "%q", s),
			"importable entity types: %s", strings.Join(names(Importable()), ", "))
	}
	return t, nil
}

// Importable reports whether the pipeline can import this type
func (t Type) Importable() bool {
	_, ok := resourcePaths[t]
	return ok
}

// ResourcePath returns the API collection path, e.g. "/incidents".
// Empty for governance-only types.
func (t Type) ResourcePath() string {
	return resourcePaths[t]
}

func (t Type) String() string {
	return string(t)
}

func names(types []Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	sort.Strings(out)
	return out
}
