package classify

import (
	"github.com/exploopio/waflens/pkg/mapping"
	"github.com/exploopio/waflens/pkg/severity"
)

// The static base severity is resolved through an ordered chain of steps;
// the first step that yields a level wins. Steps are pure functions over
// the loaded profiles so each one can be tested on its own.
//
// Order, fixed:
//  1. primary override table
//  2. category (hint, else primary table) -> primary category severity
//  3. category (hint, else primary table, else secondary table) -> secondary category severity
//  4. secondary override table
type resolverStep struct {
	name    string
	resolve func(techniqueID, categoryHint string) (severity.Level, bool)
}

// buildResolverChain assembles the base-severity strategy chain for the
// given profile pair.
func buildResolverChain(primary, secondary *mapping.Profile) []resolverStep {
	return []resolverStep{
		{
			name: "primary-override",
			resolve: func(id, _ string) (severity.Level, bool) {
				return primary.OverrideFor(id)
			},
		},
		{
			name: "primary-category",
			resolve: func(id, hint string) (severity.Level, bool) {
				cat := hint
				if cat == "" {
					cat, _ = primary.CategoryFor(id)
				}
				if cat == "" {
					return severity.Unknown, false
				}
				return primary.SeverityForCategory(cat)
			},
		},
		{
			name: "secondary-category",
			resolve: func(id, hint string) (severity.Level, bool) {
				cat := hint
				if cat == "" {
					cat, _ = primary.CategoryFor(id)
				}
				if cat == "" {
					cat, _ = secondary.CategoryFor(id)
				}
				if cat == "" {
					return severity.Unknown, false
				}
				return secondary.SeverityForCategory(cat)
			},
		},
		{
			name: "secondary-override",
			resolve: func(id, _ string) (severity.Level, bool) {
				return secondary.OverrideFor(id)
			},
		},
	}
}

// resolveBase walks the chain and returns the first hit, or LOW when no
// table knows the technique.
func resolveBase(chain []resolverStep, techniqueID, categoryHint string) severity.Level {
	for _, step := range chain {
		if lvl, ok := step.resolve(techniqueID, categoryHint); ok && lvl != severity.Unknown {
			return lvl
		}
	}
	return severity.Low
}
