// Package classify maps free-form product text to a marketplace category
// and builds the attribute map the listing payload requires.
//
// Resolution is tiered: a restricted-keyword guard runs first, then a
// curated keyword rule table, then fuzzy scoring over the category tree
// with an AI tiebreak. Attribute generation prefers hand-authored
// generators per category type and falls back to schema-driven AI fill
// with deterministic defaults so the mandatory key set is always covered.
package classify
