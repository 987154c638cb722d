// Package table implements the tabular data engine behind every list page.
//
// An [Engine] owns the column and action configuration of one table, the raw
// dataset supplied by its parent page, and the view derived from them. Every
// state change re-runs the same pipeline, in this order:
//
//  1. Start from the raw dataset.
//  2. Keep records where any field contains the search text (case-folded).
//  3. Keep records whose value in every filtered column is one of the
//     selected options for that column.
//  4. Split the result into pages and clamp the current page index.
//
// The engine never mutates the records it is given. Display-only fields
// computed by a [Decorator] live in [DisplayRecord.Derived].
//
// Cell values are rendered by [Render] using a [Format], a closed set of
// per-type formatting parameters decoded once from the column definition by
// [DecodeFormat]. Rendering never fails: values that cannot be formatted are
// returned in their plain string form.
//
// An Engine is not safe for concurrent use. Callers that share one between
// goroutines must serialise access.
package table
