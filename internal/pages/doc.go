// Package pages defines routing with struct tags and methods. A page tree
// is a set of nested structs whose fields carry `route:"[METHOD] /path [Title]"`
// tags. Each page is either an [http.Handler], a handler returning an error,
// or a type with component methods (at least Page) whose arguments come from
// an optional Props method and from values injected by type at mount time.
//
// Requests from htmx select a component by their HX-Target header, so a
// single page serves both the full document and its partial fragments.
package pages
