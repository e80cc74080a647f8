// Package layout turns a cell subtree into lines of words.
//
// A TextLayouter collects rendering leaves (CellWord) and resolves the
// boundaries between them: a Space between adjacent leaves unless "no space"
// was requested, a line break where "on new line" was requested, and an
// indent scope for collections that indent their children. The result is a
// LayoutedText, which can itself be appended to a parent layouter; the
// boundary requests that could not be resolved inside the subtree travel
// with it as flags. This makes the layout of a cell a pure function of its
// own properties and its children's layouts, so callers can cache it per
// cell.
package layout
