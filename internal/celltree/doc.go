// Package celltree implements the cell tree: the rendered projection of a
// node tree that layout, selection and completion operate on.
//
// Cells live in an arena owned by a Tree and are addressed by a stable,
// process-unique ID. Parent and child links are IDs into that arena, so
// detaching or deleting a cell is bookkeeping on two slices and a map.
//
// Two trees share the read API:
//
//   - BackendTree is the authoritative, mutable tree. Every mutation is
//     recorded as an Op. RunUpdate runs a mutation pass, deletes cells that
//     were left detached, and returns the ordered op log.
//   - MirrorTree replays an op log with ApplyChanges and exposes no other
//     mutation. Frontends use it to stay eventually consistent.
//
// Cell properties are typed keys (Key[T]) of a closed set of kinds. Keys
// flagged as frontend-visible cross the backend/frontend boundary as Value.
//
// Cells carry logical References. The tree maintains an index from
// reference to cells that survives rebuilds of the cells themselves.
package celltree
