// Package model is the node model the editor projects: typed nodes with
// string properties, child links and reference links, grouped by concepts
// of a Language.
//
// Memory is the in-memory implementation. Reads and writes happen in
// transaction scopes (Read, Write); listeners receive the changes of each
// write once it completed.
package model
