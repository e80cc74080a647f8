// Package engine turns model nodes into cells.
//
// A concept editor (ConceptEditor) supplies a Template per concept. Applying
// a template to a node yields a Spec, an immutable description of the node's
// cells. Specs are memoized per editor state and node in an
// incremental.Engine; reads of the model and of the editor State are
// recorded, so a model change only rebuilds the specs that read it.
//
// A Component materializes the specs of one opened node into a
// celltree.BackendTree. Reconciliation is index aligned: existing cells are
// reused where the position matches, node cells are moved to their new
// parent, and surplus cells are detached and swept when the update ends.
//
// Cells carry backend-only action keys (SubstituteKey, DeleteKey, ...) that
// the service consults when the user types, deletes or completes.
package engine
