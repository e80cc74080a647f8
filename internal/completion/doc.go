// Package completion resolves, ranks and deduplicates the actions offered
// at a caret position.
//
// Providers expand lazily into actions. A Cache remembers, per provider,
// whether the expansion read the typed pattern; expansions that did not are
// reused on later keystrokes. Menu filters the cached actions by prefix,
// removes shadowed duplicates and sorts the rest case-insensitively.
//
// The token pattern of an action (Constant, Space, Placeholder and List)
// decides both the prefix filter and whether typed text can be applied
// without opening a menu (see AutoApply).
package completion
