// Package script loads concept editors written in Lua.
//
// A script registers editors by concept name and builds their templates
// from a small set of constructors:
//
//	editor("Parens", function(c)
//	  return collection(
//	    constant("(", {nospace = true}),
//	    child("inner"),
//	    constant(")", {nospace = true}))
//	end)
//
// Each file runs in its own sandboxed state without the io, os, debug and
// package libraries. When a file is reloaded its previous editors are
// unregistered and the new ones take their place; a file that fails to load
// leaves the previous editors in effect.
package script
