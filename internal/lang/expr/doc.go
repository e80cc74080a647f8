// Package expr is a small expression language used by the demo and the
// tests: number and boolean literals, parentheses, the binary operators
// + - * < <= ==, let bindings and test suites made of assertions.
package expr
