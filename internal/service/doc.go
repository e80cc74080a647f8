// Package service is the backend editor service.
//
// A Service owns one engine.Component per open editor. Each editor has an
// UpdateChannel: requests run with updates paused and return the diff they
// caused, and model changes from anywhere reach every editor through a
// Validator that coalesces them into one recompute-and-push pass.
//
// Requests for one editor are serialized by its channel. Model changes run
// in model Write scopes; cell trees are read and updated outside of them.
package service
