// Package pysource reads Python projects without executing them.
//
// Modules are located on a search path the way the interpreter would find
// them, then parsed with tree-sitter to produce a Summary of their members,
// a script's command-line option schema, or a check of a generated conf.py.
package pysource
