// Package generate renders the reStructuredText pages of a documentation
// tree: one page per Python module, one per script, the master index and
// the Sphinx configuration.
//
// Every generator writes through templating.WriteGeneratedFile, so an
// existing page is never replaced unless Options.Overwrite is set and a
// second run without overwrite performs no writes.
package generate
