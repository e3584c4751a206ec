// Package workspace manages the directories of a documentation build.
//
// A build writes into <output>/_temp, which is deleted and recreated on
// every run, and Sphinx renders from there into <output>/html. The temp
// directory is seeded from a skeleton: the embedded default, or a
// user-supplied directory. Skeleton files whose names carry ".template"
// are rendered through the templating environment and saved without it.
package workspace
