// Package caps discovers project files named in capitals (README, COPYING,
// LICENSE, ...) and folds them into the documentation tree as pages, and
// copies an additional hand-written documentation directory alongside.
//
// Every discovered page belongs to exactly one Category: the first of
// included, about and topic whose pattern set matches its base name.
// Names matching none are unclassified; the UnclassifiedPolicy decides
// whether they are listed under "Other" or left out of the index.
package caps
