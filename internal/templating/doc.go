// Package templating loads named templates from an ordered list of sources
// and renders them with text/template.
//
// The first source is always the embedded default template set; directories
// given to New are appended after it. Lookup is first-found-wins. A source
// may carry a _template.yaml manifest naming extensions (registered with
// RegisterExtension) and globals. Each listed extension's Register method
// runs exactly once per source when the environment is created, in source
// order.
//
// An Environment is read-mostly after New returns and is safe for
// concurrent Render calls.
package templating
