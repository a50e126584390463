// Package chainrun is a declarative browser-interaction and assertion runner.
//
// Suites are declared with Describe, It and BeforeEach. Each case body
// receives a *Cy, the root of a fluent chain of queries, actions and
// assertions resolved against a Provider, the capability interface that
// does the actual DOM work (see the static and devtools packages).
//
// Queries are lazy. A chain records how to resolve its subject and is only
// resolved when an action or assertion consumes it. Assertions retry the
// whole upstream chain until they pass or their timeout elapses.
package chainrun
