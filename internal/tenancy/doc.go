// Package tenancy carries the resolved tenant of a single request and turns it into the
// query filter every tenant-scoped repository applies.
//
// A Scope lives only in the request's context.Context. There is no package-level or
// connection-level tenant state, so nothing has to be cleared when a request ends.
// A context without a Scope yields a deny-all Filter.
package tenancy
