// Package credentials holds catalog access tokens and decides whether they can be used.
//
// A [Store] runs in one of two scopes:
//   - [models.ScopeService]: one token configured at start-up and shared by every conversation
//   - [models.ScopePerUser]: each conversation brings its own token, kept in memory only
//
// [Validator] probes the catalog with a token before it is accepted. [Authorizer] builds the
// implicit-flow login link shown to users and [ParseToken] reads back whatever they paste.
package credentials
