// Package querygen synthesizes GraphQL operations from an introspected content API schema.
//
// For every root Query field that returns a configured content type, either as a
// collection response (XEntityResponseCollection), a single response (XEntityResponse)
// or the content type itself, and for every requested locale, Synthesize produces an
// Operation carrying two documents:
//
//   - the full query, selecting every reachable field of the content type
//   - the sync query, selecting only record identifiers for presence confirmation
//
// Selection sets are bounded in two ways. A hard depth cap omits any subtree that would
// nest deeper than MaxDepth levels. Relation wrapper types are never expanded: types named
// *Entity select their identifier and types named *RelationResponseCollection select
// `nodes { __typename documentId }`. Schemas that do not follow those conventions are
// still safe, because a type already on the active recursion path is reduced to its
// identifier field.
//
// Variables are declared only when the schema accepts them:
//
//	$pagination        collection root fields with a pagination argument
//	$publicationState  root or nested fields with a publicationState argument
//	$locale            root fields with a locale argument
//	$updatedAt         root fields whose filters input exposes updatedAt
package querygen
