// Package reranker reorders retrieved fragments by embedding similarity to
// the query. It never fails a request: a query that cannot be embedded keeps
// the retrieval order, and a candidate that cannot be embedded keeps its
// retrieval score.
package reranker
