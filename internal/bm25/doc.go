// Package bm25 implements an in-memory Okapi BM25 lexical index.
//
// Each collection scope owns one Index. Documents are appended and never
// removed; Clear resets the corpus for rebuilds.
//
//	idx := bm25.New()
//	idx.AddDocument("Tema 2 Introducción al curso")
//	scores := idx.Score("introducción curso")
//
// Scoring follows the classic formulation with k1=1.5 and b=0.75 by default:
//
//	idf(t)   = ln((N - df(t) + 0.5) / (df(t) + 0.5) + 1)
//	score(d) = Σ idf(t) * f(t,d)*(k1+1) / (f(t,d) + k1*(1 - b + b*|d|/avgdl))
//
// Tokens are lowercase runs of Unicode letters, marks, digits and underscore.
// There is no stemming and no stopword list, so "curso" and "cursos" are
// distinct terms.
//
// Registry maps collection scopes to their indexes and remembers which
// document and page each indexed slot came from, so lexical scores can be
// joined to vector hits.
package bm25
