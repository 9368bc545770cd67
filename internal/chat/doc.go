// Package chat answers user messages from the indexed documents.
//
// A reply is produced in one of three ways: a canned answer for greetings
// and identity questions, a generated answer grounded on retrieved
// fragments, or, when no generator is available, an extractive answer that
// lists the fragments. Questions with no matching fragments get a fixed
// "no information" answer instead of a guess.
package chat
