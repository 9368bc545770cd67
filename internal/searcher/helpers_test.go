package searcher

import "github.com/dshills/docqa/internal/parser"

func parserIntent(q string) parser.QueryIntent {
	return parser.ParseQuery(q)
}
