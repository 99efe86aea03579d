// Package query translates query text into bleve queries bound to an index
// schema and runs searches and group-by aggregations through the coordinator.
package query

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/store"
)

// SyntaxError reports query text the parser rejected. Position is the byte
// offset of the offending character, or -1 when the parser did not report
// one. It matches txerrors.ErrQuerySyntax under errors.Is.
type SyntaxError struct {
	Query    string
	Position int
	Cause    error
}

func (e *SyntaxError) Error() string {
	msg := fmt.Sprintf("[%s] invalid query %q", txerrors.ErrCodeInvalidQuery, e.Query)
	if e.Position >= 0 {
		msg += fmt.Sprintf(" at position %d", e.Position)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// Is matches the query-syntax error kind.
func (e *SyntaxError) Is(target error) bool {
	t, ok := target.(*txerrors.Error)
	return ok && t.Code == txerrors.ErrCodeInvalidQuery
}

// Parse parses text with the bleve query-string syntax. Terms without a
// field target defaultField, and every match clause is analyzed with the
// analyzer of the field it targets. Empty or whitespace-only text matches
// every document.
func Parse(text, defaultField string, an *store.Analyzer) (blevequery.Query, error) {
	if strings.TrimSpace(text) == "" {
		return blevequery.NewMatchAllQuery(), nil
	}

	if pos, msg := scan(text); pos >= 0 {
		return nil, &SyntaxError{Query: text, Position: pos, Cause: fmt.Errorf("%s", msg)}
	}

	q, err := blevequery.NewQueryStringQuery(text).Parse()
	if err != nil {
		return nil, &SyntaxError{Query: text, Position: -1, Cause: err}
	}
	return bind(q, defaultField, an), nil
}

// scan finds unbalanced parentheses and unterminated quoted phrases or
// regular expressions, which the query-string parser would otherwise accept
// as literal term characters. It returns -1 when text is balanced.
func scan(text string) (int, string) {
	var (
		open    []int
		quote   = -1
		regexp  = -1
		escaped bool
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		if c == '\\' {
			escaped = true
			continue
		}
		switch {
		case quote >= 0:
			if c == '"' {
				quote = -1
			}
			continue
		case regexp >= 0:
			if c == '/' {
				regexp = -1
			}
			continue
		}

		switch c {
		case '"':
			quote = i
		case '/':
			if termStart(text, i) {
				regexp = i
			}
		case '(':
			open = append(open, i)
		case ')':
			if len(open) == 0 {
				return i, "unmatched closing parenthesis"
			}
			open = open[:len(open)-1]
		}
	}

	switch {
	case escaped:
		return len(text) - 1, "dangling escape character"
	case quote >= 0:
		return quote, "unterminated phrase"
	case regexp >= 0:
		return regexp, "unterminated regular expression"
	case len(open) > 0:
		return open[len(open)-1], "unterminated group"
	}
	return -1, ""
}

// termStart reports whether position i begins a term.
func termStart(text string, i int) bool {
	if i == 0 {
		return true
	}
	switch text[i-1] {
	case ' ', '\t', '\n', ':', '(', '+', '-':
		return true
	}
	return false
}

// bind walks q, targeting unqualified clauses at defaultField and setting
// the analyzer of match clauses to their field's analyzer. Phrases on
// keyword fields become term queries on the whole phrase, since keyword
// fields carry no term positions.
func bind(q blevequery.Query, defaultField string, an *store.Analyzer) blevequery.Query {
	switch tq := q.(type) {
	case *blevequery.BooleanQuery:
		if tq.Must != nil {
			tq.Must = bind(tq.Must, defaultField, an)
		}
		if tq.Should != nil {
			tq.Should = bind(tq.Should, defaultField, an)
		}
		if tq.MustNot != nil {
			tq.MustNot = bind(tq.MustNot, defaultField, an)
		}
		return tq
	case *blevequery.ConjunctionQuery:
		for i, child := range tq.Conjuncts {
			tq.Conjuncts[i] = bind(child, defaultField, an)
		}
		return tq
	case *blevequery.DisjunctionQuery:
		for i, child := range tq.Disjuncts {
			tq.Disjuncts[i] = bind(child, defaultField, an)
		}
		return tq
	}

	fq, ok := q.(blevequery.FieldableQuery)
	if !ok {
		return q
	}
	if fq.Field() == "" {
		fq.SetField(defaultField)
	}

	switch mq := q.(type) {
	case *blevequery.MatchQuery:
		mq.Analyzer = an.NameFor(mq.Field())
	case *blevequery.MatchPhraseQuery:
		name := an.NameFor(mq.Field())
		if name == keyword.Name {
			term := blevequery.NewTermQuery(mq.MatchPhrase)
			term.SetField(mq.Field())
			term.BoostVal = mq.BoostVal
			return term
		}
		mq.Analyzer = name
	}
	return q
}
