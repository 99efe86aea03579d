package query

import (
	"errors"
	"testing"

	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	txerrors "github.com/Aman-CERP/textdex/internal/errors"
	"github.com/Aman-CERP/textdex/internal/store"
)

func testAnalyzer(t *testing.T) *store.Analyzer {
	t.Helper()
	an, err := store.NewAnalyzer(bookSchema())
	require.NoError(t, err)
	return an
}

// leaves collects the field-targeting clauses of q.
func leaves(q blevequery.Query) []blevequery.FieldableQuery {
	var out []blevequery.FieldableQuery
	var walk func(blevequery.Query)
	walk = func(q blevequery.Query) {
		switch tq := q.(type) {
		case *blevequery.BooleanQuery:
			for _, c := range []blevequery.Query{tq.Must, tq.Should, tq.MustNot} {
				if c != nil {
					walk(c)
				}
			}
		case *blevequery.ConjunctionQuery:
			for _, c := range tq.Conjuncts {
				walk(c)
			}
		case *blevequery.DisjunctionQuery:
			for _, c := range tq.Disjuncts {
				walk(c)
			}
		case blevequery.FieldableQuery:
			out = append(out, tq)
		}
	}
	walk(q)
	return out
}

func TestParse_EmptyMatchesAll(t *testing.T) {
	an := testAnalyzer(t)

	for _, text := range []string{"", "   ", "\t\n"} {
		q, err := Parse(text, "title", an)
		require.NoError(t, err)
		assert.IsType(t, &blevequery.MatchAllQuery{}, q)
	}
}

func TestParse_BindsDefaultFieldAndAnalyzer(t *testing.T) {
	an := testAnalyzer(t)

	// Given: an unqualified term and a term on a String field
	q, err := Parse(`hello category:Drama`, "title", an)
	require.NoError(t, err)

	// Then: each clause targets its field with that field's analyzer
	got := map[string]string{}
	for _, leaf := range leaves(q) {
		mq, ok := leaf.(*blevequery.MatchQuery)
		require.True(t, ok, "unexpected clause %T", leaf)
		got[mq.Field()] = mq.Analyzer
	}
	assert.Equal(t, map[string]string{"title": "standard", "category": "keyword"}, got)
}

func TestParse_Phrase(t *testing.T) {
	an := testAnalyzer(t)

	q, err := Parse(`"hello world"`, "title", an)
	require.NoError(t, err)

	ls := leaves(q)
	require.Len(t, ls, 1)
	pq, ok := ls[0].(*blevequery.MatchPhraseQuery)
	require.True(t, ok)
	assert.Equal(t, "title", pq.Field())
	assert.Equal(t, "standard", pq.Analyzer)
}

func TestParse_PhraseOnKeywordFieldIsTerm(t *testing.T) {
	an := testAnalyzer(t)

	tests := []struct {
		name, text, field string
	}{
		{"qualified", `category:"Science Fiction"`, "title"},
		{"default field", `"Science Fiction"`, "category"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a phrase targeting a String field
			q, err := Parse(tt.text, tt.field, an)
			require.NoError(t, err)

			// Then: it becomes one term holding the whole value
			ls := leaves(q)
			require.Len(t, ls, 1)
			tq, ok := ls[0].(*blevequery.TermQuery)
			require.True(t, ok, "unexpected clause %T", ls[0])
			assert.Equal(t, "category", tq.Field())
			assert.Equal(t, "Science Fiction", tq.Term)
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	an := testAnalyzer(t)

	tests := []struct {
		name     string
		text     string
		position int
	}{
		{name: "unterminated group", text: "title:(unterminated", position: 6},
		{name: "unmatched close", text: "hello)", position: 5},
		{name: "unterminated phrase", text: `title:"hello`, position: 6},
		{name: "unterminated regexp", text: `title:/hel`, position: 6},
		{name: "dangling escape", text: `hello\`, position: 5},
		{name: "nested group", text: "(a (b)", position: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, "title", an)

			require.Error(t, err)
			assert.ErrorIs(t, err, txerrors.ErrQuerySyntax)
			var se *SyntaxError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.text, se.Query)
			assert.Equal(t, tt.position, se.Position)
			assert.Contains(t, se.Error(), txerrors.ErrCodeInvalidQuery)
		})
	}
}

func TestParse_EngineRejection(t *testing.T) {
	an := testAnalyzer(t)

	_, err := Parse("title:", "title", an)

	require.Error(t, err)
	assert.ErrorIs(t, err, txerrors.ErrQuerySyntax)
	var se *SyntaxError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, -1, se.Position)
}

func TestScan_Balanced(t *testing.T) {
	for _, text := range []string{
		"hello",
		`title:"a (b"`,
		`title:\(literal`,
		`title:/a(b/`,
		"path:a/b",
		"(a) (b (c))",
	} {
		pos, msg := scan(text)
		assert.Equal(t, -1, pos, "%q: %s", text, msg)
	}
}

func TestParse_NumericField(t *testing.T) {
	an := testAnalyzer(t)

	q, err := Parse("year:2020", "title", an)
	require.NoError(t, err)

	var sawRange bool
	for _, leaf := range leaves(q) {
		assert.Equal(t, "year", leaf.Field())
		if _, ok := leaf.(*blevequery.NumericRangeQuery); ok {
			sawRange = true
		}
	}
	assert.True(t, sawRange)
}
