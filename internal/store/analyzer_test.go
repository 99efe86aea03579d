package store

import (
	"testing"

	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnalyzer_PerFieldPipelines(t *testing.T) {
	an, err := NewAnalyzer(testSchema())
	require.NoError(t, err)

	assert.Equal(t, standard.Name, an.NameFor("title"))
	assert.Equal(t, keyword.Name, an.NameFor("category"))
	assert.Empty(t, an.NameFor("year"))
	assert.Nil(t, an.For("year"))
	assert.Nil(t, an.For("unknown"))
	assert.Equal(t, "title", an.DefaultField())
	assert.NotNil(t, an.Mapping())
}

func TestNewAnalyzer_TokenizesTextOnly(t *testing.T) {
	an, err := NewAnalyzer(testSchema())
	require.NoError(t, err)

	textTokens := an.For("title").Analyze([]byte("Hello Brave World"))
	assert.Len(t, textTokens, 3)
	assert.Equal(t, "hello", string(textTokens[0].Term))

	keywordTokens := an.For("category").Analyze([]byte("Science Fiction"))
	require.Len(t, keywordTokens, 1)
	assert.Equal(t, "Science Fiction", string(keywordTokens[0].Term))
}
