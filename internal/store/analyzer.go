package store

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/Aman-CERP/textdex/internal/schema"
)

// Analyzer resolves the text analysis pipeline of every field of one schema.
// Text fields use the standard analyzer (tokenize, lowercase, stop words);
// String fields use the keyword analyzer so the whole value is one term.
// Numeric fields have no analyzer.
type Analyzer struct {
	mapping      *mapping.IndexMappingImpl
	names        map[string]string
	analyzers    map[string]analysis.Analyzer
	defaultField string
}

// NewAnalyzer builds the analyzer for s. s must already be valid.
func NewAnalyzer(s *schema.Schema) (*Analyzer, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentStaticMapping()

	a := &Analyzer{
		mapping:   im,
		names:     make(map[string]string, len(s.Fields)),
		analyzers: make(map[string]analysis.Analyzer, len(s.Fields)),
	}

	for _, f := range s.Fields {
		var fm *mapping.FieldMapping
		switch f.Type {
		case schema.Text:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		case schema.String:
			fm = bleve.NewKeywordFieldMapping()
			fm.Analyzer = keyword.Name
		case schema.Int32, schema.Double, schema.Single:
			fm = bleve.NewNumericFieldMapping()
		default:
			return nil, fmt.Errorf("field %q: unsupported type %s", f.Name, f.Type)
		}
		fm.Index = f.Indexed
		fm.Store = f.Stored
		fm.DocValues = f.Indexed
		fm.IncludeInAll = false
		docMapping.AddFieldMappingsAt(f.Name, fm)

		if fm.Analyzer != "" {
			an := im.AnalyzerNamed(fm.Analyzer)
			if an == nil {
				return nil, fmt.Errorf("field %q: analyzer %q not registered", f.Name, fm.Analyzer)
			}
			a.names[f.Name] = fm.Analyzer
			a.analyzers[f.Name] = an
		}
		if f.Primary {
			a.defaultField = f.Name
		}
	}

	im.DefaultMapping = docMapping
	im.DefaultField = a.defaultField
	if err := im.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis mapping: %w", err)
	}
	return a, nil
}

// For returns the analyzer of field, or nil when the field is numeric or
// unknown.
func (a *Analyzer) For(field string) analysis.Analyzer {
	return a.analyzers[field]
}

// NameFor returns the registered analyzer name of field, or "" when the
// field has none.
func (a *Analyzer) NameFor(field string) string {
	return a.names[field]
}

// DefaultField returns the primary field queries target when no field is named.
func (a *Analyzer) DefaultField() string {
	return a.defaultField
}

// Mapping returns the bleve mapping equivalent of the schema.
func (a *Analyzer) Mapping() mapping.IndexMapping {
	return a.mapping
}
