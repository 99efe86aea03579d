package mcp

// SearchInput defines the input schema for the search tool.
type SearchInput struct {
	Index string `json:"index" jsonschema:"name of the index to search"`
	Query string `json:"query,omitempty" jsonschema:"query string, e.g. 'title:dune AND year:>=1960'; empty matches every record"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of records, default 10"`
}

// SearchOutput defines the output schema for the search tool.
type SearchOutput struct {
	Records []map[string]any `json:"records" jsonschema:"matching records with their stored fields, _id and _score"`
}

// GroupByInput defines the input schema for the group_by tool.
type GroupByInput struct {
	Index string `json:"index" jsonschema:"name of the index to query"`
	Field string `json:"field" jsonschema:"indexed string field whose distinct values are returned"`
	Query string `json:"query,omitempty" jsonschema:"query string restricting the records; empty matches every record"`
}

// GroupByOutput defines the output schema for the group_by tool.
type GroupByOutput struct {
	Keys []string `json:"keys" jsonschema:"distinct field values, sorted"`
}

// ListIndicesInput defines the input schema for the list_indices tool (no parameters).
type ListIndicesInput struct{}

// ListIndicesOutput defines the output schema for the list_indices tool.
type ListIndicesOutput struct {
	Indices []IndexOutput `json:"indices"`
}

// IndexOutput describes one index.
type IndexOutput struct {
	Name      string `json:"name"`
	State     string `json:"state" jsonschema:"lifecycle state: created, active or unloading"`
	Documents uint64 `json:"documents"`
	Mapped    bool   `json:"mapped" jsonschema:"true when the index has a field mapping"`
}

// GetMappingInput defines the input schema for the get_mapping tool.
type GetMappingInput struct {
	Index string `json:"index" jsonschema:"name of the index"`
}

// GetMappingOutput defines the output schema for the get_mapping tool.
type GetMappingOutput struct {
	Fields []FieldOutput `json:"fields"`
}

// FieldOutput describes one mapped field.
type FieldOutput struct {
	Name    string `json:"name"`
	Type    string `json:"type" jsonschema:"string, text, int32, double or single"`
	Indexed bool   `json:"indexed"`
	Stored  bool   `json:"stored"`
	Primary bool   `json:"primary,omitempty" jsonschema:"default field for unqualified query terms"`
}

// IndexDocumentsInput defines the input schema for the index_documents tool.
type IndexDocumentsInput struct {
	Index     string           `json:"index" jsonschema:"name of a mapped index"`
	Documents []map[string]any `json:"documents" jsonschema:"JSON objects keyed by mapped field names"`
}

// IndexDocumentsOutput defines the output schema for the index_documents tool.
type IndexDocumentsOutput struct {
	Indexed int             `json:"indexed"`
	Failed  int             `json:"failed"`
	Errors  []DocumentError `json:"errors,omitempty" jsonschema:"rejected documents"`
}

// DocumentError reports one rejected document.
type DocumentError struct {
	Position int    `json:"position" jsonschema:"zero-based position in the submitted documents"`
	Error    string `json:"error"`
}
