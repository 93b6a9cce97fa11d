package entity

// Query is one retrieval-and-generation request. TopK and MaxTokens are
// optional; when zero they are filled in from the complexity classifier.
type Query struct {
	Text       string
	TopK       int
	MaxTokens  int
	ActivityID string
}

// SearchRequest is a retrieval-only request.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResult is one retrieved chunk in a search response.
type SearchResult struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Score    float64        `json:"score"`
}

// SearchResponse is the retrieval-only response.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Count   int            `json:"count"`
}

// RAGRequest is the body of both the blocking and streaming query endpoints.
type RAGRequest struct {
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// RAGResponse is the blocking query response.
type RAGResponse struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
	Timings  Timings  `json:"timings"`
}

// HealthResponse reports collaborator reachability.
type HealthResponse struct {
	Status      string `json:"status"`
	VectorStore bool   `json:"vector_store"`
	Generation  bool   `json:"generation"`
}
