package entity

// UploadResponse is returned after a file has been fully indexed.
type UploadResponse struct {
	Success       bool           `json:"success"`
	Source        string         `json:"source"`
	Format        string         `json:"format"`
	ChunksIndexed int            `json:"chunks_indexed"`
	SizeBytes     int64          `json:"size_bytes"`
	Warnings      []ChunkFailure `json:"warnings,omitempty"`
}

// SourceSummary is one entry of the source listing.
type SourceSummary struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Format    string `json:"format"`
	Chunks    int    `json:"chunks"`
	SizeBytes int64  `json:"size_bytes"`
	IndexedAt string `json:"indexed_at"`
}

// ListSourcesResponse lists all indexed sources with aggregate totals.
type ListSourcesResponse struct {
	Sources      []SourceSummary `json:"sources"`
	TotalSources int             `json:"total_sources"`
	TotalChunks  int             `json:"total_chunks"`
}

// DeleteSourceResponse reports a cascading source deletion.
type DeleteSourceResponse struct {
	Success bool   `json:"success"`
	Deleted string `json:"deleted"`
	Chunks  int    `json:"chunks_deleted"`
}

// StatsResponse reports aggregate index statistics.
type StatsResponse struct {
	TotalSources int `json:"total_sources"`
	TotalChunks  int `json:"total_chunks"`
}
