// Package ingestion defines the request and response bodies of the document
// ingestion service and the Kafka event schemas shared by the ingestion,
// indexer and search services.
package ingestion

import "time"

// IngestRequest is the JSON body accepted by POST /documents.
type IngestRequest struct {
	Location string   `json:"location"`
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	ModTime  int64    `json:"mtime"`
	Labels   []string `json:"labels,omitempty"`
	DocType  string   `json:"doc_type,omitempty"`
}

// IngestResponse reports what happened to one document. Status is
// "accepted" when the stored copy changed and "unchanged" otherwise.
type IngestResponse struct {
	Location string `json:"location"`
	Status   string `json:"status"`
}

const (
	StatusAccepted  = "accepted"
	StatusUnchanged = "unchanged"
)

// IngestEvent is published to the document-ingest topic after a document
// was stored and needs indexing.
type IngestEvent struct {
	Location   string    `json:"location"`
	ModTime    int64     `json:"mtime"`
	IngestedAt time.Time `json:"ingested_at"`
}

// SegmentEvent is published to the segment-published topic when a segment
// becomes visible, either from a flush or a merge.
type SegmentEvent struct {
	Segment     string    `json:"segment"`
	Docs        int       `json:"docs"`
	PublishedAt time.Time `json:"published_at"`
}
