package model

// Media types carried in document metadata.
const (
	MediaText    = "text"
	MediaAudio   = "audio"
	MediaYoutube = "youtube"
)

// DocMetadata describes where a retrieved passage came from.
type DocMetadata struct {
	Library   string  `json:"library"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Source    string  `json:"source,omitempty"`
	URL       string  `json:"url,omitempty"`
	StartTime float64 `json:"start_time,omitempty"`
	FileHash  string  `json:"file_hash,omitempty"`
	Filename  string  `json:"filename,omitempty"`
}

// RetrievedDocument is one similarity-search hit. Documents are created per
// request and never persisted by this subsystem.
type RetrievedDocument struct {
	PageContent string      `json:"pageContent"`
	Metadata    DocMetadata `json:"metadata"`
	Score       float32     `json:"score,omitempty"`
}
