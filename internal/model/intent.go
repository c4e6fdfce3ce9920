package model

// IntentEmbeddingSet is the per-site precomputed artifact consumed by the
// location intent classifier. Positive exemplars express geographic intent
// ("are there groups near me"), negative ones are ordinary questions. Loaded
// once per site and read-only afterwards.
type IntentEmbeddingSet struct {
	Model               string      `json:"model"`
	EmbeddingDimensions int         `json:"embeddingDimensions"`
	PositiveEmbeddings  [][]float32 `json:"positiveEmbeddings"`
	NegativeEmbeddings  [][]float32 `json:"negativeEmbeddings"`
}
