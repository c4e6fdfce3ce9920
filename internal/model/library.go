package model

// Library is a named partition of the knowledge corpus. Weight controls the
// share of the total source budget the allocator assigns to it; a nil weight
// means "unspecified" and falls back to an even split across libraries.
type Library struct {
	Name   string   `json:"name"`
	Weight *float64 `json:"weight,omitempty"`
}

// Allocation is the integer source quota computed for one library.
type Allocation struct {
	Name    string `json:"name"`
	Sources int    `json:"sources"`
}
