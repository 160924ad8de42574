package models

// NodeKind classifies a correlation graph node.
type NodeKind string

const (
	NodeFile             NodeKind = "file"
	NodeSignature        NodeKind = "signature"
	NodeXorPattern       NodeKind = "xor_pattern"
	NodeSuspiciousString NodeKind = "suspicious_string"
	NodeEntropyCluster   NodeKind = "entropy_cluster"
)

// GraphNode is one node of the derived correlation graph.
type GraphNode struct {
	ID         string         `json:"id"`
	Kind       NodeKind       `json:"kind"`
	Label      string         `json:"label"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// GraphEdge connects a file node to a shared-pattern node.
type GraphEdge struct {
	ID       string `json:"id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	Relation string `json:"relation"`
}

// GraphStats summarizes one built graph.
type GraphStats struct {
	FileCount   int            `json:"file_count"`
	NodeCount   int            `json:"node_count"`
	EdgeCount   int            `json:"edge_count"`
	NodesByKind map[string]int `json:"nodes_by_kind"`
	BuildTimeMs int64          `json:"build_time_ms"`
	FromCache   bool           `json:"from_cache"`
}

// Graph is the full result of one correlation graph build.
// It is a derived view over the store, rebuilt per request.
type Graph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
	Stats GraphStats  `json:"stats"`
}

// SearchResults groups substring matches by artifact kind.
type SearchResults struct {
	Files       []ForensicFile     `json:"files"`
	Signatures  []FileSignature    `json:"signatures"`
	XorPatterns []XorAttempt       `json:"xor_patterns"`
	Strings     []StringOccurrence `json:"strings"`
}

// PathConnection is one direct link between two files: a shared
// signature, XOR key, or suspicious string.
type PathConnection struct {
	ConnectionType string `json:"connection_type"`
	SharedElement  string `json:"shared_element"`
}
