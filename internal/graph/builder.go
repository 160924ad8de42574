// Package graph builds the derived correlation graph: files connected
// to each other through shared signatures, XOR keys, suspicious strings
// and entropy bands. The graph is rebuilt from the store per request
// and never persisted.
package graph

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/metrics"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
)

const (
	defaultMaxNodes = 100
	// topStringGroups bounds how many shared suspicious strings become
	// nodes, by occurrence count.
	topStringGroups = 20

	highEntropyThreshold   = 7.5
	mediumEntropyThreshold = 7.0

	// manySuspiciousStrings is the density at which suspicious strings
	// become a file's dominant characteristic.
	manySuspiciousStrings = 5

	labelTruncateLen = 48
)

// Params selects what one graph build includes.
type Params struct {
	MinEntropy float64
	MaxNodes   int
	// Filters restricts which pattern-node kinds are materialized
	// (signature, xor_pattern, suspicious_string, entropy_cluster).
	// Empty means all.
	Filters []string
}

func (p Params) withDefaults() Params {
	if p.MaxNodes <= 0 {
		p.MaxNodes = defaultMaxNodes
	}
	return p
}

// cacheKey is stable across equivalent parameter sets.
func (p Params) cacheKey() string {
	filters := append([]string(nil), p.Filters...)
	sort.Strings(filters)
	return fmt.Sprintf("%.3f|%d|%s", p.MinEntropy, p.MaxNodes, strings.Join(filters, ","))
}

func (p Params) wants(kind models.NodeKind) bool {
	if len(p.Filters) == 0 {
		return true
	}
	for _, f := range p.Filters {
		if f == string(kind) {
			return true
		}
	}
	return false
}

// Builder materializes correlation graphs from the artifact store.
// Builds are cached briefly so dashboard refreshes do not hammer the
// datastore.
type Builder struct {
	store   *store.Store
	cache   *expirable.LRU[string, models.Graph]
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewBuilder constructs a Builder with a TTL-bounded build cache.
func NewBuilder(st *store.Store, cacheSize int, cacheTTL time.Duration, mc *metrics.Collector, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheSize <= 0 {
		cacheSize = 32
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Builder{
		store:   st,
		cache:   expirable.NewLRU[string, models.Graph](cacheSize, nil, cacheTTL),
		metrics: mc,
		logger:  logger,
	}
}

// Build selects candidate files and materializes the correlation graph.
// Output is deterministic for an unchanged store: node and edge ids are
// derived from content, never generated.
func (b *Builder) Build(ctx context.Context, params Params) (models.Graph, error) {
	params = params.withDefaults()

	key := params.cacheKey()
	if g, ok := b.cache.Get(key); ok {
		g.Stats.FromCache = true
		return g, nil
	}

	start := time.Now()
	g, err := b.build(ctx, params)
	if b.metrics != nil {
		if err != nil {
			b.metrics.RecordFailure(metrics.OpGraphBuild, time.Since(start))
		} else {
			b.metrics.RecordTiming(metrics.OpGraphBuild, time.Since(start))
		}
	}
	if err != nil {
		return models.Graph{}, err
	}

	g.Stats.BuildTimeMs = time.Since(start).Milliseconds()
	b.cache.Add(key, g)
	b.logger.Debug("correlation graph built",
		"files", g.Stats.FileCount,
		"nodes", g.Stats.NodeCount,
		"edges", g.Stats.EdgeCount,
		"build_ms", g.Stats.BuildTimeMs)
	return g, nil
}

func (b *Builder) build(ctx context.Context, params Params) (models.Graph, error) {
	files, err := b.store.CandidateFiles(ctx, params.MinEntropy, params.MaxNodes)
	if err != nil {
		return models.Graph{}, fmt.Errorf("select candidate files: %w", err)
	}

	fileIDs := make([]int64, len(files))
	for i, f := range files {
		fileIDs[i] = f.ID
	}
	activity, err := b.store.ActivityForFiles(ctx, fileIDs)
	if err != nil {
		return models.Graph{}, err
	}

	var g models.Graph
	for _, f := range files {
		g.Nodes = append(g.Nodes, fileNode(f, activity[f.ID]))
	}

	if params.wants(models.NodeSignature) {
		groups, err := b.store.SharedSignatures(ctx, fileIDs)
		if err != nil {
			return models.Graph{}, err
		}
		for _, grp := range groups {
			addGroup(&g, models.GraphNode{
				ID:    "sig:" + grp.SignatureName,
				Kind:  models.NodeSignature,
				Label: grp.SignatureName,
				Attributes: map[string]any{
					"file_count": len(grp.FileIDs),
				},
			}, grp.FileIDs, "matches_signature")
		}
	}

	if params.wants(models.NodeXorPattern) {
		groups, err := b.store.SharedXorKeys(ctx, fileIDs)
		if err != nil {
			return models.Graph{}, err
		}
		for _, grp := range groups {
			addGroup(&g, models.GraphNode{
				ID:    "xor:" + grp.KeyType + ":" + grp.Key,
				Kind:  models.NodeXorPattern,
				Label: "XOR " + truncate(grp.Key, labelTruncateLen),
				Attributes: map[string]any{
					"key":        grp.Key,
					"key_type":   grp.KeyType,
					"file_count": len(grp.FileIDs),
				},
			}, grp.FileIDs, "decrypts_with")
		}
	}

	if params.wants(models.NodeSuspiciousString) {
		groups, err := b.store.TopSharedSuspiciousStrings(ctx, fileIDs, topStringGroups)
		if err != nil {
			return models.Graph{}, err
		}
		for _, grp := range groups {
			addGroup(&g, models.GraphNode{
				ID:    fmt.Sprintf("str:%08x", contentHash(grp.Content)),
				Kind:  models.NodeSuspiciousString,
				Label: truncate(grp.Content, labelTruncateLen),
				Attributes: map[string]any{
					"content":     truncate(grp.Content, labelTruncateLen),
					"occurrences": grp.Occurrences,
					"file_count":  len(grp.FileIDs),
				},
			}, grp.FileIDs, "contains_string")
		}
	}

	if params.wants(models.NodeEntropyCluster) {
		addEntropyClusters(&g, files)
	}

	g.Stats = stats(g, len(files))
	return g, nil
}

// fileNode classifies the file by its dominant characteristic, in
// priority order: high entropy, XOR success, stego patterns, many
// suspicious strings, then plain.
func fileNode(f models.ForensicFile, a store.FileActivity) models.GraphNode {
	class := "file"
	switch {
	case f.Entropy > highEntropyThreshold:
		class = "high_entropy"
	case a.XorSuccess:
		class = "xor_decrypted"
	case a.StegoPatterns:
		class = "stego_suspect"
	case f.SuspiciousStrings >= manySuspiciousStrings:
		class = "suspicious_strings"
	}
	return models.GraphNode{
		ID:    fmt.Sprintf("file:%d", f.ID),
		Kind:  models.NodeFile,
		Label: filepath.Base(f.Path),
		Attributes: map[string]any{
			"file_id":            f.ID,
			"path":               f.Path,
			"size":               f.Size,
			"entropy":            f.Entropy,
			"is_binary":          f.IsBinary,
			"suspicious_strings": f.SuspiciousStrings,
			"classification":     class,
		},
	}
}

// addGroup materializes one pattern node plus its member edges. Group
// queries already guarantee >1 member, so the node has degree >= 2.
func addGroup(g *models.Graph, node models.GraphNode, memberIDs []int64, relation string) {
	g.Nodes = append(g.Nodes, node)
	for _, fileID := range memberIDs {
		source := fmt.Sprintf("file:%d", fileID)
		g.Edges = append(g.Edges, models.GraphEdge{
			ID:       "e:" + source + ":" + node.ID,
			Source:   source,
			Target:   node.ID,
			Relation: relation,
		})
	}
}

// addEntropyClusters buckets files into the three fixed entropy bands
// and materializes a cluster node per band with more than one member.
func addEntropyClusters(g *models.Graph, files []models.ForensicFile) {
	type band struct {
		id    string
		label string
		match func(e float64) bool
	}
	bands := []band{
		{"cluster:high", "entropy 7.5-8.0", func(e float64) bool { return e >= highEntropyThreshold }},
		{"cluster:medium", "entropy 7.0-7.5", func(e float64) bool { return e >= mediumEntropyThreshold && e < highEntropyThreshold }},
		{"cluster:low", "entropy 0.0-7.0", func(e float64) bool { return e < mediumEntropyThreshold }},
	}
	for _, bd := range bands {
		var members []int64
		for _, f := range files {
			if bd.match(f.Entropy) {
				members = append(members, f.ID)
			}
		}
		if len(members) < 2 {
			continue
		}
		addGroup(g, models.GraphNode{
			ID:    bd.id,
			Kind:  models.NodeEntropyCluster,
			Label: bd.label,
			Attributes: map[string]any{
				"file_count": len(members),
			},
		}, members, "in_entropy_band")
	}
}

func stats(g models.Graph, fileCount int) models.GraphStats {
	byKind := map[string]int{}
	for _, n := range g.Nodes {
		byKind[string(n.Kind)]++
	}
	return models.GraphStats{
		FileCount:   fileCount,
		NodeCount:   len(g.Nodes),
		EdgeCount:   len(g.Edges),
		NodesByKind: byKind,
	}
}

func contentHash(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
