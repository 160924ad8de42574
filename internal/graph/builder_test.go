package graph_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/FMLBeast/the-ark-forensic-platform/internal/graph"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/models"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store"
	"github.com/FMLBeast/the-ark-forensic-platform/internal/store/storetest"
)

func newBuilder(t *testing.T, files []storetest.File) *graph.Builder {
	t.Helper()
	st := storetest.Open(t, files)
	return graph.NewBuilder(st, 8, time.Minute, nil, nil)
}

func nodeIDs(g models.Graph) map[string]models.GraphNode {
	out := make(map[string]models.GraphNode, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = n
	}
	return out
}

func edgeSet(g models.Graph) map[string]bool {
	out := make(map[string]bool, len(g.Edges))
	for _, e := range g.Edges {
		out[e.Source+"->"+e.Target] = true
	}
	return out
}

// Two high-entropy ZIP files and one boring file: the boring file and
// any single-member groupings must not appear.
func TestBuildSharedSignatureScenario(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		{ID: 1, Path: "/carve/a.zip", Entropy: 7.9, Signatures: []string{"ZIP"}},
		{ID: 2, Path: "/carve/b.zip", Entropy: 7.8, Signatures: []string{"ZIP"}},
		{ID: 3, Path: "/carve/c.txt", Entropy: 3.0},
	})

	g, err := b.Build(context.Background(), graph.Params{MinEntropy: 7.0, MaxNodes: 100})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	nodes := nodeIDs(g)
	for _, want := range []string{"file:1", "file:2", "sig:ZIP", "cluster:high"} {
		if _, ok := nodes[want]; !ok {
			t.Errorf("missing node %s", want)
		}
	}
	if len(nodes) != 4 {
		t.Errorf("node count = %d, want 4 (got %v)", len(nodes), nodes)
	}
	if _, ok := nodes["file:3"]; ok {
		t.Error("low-entropy file 3 must not appear")
	}

	edges := edgeSet(g)
	for _, want := range []string{
		"file:1->sig:ZIP", "file:2->sig:ZIP",
		"file:1->cluster:high", "file:2->cluster:high",
	} {
		if !edges[want] {
			t.Errorf("missing edge %s", want)
		}
	}
	if len(g.Edges) != 4 {
		t.Errorf("edge count = %d, want 4", len(g.Edges))
	}

	if g.Stats.FileCount != 2 || g.Stats.NodeCount != 4 || g.Stats.EdgeCount != 4 {
		t.Errorf("stats = %+v, want 2 files / 4 nodes / 4 edges", g.Stats)
	}
}

func TestSignatureNodeNeedsTwoSharers(t *testing.T) {
	single := []storetest.File{
		{ID: 1, Path: "/carve/a.zip", Entropy: 7.9, Signatures: []string{"ZIP"}},
		{ID: 2, Path: "/carve/b.bin", Entropy: 7.8},
	}
	b := newBuilder(t, single)
	g, err := b.Build(context.Background(), graph.Params{MinEntropy: 7.0})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := nodeIDs(g)["sig:ZIP"]; ok {
		t.Error("signature node created with a single member")
	}

	// Rebuild with a second sharing file and the node must appear.
	both := append(single, storetest.File{ID: 3, Path: "/carve/c.zip", Entropy: 7.7, Signatures: []string{"ZIP"}})
	b2 := newBuilder(t, both)
	g2, err := b2.Build(context.Background(), graph.Params{MinEntropy: 7.0})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := nodeIDs(g2)["sig:ZIP"]; !ok {
		t.Error("signature node missing with two sharing files")
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		{ID: 1, Path: "/carve/a.bin", Entropy: 7.9, Signatures: []string{"ZIP", "PK_HEADER"},
			XorKeys: []storetest.XorKey{{Key: "2a", ReadableStrings: 12, PlaintextScore: 8.5}},
			Strings: []storetest.String{{Content: "password=hunter2", Suspicious: true}}},
		{ID: 2, Path: "/carve/b.bin", Entropy: 7.2, Signatures: []string{"ZIP"},
			XorKeys: []storetest.XorKey{{Key: "2a", ReadableStrings: 4, PlaintextScore: 7.0}},
			Strings: []storetest.String{{Content: "password=hunter2", Suspicious: true}}},
		{ID: 3, Path: "/carve/c.bin", Entropy: 7.6,
			Bitplanes: []storetest.Bitplane{{Channel: "red", BitPosition: 0, HasPatterns: true, Entropy: 0.9}}},
	})

	params := graph.Params{MinEntropy: 7.0, MaxNodes: 50}
	first, err := b.Build(context.Background(), params)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := b.Build(context.Background(), graph.Params{MinEntropy: 7.0, MaxNodes: 50})
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	if !second.Stats.FromCache {
		t.Error("second identical build should be served from cache")
	}
	if !reflect.DeepEqual(first.Nodes, second.Nodes) {
		t.Error("node sets differ between builds")
	}
	if !reflect.DeepEqual(first.Edges, second.Edges) {
		t.Error("edge sets differ between builds")
	}

	// A different parameter set misses the cache but stays internally
	// consistent.
	third, err := b.Build(context.Background(), graph.Params{MinEntropy: 0, MaxNodes: 50})
	if err != nil {
		t.Fatalf("third Build: %v", err)
	}
	if third.Stats.FromCache {
		t.Error("different params must not hit the cache")
	}
}

func TestFileClassificationPriority(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		// High entropy wins over everything else.
		{ID: 1, Path: "/carve/high.bin", Entropy: 7.9,
			XorKeys: []storetest.XorKey{{Key: "2a", ReadableStrings: 3, PlaintextScore: 7.0}}},
		// XOR success beats stego patterns.
		{ID: 2, Path: "/carve/xor.bin", Entropy: 6.0,
			XorKeys:   []storetest.XorKey{{Key: "2a", ReadableStrings: 3, PlaintextScore: 7.0}},
			Bitplanes: []storetest.Bitplane{{Channel: "red", BitPosition: 0, HasPatterns: true}}},
		// Stego patterns beat suspicious strings.
		{ID: 3, Path: "/carve/stego.bin", Entropy: 5.0,
			Bitplanes: []storetest.Bitplane{{Channel: "blue", BitPosition: 1, HasPatterns: true}}},
		// Many suspicious strings.
		{ID: 4, Path: "/carve/strings.txt", Entropy: 4.0,
			Strings: []storetest.String{
				{Content: "s1", Suspicious: true}, {Content: "s2", Suspicious: true},
				{Content: "s3", Suspicious: true}, {Content: "s4", Suspicious: true},
				{Content: "s5", Suspicious: true},
			}},
	})

	g, err := b.Build(context.Background(), graph.Params{MinEntropy: 7.0, MaxNodes: 50})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	nodes := nodeIDs(g)

	want := map[string]string{
		"file:1": "high_entropy",
		"file:2": "xor_decrypted",
		"file:3": "stego_suspect",
		"file:4": "suspicious_strings",
	}
	for id, class := range want {
		n, ok := nodes[id]
		if !ok {
			t.Errorf("missing node %s", id)
			continue
		}
		if got := n.Attributes["classification"]; got != class {
			t.Errorf("%s classification = %v, want %s", id, got, class)
		}
	}
}

func TestFiltersRestrictPatternNodes(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		{ID: 1, Path: "/carve/a.zip", Entropy: 7.9, Signatures: []string{"ZIP"}},
		{ID: 2, Path: "/carve/b.zip", Entropy: 7.8, Signatures: []string{"ZIP"}},
	})

	g, err := b.Build(context.Background(), graph.Params{
		MinEntropy: 7.0,
		Filters:    []string{string(models.NodeSignature)},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	nodes := nodeIDs(g)
	if _, ok := nodes["sig:ZIP"]; !ok {
		t.Error("signature node missing despite signature filter")
	}
	if _, ok := nodes["cluster:high"]; ok {
		t.Error("entropy cluster present despite signature-only filter")
	}
}

func TestSearchAcrossKinds(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		{ID: 1, Path: "/carve/invoice.zip", Entropy: 7.9, Signatures: []string{"ZIP"},
			XorKeys: []storetest.XorKey{{Key: "deadbeef", KeyType: "multi_byte", ReadableStrings: 2, PlaintextScore: 6.5}},
			Strings: []storetest.String{{Content: "invoice-password", Suspicious: true}}},
	})

	res, err := b.Search(context.Background(), "invoice", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Files) != 1 || len(res.Strings) != 1 {
		t.Errorf("files/strings = %d/%d, want 1/1", len(res.Files), len(res.Strings))
	}
	if len(res.Signatures) != 0 {
		t.Errorf("signatures = %d, want 0", len(res.Signatures))
	}

	res, err = b.Search(context.Background(), "dead", "xor_patterns")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.XorPatterns) != 1 {
		t.Errorf("xor_patterns = %d, want 1", len(res.XorPatterns))
	}
	if len(res.Files) != 0 {
		t.Error("kind-scoped search leaked file results")
	}

	res, err = b.Search(context.Background(), "", "")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Files)+len(res.Signatures)+len(res.XorPatterns)+len(res.Strings) != 0 {
		t.Error("empty term should return nothing")
	}
}

func TestPathBetween(t *testing.T) {
	b := newBuilder(t, []storetest.File{
		{ID: 1, Path: "/carve/a.bin", Entropy: 7.9, Signatures: []string{"ZIP"},
			XorKeys: []storetest.XorKey{{Key: "2a", ReadableStrings: 5, PlaintextScore: 8.0}},
			Strings: []storetest.String{{Content: "drop-site-7", Suspicious: true}}},
		{ID: 2, Path: "/carve/b.bin", Entropy: 7.2, Signatures: []string{"ZIP"},
			XorKeys: []storetest.XorKey{{Key: "2a", ReadableStrings: 2, PlaintextScore: 6.8}},
			Strings: []storetest.String{{Content: "drop-site-7", Suspicious: true}}},
		{ID: 3, Path: "/carve/c.bin", Entropy: 3.0},
	})

	conns, err := b.PathBetween(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("PathBetween: %v", err)
	}
	got := map[string]string{}
	for _, c := range conns {
		got[c.ConnectionType] = c.SharedElement
	}
	want := map[string]string{
		"shared_signature": "ZIP",
		"shared_xor_key":   "2a",
		"shared_string":    "drop-site-7",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("connections = %v, want %v", got, want)
	}

	conns, err = b.PathBetween(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("PathBetween unconnected: %v", err)
	}
	if len(conns) != 0 {
		t.Errorf("unconnected files returned %v", conns)
	}

	if _, err := b.PathBetween(context.Background(), 1, 99); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("unknown file err = %v, want store.ErrNotFound", err)
	}
}
