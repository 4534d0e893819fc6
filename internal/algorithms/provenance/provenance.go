// Package provenance implements Algorithm B (Provenance Graph), grounded on
// original_source/algorithms/provenance_graph.py: a read-only, deterministic
// DAG over originals, derivatives, and export artifacts for a case.
package provenance

import (
	"sort"
	"strings"
	"time"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/canonical"
	"github.com/evident-labs/evidcore/internal/model"
)

// Algorithm is Algorithm B.
type Algorithm struct{}

func (Algorithm) ID() string          { return "provenance_graph" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "builds the original -> derivative -> export provenance DAG for a case" }

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}

	var nodes []map[string]any
	var edges []map[string]any
	var inputHashes []string

	for _, it := range items {
		if it.SHA256 == "" {
			continue
		}
		inputHashes = append(inputHashes, it.SHA256)

		nodes = append(nodes, map[string]any{
			"hash": it.SHA256, "type": "original", "evidence_item_id": it.EvidenceItemID,
			"evidence_id": it.EvidenceID, "original_filename": it.OriginalFilename,
			"file_type": it.FileType, "file_size_bytes": it.FileSizeBytes,
		})

		if it.EvidenceID != "" && rc.Store != nil {
			manifest, err := rc.Store.LoadManifest(it.EvidenceID)
			if err == nil {
				for _, d := range manifest.Derivatives {
					nodes = append(nodes, map[string]any{
						"hash": d.SHA256, "type": "derivative", "derivative_type": d.DerivativeType,
						"filename": d.Filename, "size_bytes": d.SizeBytes, "parameters": d.Parameters,
					})
					edges = append(edges, map[string]any{
						"source_hash": it.SHA256, "target_hash": d.SHA256,
						"transformation": d.DerivativeType, "parameters": d.Parameters,
					})
				}
			}
		}

		custody, err := rc.Relational.ListCustody(rc.Ctx, params.CaseID, []int64{it.EvidenceItemID}, time.Time{})
		if err == nil {
			for _, entry := range custody {
				if !strings.Contains(entry.Action, "export") {
					continue
				}
				if entry.HashAfter == "" || entry.HashAfter == it.SHA256 {
					continue
				}
				nodes = append(nodes, map[string]any{
					"hash": entry.HashAfter, "type": "export", "action": entry.Action,
					"actor": entry.ActorName,
				})
				edges = append(edges, map[string]any{
					"source_hash": it.SHA256, "target_hash": entry.HashAfter, "transformation": entry.Action,
				})
			}
		}
	}

	seen := make(map[string]bool)
	var uniqueNodes []map[string]any
	for _, n := range nodes {
		h := n["hash"].(string)
		if seen[h] {
			continue
		}
		seen[h] = true
		uniqueNodes = append(uniqueNodes, n)
	}
	sort.Slice(uniqueNodes, func(i, j int) bool { return uniqueNodes[i]["hash"].(string) < uniqueNodes[j]["hash"].(string) })
	sort.Slice(edges, func(i, j int) bool {
		si, sj := edges[i]["source_hash"].(string), edges[j]["source_hash"].(string)
		if si != sj {
			return si < sj
		}
		return edges[i]["target_hash"].(string) < edges[j]["target_hash"].(string)
	})

	typeCounts := map[string]int{}
	for _, n := range uniqueNodes {
		typeCounts[n["type"].(string)]++
	}

	graph := map[string]any{
		"case_id": params.CaseID,
		"nodes":   uniqueNodes,
		"edges":   edges,
		"statistics": map[string]any{
			"total_nodes": len(uniqueNodes), "total_edges": len(edges),
			"originals": typeCounts["original"], "derivatives": typeCounts["derivative"], "exports": typeCounts["export"],
		},
	}
	graphHash, err := canonical.Hash(graph)
	if err != nil {
		return nil, err
	}
	graph["graph_hash"] = graphHash
	graph["output_hashes"] = []string{graphHash}
	graph["input_hashes"] = inputHashes
	return graph, nil
}
