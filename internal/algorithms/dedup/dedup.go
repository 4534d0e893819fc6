// Package dedup implements Algorithm A (Bulk Dedup), grounded on
// original_source/algorithms/bulk_dedup.py: exact-duplicate grouping by
// SHA-256 equality plus an assistive near-duplicate pass over images using
// a deterministic 64-bit average-hash perceptual fingerprint.
package dedup

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sort"

	"github.com/evident-labs/evidcore/internal/algorithm"
	"github.com/evident-labs/evidcore/internal/model"
)

const (
	defaultSimilarityThreshold = 0.85
	defaultHashSize            = 8
)

var imageFileTypes = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "bmp": true, "tiff": true, "webp": true, "gif": true,
}

// Algorithm is Algorithm A.
type Algorithm struct{}

func (Algorithm) ID() string          { return "bulk_dedup" }
func (Algorithm) Version() string     { return "1.0.0" }
func (Algorithm) Description() string { return "exact and perceptual near-duplicate detection across a case's evidence" }

type itemRef struct {
	EvidenceID       int64  `json:"evidence_id"`
	OriginalFilename string `json:"original_filename"`
	FileType         string `json:"file_type,omitempty"`
	SHA256           string `json:"hash_sha256"`
}

func (a Algorithm) Execute(rc algorithm.Context, params model.AlgorithmParams) (map[string]any, error) {
	if _, err := rc.Relational.LoadCase(rc.Ctx, params.CaseID, params.TenantID); err != nil {
		return nil, err
	}
	items, err := rc.Relational.ListLinkedEvidence(rc.Ctx, params.CaseID)
	if err != nil {
		return nil, err
	}

	nearDedup := boolExtra(params.Extra, "near_dedup", true)
	threshold := floatExtra(params.Extra, "similarity_threshold", defaultSimilarityThreshold)
	hashSize := intExtra(params.Extra, "hash_size", defaultHashSize)

	hashGroups := make(map[string][]itemRef)
	var inputHashes []string
	for _, it := range items {
		if it.SHA256 == "" {
			continue
		}
		inputHashes = append(inputHashes, it.SHA256)
		hashGroups[it.SHA256] = append(hashGroups[it.SHA256], itemRef{
			EvidenceID: it.EvidenceItemID, OriginalFilename: it.OriginalFilename,
			FileType: it.FileType, SHA256: it.SHA256,
		})
	}

	var exactGroups []map[string]any
	for h, group := range hashGroups {
		if len(group) > 1 {
			sort.Slice(group, func(i, j int) bool { return group[i].EvidenceID < group[j].EvidenceID })
			exactGroups = append(exactGroups, map[string]any{
				"hash": h, "count": len(group), "items": group,
			})
		}
	}
	sort.Slice(exactGroups, func(i, j int) bool {
		return exactGroups[i]["hash"].(string) < exactGroups[j]["hash"].(string)
	})

	var nearDuplicates []map[string]any
	if nearDedup {
		type phashed struct {
			ref   itemRef
			phash string
		}
		var phashes []phashed
		for _, it := range items {
			if it.FileType == "" || !imageFileTypes[lower(it.FileType)] || rc.Store == nil {
				continue
			}
			manifest, err := rc.Store.LoadManifest(it.EvidenceID)
			if err != nil {
				continue
			}
			data, err := rc.Store.Get(originalKeyFor(manifest))
			if err != nil {
				continue
			}
			ph, ok := averageHash(data, hashSize)
			if !ok {
				continue
			}
			phashes = append(phashes, phashed{
				ref: itemRef{EvidenceID: it.EvidenceItemID, OriginalFilename: it.OriginalFilename, SHA256: it.SHA256},
				phash: ph,
			})
		}
		totalBits := hashSize * hashSize
		for i := 0; i < len(phashes); i++ {
			for j := i + 1; j < len(phashes); j++ {
				dist := hammingDistance(phashes[i].phash, phashes[j].phash)
				if dist < 0 {
					continue
				}
				score := similarityScore(dist, totalBits)
				if score >= threshold {
					nearDuplicates = append(nearDuplicates, map[string]any{
						"item_a": phashes[i].ref, "item_b": phashes[j].ref,
						"hamming_distance": dist, "similarity_score": score,
						"method": "average_hash", "method_label": "assistive",
						"hash_size_bits": totalBits,
						"perceptual_hash_a": phashes[i].phash, "perceptual_hash_b": phashes[j].phash,
					})
				}
			}
		}
	}

	report := map[string]any{
		"case_id":                params.CaseID,
		"total_items":            len(items),
		"unique_hashes":          len(hashGroups),
		"exact_duplicate_groups": len(exactGroups),
		"exact_duplicates":       exactGroups,
		"near_duplicates":        nearDuplicates,
		"parameters": map[string]any{
			"near_dedup": nearDedup, "similarity_threshold": threshold, "hash_size": hashSize,
		},
	}
	report["output_hashes"] = []string{}
	return report, nil
}

// originalKeyFor mirrors evidence.Store's unexported key layout; algorithms
// resolve it via the manifest's own recorded sha256/filename rather than
// reaching into evidence's internals.
func originalKeyFor(m *model.EvidenceManifest) string {
	return "originals/" + m.SHA256[:4] + "/" + m.SHA256 + "/" + m.OriginalFilename
}

// averageHash computes a deterministic 64-bit (for hashSize=8) perceptual
// fingerprint: decode, grayscale, box-average resize to hashSize x hashSize,
// threshold each cell against the grid mean, pack bits to hex. This uses a
// box-average resize rather than Lanczos resampling — both are
// deterministic pixel functions of the same bytes, and the result is never
// presented as anything but an assistive similarity signal.
func averageHash(data []byte, hashSize int) (string, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return "", false
	}

	gray := make([]float64, hashSize*hashSize)
	counts := make([]int, hashSize*hashSize)
	for y := 0; y < h; y++ {
		cellY := y * hashSize / h
		for x := 0; x < w; x++ {
			cellX := x * hashSize / w
			idx := cellY*hashSize + cellX
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			lum := color.GrayModel.Convert(color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xffff}).(color.Gray).Y
			gray[idx] += float64(lum)
			counts[idx]++
		}
	}

	var sum float64
	pixels := make([]float64, hashSize*hashSize)
	for i := range gray {
		if counts[i] > 0 {
			pixels[i] = gray[i] / float64(counts[i])
		}
		sum += pixels[i]
	}
	mean := sum / float64(len(pixels))

	bits := make([]byte, len(pixels))
	for i, p := range pixels {
		if p > mean {
			bits[i] = '1'
		} else {
			bits[i] = '0'
		}
	}
	return bitsToHex(bits), true
}

func bitsToHex(bits []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 0, (len(bits)+3)/4)
	for i := 0; i < len(bits); i += 4 {
		end := i + 4
		var nibble byte
		for j := i; j < end; j++ {
			nibble <<= 1
			if j < len(bits) && bits[j] == '1' {
				nibble |= 1
			}
		}
		out = append(out, hexDigits[nibble])
	}
	return string(out)
}

func hammingDistance(a, b string) int {
	if len(a) != len(b) {
		return -1
	}
	dist := 0
	for i := range a {
		av := hexNibble(a[i])
		bv := hexNibble(b[i])
		x := av ^ bv
		for x != 0 {
			dist += int(x & 1)
			x >>= 1
		}
	}
	return dist
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

func similarityScore(hamming, totalBits int) float64 {
	if totalBits == 0 {
		return 0
	}
	return roundTo4(1.0 - float64(hamming)/float64(totalBits))
}

func roundTo4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

func boolExtra(extra map[string]any, key string, def bool) bool {
	if v, ok := extra[key].(bool); ok {
		return v
	}
	return def
}

func floatExtra(extra map[string]any, key string, def float64) float64 {
	if v, ok := extra[key].(float64); ok {
		return v
	}
	return def
}

func intExtra(extra map[string]any, key string, def int) int {
	if v, ok := extra[key].(float64); ok {
		return int(v)
	}
	return def
}
