package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/agentplane/core/pkg/models"
)

// SearchConfig tunes hybrid fusion, temporal decay, and MMR
// re-ranking. NewEngine substitutes DefaultSearchConfig as a whole when
// HalfLifeDays is not positive, and uses 50 when CandidateK is not
// positive; other zero fields are kept as given (mmrRerank treats a
// non-positive MMRLambda as 0.5).
type SearchConfig struct {
	VectorWeight float64 // alpha
	BM25Weight   float64 // beta
	HalfLifeDays float64
	MMRLambda    float64 // lambda; 1 disables diversity penalty
	CandidateK   int     // how many candidates each pass pulls before fusion
}

// DefaultSearchConfig matches the defaults: alpha=0.7, beta=0.3,
// half-life 30 days, lambda 0.5.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{VectorWeight: 0.7, BM25Weight: 0.3, HalfLifeDays: 30, MMRLambda: 0.5, CandidateK: 50}
}

// SearchRequest is a single hybrid-search query.
type SearchRequest struct {
	Query         string
	QueryEmbedding []float32
	AgentID       string
	SessionID     string
	MinImportance float64
	DateFrom      time.Time
	DateTo        time.Time
	TopK          int
}

// SearchResult pairs a chunk with its final fused, decayed, MMR score.
type SearchResult struct {
	Chunk models.MemoryChunk `json:"chunk"`
	Score float64            `json:"score"`
}

// Engine runs hybrid search over a Store.
type Engine struct {
	store  *Store
	config SearchConfig
}

// NewEngine builds a search Engine backed by store.
func NewEngine(store *Store, cfg SearchConfig) *Engine {
	if cfg.HalfLifeDays <= 0 {
		cfg = DefaultSearchConfig()
	}
	if cfg.CandidateK <= 0 {
		cfg.CandidateK = 50
	}
	return &Engine{store: store, config: cfg}
}

// Search runs the hybrid pipeline: BM25 candidates + vector candidates
// (min-max normalized within each list), fused by weight, decayed by
// age, and re-ranked by MMR. The request's filters scope both candidate
// passes, so every result already satisfies them.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	topK := req.TopK
	if topK <= 0 {
		topK = 10
	}
	filter := candidateFilter{
		AgentID:       req.AgentID,
		SessionID:     req.SessionID,
		MinImportance: req.MinImportance,
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
	}

	bm25, err := e.store.bm25Candidates(ctx, req.Query, filter, e.config.CandidateK)
	if err != nil {
		return nil, err
	}
	normalize(bm25)

	var vector []scoredChunk
	if len(req.QueryEmbedding) > 0 {
		pool, err := e.store.allCandidates(ctx, filter)
		if err != nil {
			return nil, err
		}
		for _, c := range pool {
			if len(c.Embedding) == 0 {
				continue
			}
			vector = append(vector, scoredChunk{Chunk: c, Score: float64(cosineSimilarity(req.QueryEmbedding, c.Embedding))})
		}
		sort.Slice(vector, func(i, j int) bool { return vector[i].Score > vector[j].Score })
		if len(vector) > e.config.CandidateK {
			vector = vector[:e.config.CandidateK]
		}
		normalize(vector)
	}

	merged := fuse(bm25, vector, e.config.VectorWeight, e.config.BM25Weight)
	applyDecay(merged, e.config.HalfLifeDays)

	ranked := mmrRerank(merged, e.config.MMRLambda, topK)

	results := make([]SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, SearchResult{Chunk: r.Chunk, Score: r.Score})
	}
	return results, nil
}

// normalize min-max scales scores in place to [0,1]. A list with a
// single element or zero spread collapses to 1 for every entry.
func normalize(items []scoredChunk) {
	if len(items) == 0 {
		return
	}
	min, max := items[0].Score, items[0].Score
	for _, it := range items {
		if it.Score < min {
			min = it.Score
		}
		if it.Score > max {
			max = it.Score
		}
	}
	spread := max - min
	for i := range items {
		if spread == 0 {
			items[i].Score = 1
			continue
		}
		items[i].Score = (items[i].Score - min) / spread
	}
}

// fuse merges two normalized candidate lists keyed by chunk ID,
// weighting vector and BM25 contributions. A chunk present in only one
// list contributes only that list's weighted term.
func fuse(bm25, vector []scoredChunk, alpha, beta float64) []scoredChunk {
	byID := make(map[string]*scoredChunk, len(bm25)+len(vector))
	order := make([]string, 0, len(bm25)+len(vector))

	for _, it := range bm25 {
		id := it.Chunk.ID
		if _, ok := byID[id]; !ok {
			cp := it
			cp.Score = 0
			byID[id] = &cp
			order = append(order, id)
		}
		byID[id].Score += beta * it.Score
	}
	for _, it := range vector {
		id := it.Chunk.ID
		entry, ok := byID[id]
		if !ok {
			cp := it
			cp.Score = 0
			byID[id] = &cp
			order = append(order, id)
			entry = byID[id]
		}
		entry.Score += alpha * it.Score
	}

	out := make([]scoredChunk, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

// applyDecay multiplies each score by 2^(-days/halfLife), mutating in place.
func applyDecay(items []scoredChunk, halfLifeDays float64) {
	if halfLifeDays <= 0 {
		halfLifeDays = 30
	}
	now := time.Now()
	for i := range items {
		days := now.Sub(items[i].Chunk.CreatedAt).Hours() / 24
		if days < 0 {
			days = 0
		}
		decay := math.Pow(2, -days/halfLifeDays)
		items[i].Score *= decay
	}
}

// mmrRerank greedily selects up to topK items maximizing
// lambda*relevance - (1-lambda)*maxSim(selected, candidate), where
// similarity is Jaccard word-overlap against already-selected chunks.
func mmrRerank(items []scoredChunk, lambda float64, topK int) []scoredChunk {
	if lambda <= 0 {
		lambda = 0.5
	}
	if lambda > 1 {
		lambda = 1
	}
	pool := make([]scoredChunk, len(items))
	copy(pool, items)
	sort.Slice(pool, func(i, j int) bool { return pool[i].Score > pool[j].Score })

	var selected []scoredChunk
	for len(selected) < topK && len(pool) > 0 {
		bestIdx := -1
		bestMMR := math.Inf(-1)
		for i, cand := range pool {
			maxSim := 0.0
			for _, sel := range selected {
				sim := jaccardSimilarity(cand.Chunk.Content, sel.Chunk.Content)
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*cand.Score - (1-lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		chosen := pool[bestIdx]
		chosen.Score = bestMMR
		selected = append(selected, chosen)
		pool = append(pool[:bestIdx], pool[bestIdx+1:]...)
	}
	return selected
}

func jaccardSimilarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}
	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
