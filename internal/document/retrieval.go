package document

import (
	"sort"
	"strings"

	"github.com/gopherchat/gopherchat/internal/vectorstore"
)

const (
	// Rerank favors chunks near this length; very short and very long
	// chunks both carry less usable context.
	idealChunkWords = 200

	rerankKeywordWeight  = 0.5
	rerankLengthWeight   = 0.2
	rerankPositionWeight = 0.3
)

// Question words and connectives that suggest the query needs more than a
// nearest-neighbor lookup.
var complexQueryIndicators = []string{
	"how", "why", "what", "explain", "compare", "difference", "and", "or", "but",
}

// selectMethod picks a retrieval strategy from the shape of the query: short
// lookups go straight to similarity, question-like or long queries get the
// full rerank, everything else the hybrid middle ground.
func selectMethod(query string) string {
	words := strings.Fields(strings.ToLower(query))
	if len(words) <= 5 {
		return methodSimilarity
	}
	if len(words) > 10 {
		return methodRerank
	}
	for _, w := range words {
		for _, ind := range complexQueryIndicators {
			if w == ind {
				return methodRerank
			}
		}
	}
	return methodHybrid
}

// keywordScore is the fraction of distinct query words appearing in the chunk.
func keywordScore(query, content string) float64 {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return 0
	}
	seen := make(map[string]bool, len(words))
	lower := strings.ToLower(content)
	hits := 0
	for _, w := range words {
		if seen[w] {
			continue
		}
		seen[w] = true
		if strings.Contains(lower, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(seen))
}

func lengthScore(content string) float64 {
	n := len(strings.Fields(content))
	diff := float64(n - idealChunkWords)
	if diff < 0 {
		diff = -diff
	}
	score := 1 - diff/idealChunkWords
	if score < 0 {
		return 0
	}
	return score
}

// hybridRank reorders similarity candidates by keyword overlap, breaking ties
// on the original vector score, and keeps the top k.
func hybridRank(query string, candidates []vectorstore.DocSnippet, k int) []vectorstore.DocSnippet {
	type scored struct {
		snip  vectorstore.DocSnippet
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, scored{snip: c, score: keywordScore(query, c.Content)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].snip.Score > ranked[j].snip.Score
	})
	out := make([]vectorstore.DocSnippet, 0, k)
	for i := 0; i < len(ranked) && i < k; i++ {
		out = append(out, ranked[i].snip)
	}
	return out
}

// rerank blends keyword overlap, chunk length and the chunk's similarity rank
// into one weighted score. The position term is floored so a strong keyword
// match far down the candidate list can still surface.
func rerank(query string, candidates []vectorstore.DocSnippet, k int) []vectorstore.DocSnippet {
	type scored struct {
		snip  vectorstore.DocSnippet
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for i, c := range candidates {
		position := 1.0
		if len(candidates) > 1 {
			position = 1 - float64(i)/float64(len(candidates)-1)
		}
		if position < 0.5 {
			position = 0.5
		}
		score := rerankKeywordWeight*keywordScore(query, c.Content) +
			rerankLengthWeight*lengthScore(c.Content) +
			rerankPositionWeight*position
		ranked = append(ranked, scored{snip: c, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	out := make([]vectorstore.DocSnippet, 0, k)
	for i := 0; i < len(ranked) && i < k; i++ {
		out = append(out, ranked[i].snip)
	}
	return out
}
