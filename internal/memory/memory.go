package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"wfsync/entity"
	"wfsync/internal/identitystore"
)

// vectorWeight and keywordWeight set the hybrid recall blend: 0.7 cosine
// similarity against the query embedding, 0.3 keyword overlap, matching
// the weighting the reference backend declared but never actually applied
// (its recall was pure vector-distance ORDER BY) — see SPEC_FULL.md §4.D.
const (
	vectorWeight  = 0.7
	keywordWeight = 0.3
)

// Store is an agent-scoped memory: the central identitystore's memories
// table, narrowed to one agent_id, with an embedding provider for
// store/recall.
type Store struct {
	agentID  string
	backing  *identitystore.Store
	embedder EmbeddingProvider
}

func New(agentID string, backing *identitystore.Store, embedder EmbeddingProvider) *Store {
	return &Store{agentID: agentID, backing: backing, embedder: embedder}
}

// StoreEntry upserts content under key/category, embedding it first.
func (s *Store) StoreEntry(ctx context.Context, key, content string, category entity.MemoryCategory) error {
	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return err
	}
	entry := &entity.MemoryEntry{
		ID:        uuid.NewString(),
		AgentID:   s.agentID,
		Key:       key,
		Content:   content,
		Category:  category,
		Embedding: embedding,
		CreatedAt: time.Now().UTC(),
	}
	return s.backing.UpsertMemory(entry)
}

// Get returns the entry for key, or identitystore.ErrNotFound.
func (s *Store) Get(key string) (*entity.MemoryEntry, error) {
	return s.backing.GetMemory(s.agentID, key)
}

// List returns every entry in category (all categories if category is the
// zero value), most recent first.
func (s *Store) List(category entity.MemoryCategory) ([]entity.MemoryEntry, error) {
	cat := ""
	if category != (entity.MemoryCategory{}) {
		cat = category.String()
	}
	entries, err := s.backing.ListMemories(s.agentID, cat)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].CreatedAt.After(entries[j].CreatedAt) })
	return entries, nil
}

// Forget deletes the entry for key. Returns true if a row was deleted.
func (s *Store) Forget(key string) (bool, error) {
	err := s.backing.DeleteMemory(s.agentID, key)
	if err == identitystore.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

// Count returns the number of entries for this agent.
func (s *Store) Count() (int, error) {
	return s.backing.CountMemories(s.agentID)
}

// Recall scores every entry against query by a weighted blend of cosine
// similarity (against the query's embedding) and keyword overlap, and
// returns the top limit entries with Score populated, highest first. An
// entry whose key or content equals query exactly scores 1.
func (s *Store) Recall(ctx context.Context, query string, limit int) ([]entity.MemoryEntry, error) {
	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	all, err := s.backing.ListMemories(s.agentID, "")
	if err != nil {
		return nil, err
	}
	queryTerms := tokenize(query)

	scored := make([]entity.MemoryEntry, len(all))
	copy(scored, all)
	for i := range scored {
		var score float64
		if query == scored[i].Key || query == scored[i].Content {
			score = 1
		} else {
			vecScore := cosineSimilarity(queryEmbedding, scored[i].Embedding)
			kwScore := keywordOverlap(queryTerms, scored[i].Content, scored[i].Key)
			score = vectorWeight*vecScore + keywordWeight*kwScore
		}
		scored[i].Score = &score
	}

	sort.Slice(scored, func(i, j int) bool { return *scored[i].Score > *scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func tokenize(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// keywordOverlap is the fraction of query terms present in content or key,
// 0 when the query has no terms.
func keywordOverlap(queryTerms map[string]struct{}, content, key string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	matchTerms := tokenize(content)
	for term := range tokenize(key) {
		matchTerms[term] = struct{}{}
	}
	var hits int
	for term := range queryTerms {
		if _, ok := matchTerms[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(queryTerms))
}
