package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mironmax/mcp-memory-server-concurrent/pkg/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStorePath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "memory.jsonl")
}

func TestLoad_MissingFileReturnsEmptyGraph(t *testing.T) {
	s := New(tempStorePath(t))
	st, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Entities)
	assert.Empty(t, st.Relations)
}

func TestAtomicReplace_CreatesParentDirAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "memory.jsonl")
	s := New(path)

	st := graph.New()
	now := int64(1000)
	st.Entities = []*graph.Entity{{Name: "a", EntityType: "t", Observations: []string{"x"}, CreatedAt: &now, UpdatedAt: &now}}

	require.NoError(t, s.AtomicReplace(Serialize(st)))

	_, err := os.Stat(path)
	require.NoError(t, err)
}

func TestRoundTrip_PreservesOrderAndFields(t *testing.T) {
	s := New(tempStorePath(t))

	created := int64(100)
	updated := int64(200)
	st := graph.New()
	st.Entities = []*graph.Entity{
		{Name: "b", EntityType: "t2", Observations: []string{"o1"}},
		{Name: "a", EntityType: "t1", Observations: []string{"o2", "o3"}, CreatedAt: &created, UpdatedAt: &updated},
	}
	st.Relations = []graph.Relation{
		{From: "b", To: "a", RelationType: "rel1"},
		{From: "a", To: "b", RelationType: "rel2"},
	}

	require.NoError(t, s.AtomicReplace(Serialize(st)))

	loaded, err := s.Load()
	require.NoError(t, err)

	require.Len(t, loaded.Entities, 2)
	assert.Equal(t, "b", loaded.Entities[0].Name)
	assert.Equal(t, "a", loaded.Entities[1].Name)
	assert.Nil(t, loaded.Entities[0].CreatedAt)
	require.NotNil(t, loaded.Entities[1].CreatedAt)
	assert.Equal(t, created, *loaded.Entities[1].CreatedAt)
	assert.Equal(t, updated, *loaded.Entities[1].UpdatedAt)

	require.Len(t, loaded.Relations, 2)
	assert.Equal(t, graph.Relation{From: "b", To: "a", RelationType: "rel1"}, loaded.Relations[0])
	assert.Equal(t, graph.Relation{From: "a", To: "b", RelationType: "rel2"}, loaded.Relations[1])
}

func TestLoad_BlankLinesTolerated(t *testing.T) {
	path := tempStorePath(t)
	content := "\n{\"type\":\"entity\",\"name\":\"a\",\"entityType\":\"t\",\"observations\":[]}\n\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s := New(path)
	st, err := s.Load()
	require.NoError(t, err)
	require.Len(t, st.Entities, 1)
	assert.Equal(t, "a", st.Entities[0].Name)
}

func TestLoad_MalformedRecordIsStrict(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte("not json at all\n"), 0o644))

	s := New(path)
	_, err := s.Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

func TestLoad_UnknownRecordTypeIsMalformed(t *testing.T) {
	path := tempStorePath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"bogus"}`+"\n"), 0o644))

	s := New(path)
	_, err := s.Load()
	assert.ErrorIs(t, err, ErrMalformedRecord)
}

// TestAtomicReplace_ReaderNeverSeesTornFile exercises property 4: a
// concurrent reader observes either the pre- or post-replace content, never
// a mix, across many interleaved writes.
func TestAtomicReplace_ReaderNeverSeesTornFile(t *testing.T) {
	path := tempStorePath(t)
	s := New(path)

	// Seed with a valid, parseable initial state.
	st0 := graph.New()
	st0.Entities = []*graph.Entity{{Name: "seed", EntityType: "t", Observations: nil}}
	require.NoError(t, s.AtomicReplace(Serialize(st0)))

	const rounds = 25
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			st := graph.New()
			st.Entities = []*graph.Entity{{Name: "v", EntityType: "t", Observations: []string{}}}
			_ = s.AtomicReplace(Serialize(st))
		}
		close(stop)
	}()

	errs := 0
	for {
		select {
		case <-stop:
			wg.Wait()
			assert.Zero(t, errs)
			return
		default:
			if _, err := s.Load(); err != nil {
				errs++
			}
		}
	}
}
