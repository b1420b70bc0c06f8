package search

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/pders01/shelf/internal/debuglog"
	"github.com/pders01/shelf/internal/storage"
)

// BleveEngine searches the history through a full-text index.
type BleveEngine struct {
	store *storage.Store
	idx   bleve.Index
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes the
// current history. An empty indexPath builds an in-memory index.
func NewBleveEngine(store *storage.Store, indexPath string) (*BleveEngine, error) {
	var idx bleve.Index
	var err error

	if indexPath == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(indexPath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("creating index directory: %w", mkErr)
		}
		idx, err = bleve.Open(indexPath)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(indexPath, buildIndexMapping())
		}
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", indexPath, err)
		}
	}

	be := &BleveEngine{store: store, idx: idx}
	if err := be.reindexAll(); err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing history: %w", err)
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	title := bleve.NewTextFieldMapping()
	title.Analyzer = standard.Name
	title.Store = true
	title.IncludeTermVectors = true

	authors := bleve.NewTextFieldMapping()
	authors.Analyzer = standard.Name
	authors.Store = true

	subjects := bleve.NewTextFieldMapping()
	subjects.Analyzer = standard.Name
	subjects.Store = false

	dm.AddFieldMappingsAt("title", title)
	dm.AddFieldMappingsAt("authors", authors)
	dm.AddFieldMappingsAt("subjects", subjects)

	im.DefaultMapping = dm
	return im
}

func entryDoc(e *storage.HistoryEntry) map[string]any {
	return map[string]any{
		"title":    e.Title,
		"authors":  e.Authors,
		"subjects": strings.Join(e.Subjects, "; "),
	}
}

func (b *BleveEngine) reindexAll() error {
	entries, err := b.store.History(0)
	if err != nil {
		return err
	}

	batch := b.idx.NewBatch()
	for _, e := range entries {
		if err := batch.Index(docIDForEntry(e.ID), entryDoc(e)); err != nil {
			return err
		}
	}
	return b.idx.Batch(batch)
}

func (b *BleveEngine) Search(query string, limit int) ([]*Result, error) {
	if len(strings.TrimSpace(query)) < 2 {
		return []*Result{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	fields := []struct {
		name  string
		boost float64
	}{
		{"title", 4.0},
		{"authors", 3.0},
		{"subjects", 1.5},
	}

	var qs []bleveQuery.Query
	for _, tok := range tokenize(query) {
		for _, f := range fields {
			mq := bleve.NewMatchQuery(tok)
			mq.SetField(f.name)
			mq.SetBoost(f.boost)
			qs = append(qs, mq)

			pq := bleve.NewPrefixQuery(tok)
			pq.SetField(f.name)
			pq.SetBoost(f.boost * 0.85)
			qs = append(qs, pq)
		}
	}
	if len(qs) == 0 {
		return []*Result{}, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(qs...), limit, 0, false)
	req.Fields = []string{"title", "authors"}
	req.IncludeLocations = true
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}

	out := make([]*Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, ok := entryIDFromDoc(h.ID)
		if !ok {
			continue
		}
		entry, err := b.store.GetHistoryEntry(id)
		if err != nil {
			// index is ahead of the database; drop the stale doc
			debuglog.Debugf("search hit %s has no history entry: %v", h.ID, err)
			continue
		}
		r := &Result{Entry: entry, Score: h.Score}
		for field := range h.Locations {
			r.Matches = append(r.Matches, Match{Field: field})
		}
		out = append(out, r)
	}
	return out, nil
}

// OnHistoryUpdated indexes the provided entry.
func (b *BleveEngine) OnHistoryUpdated(entry *storage.HistoryEntry) {
	if entry == nil {
		return
	}
	if err := b.idx.Index(docIDForEntry(entry.ID), entryDoc(entry)); err != nil {
		debuglog.Errorf("indexing history entry %d: %v", entry.ID, err)
	}
}

// OnHistoryDeleted removes one entry, or rebuilds the index when id is 0.
func (b *BleveEngine) OnHistoryDeleted(id int) {
	if id != 0 {
		_ = b.idx.Delete(docIDForEntry(id))
		return
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), 1000, 0, false)
	for {
		res, err := b.idx.Search(req)
		if err != nil || len(res.Hits) == 0 {
			return
		}
		batch := b.idx.NewBatch()
		for _, h := range res.Hits {
			batch.Delete(h.ID)
		}
		if err := b.idx.Batch(batch); err != nil {
			debuglog.Errorf("clearing search index: %v", err)
			return
		}
	}
}

// DocCount reports total documents in the index.
func (b *BleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

func (b *BleveEngine) Close() error {
	return b.idx.Close()
}

func docIDForEntry(id int) string { return "book:" + strconv.Itoa(id) }

func entryIDFromDoc(doc string) (int, bool) {
	rest, ok := strings.CutPrefix(doc, "book:")
	if !ok {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	return id, err == nil
}
