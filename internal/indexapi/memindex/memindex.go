// Package memindex is the in-tree implementation of indexapi.Index: a
// sorted-postings structure good enough to drive index push-down scans
// without depending on an external search engine. Tokenization is the usual
// full-text split (lowercase, break on whitespace and punctuation) so
// free-text QueryToken lookups match what a search backend would
// return, minus any relevance scoring — this index only needs match,
// not rank.
package memindex

import (
	"sort"
	"strings"
	"unicode"

	"github.com/graphkernel/corequery/internal/indexapi"
)

type postings struct {
	ids []int64 // sorted, deduplicated
}

func (p *postings) add(id int64) {
	i := sort.Search(len(p.ids), func(i int) bool { return p.ids[i] >= id })
	if i < len(p.ids) && p.ids[i] == id {
		return
	}
	p.ids = append(p.ids, 0)
	copy(p.ids[i+1:], p.ids[i:])
	p.ids[i] = id
}

func (p *postings) remove(id int64) {
	i := sort.Search(len(p.ids), func(i int) bool { return p.ids[i] >= id })
	if i < len(p.ids) && p.ids[i] == id {
		p.ids = append(p.ids[:i], p.ids[i+1:]...)
	}
}

// numericEntry pairs an entity id with the numeric value of one of its
// indexed attributes, kept sorted by Value for range scans.
type numericEntry struct {
	id    int64
	value float64
}

// Index is a single-label, multi-attribute in-memory index.
type Index struct {
	tokenPostings map[tokenKey]*postings
	tagPostings   map[tagKey]*postings
	numeric       map[int][]numericEntry // attr -> sorted entries
	docs          map[int64]indexapi.Document
}

type tokenKey struct {
	attr int
	tok  string
}

type tagKey struct {
	attr int
	tag  string
}

func New() *Index {
	return &Index{
		tokenPostings: make(map[tokenKey]*postings),
		tagPostings:   make(map[tagKey]*postings),
		numeric:       make(map[int][]numericEntry),
		docs:          make(map[int64]indexapi.Document),
	}
}

// Tokenize lowercases and splits on anything that isn't a letter or
// digit.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

func (ix *Index) AddDocument(doc indexapi.Document) error {
	ix.RemoveDocument(doc.EntityID)
	ix.docs[doc.EntityID] = doc

	for attr, raw := range doc.Fields {
		switch v := raw.(type) {
		case string:
			for _, tok := range Tokenize(v) {
				key := tokenKey{attr: attr, tok: tok}
				p, ok := ix.tokenPostings[key]
				if !ok {
					p = &postings{}
					ix.tokenPostings[key] = p
				}
				p.add(doc.EntityID)
			}
			key := tagKey{attr: attr, tag: v}
			p, ok := ix.tagPostings[key]
			if !ok {
				p = &postings{}
				ix.tagPostings[key] = p
			}
			p.add(doc.EntityID)
		case float64:
			ix.insertNumeric(attr, doc.EntityID, v)
		case int64:
			ix.insertNumeric(attr, doc.EntityID, float64(v))
		}
	}
	return nil
}

func (ix *Index) insertNumeric(attr int, id int64, v float64) {
	entries := ix.numeric[attr]
	i := sort.Search(len(entries), func(i int) bool { return entries[i].value >= v })
	entries = append(entries, numericEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = numericEntry{id: id, value: v}
	ix.numeric[attr] = entries
}

func (ix *Index) RemoveDocument(entityID int64) error {
	doc, ok := ix.docs[entityID]
	if !ok {
		return nil
	}
	for attr, raw := range doc.Fields {
		switch v := raw.(type) {
		case string:
			for _, tok := range Tokenize(v) {
				if p, ok := ix.tokenPostings[tokenKey{attr: attr, tok: tok}]; ok {
					p.remove(entityID)
				}
			}
			if p, ok := ix.tagPostings[tagKey{attr: attr, tag: v}]; ok {
				p.remove(entityID)
			}
		case float64, int64:
			ix.removeNumeric(attr, entityID)
		}
	}
	delete(ix.docs, entityID)
	return nil
}

func (ix *Index) removeNumeric(attr int, id int64) {
	entries := ix.numeric[attr]
	for i, e := range entries {
		if e.id == id {
			ix.numeric[attr] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

func (ix *Index) Query(q indexapi.QueryNode) (indexapi.Iterator, error) {
	ids, err := ix.eval(q)
	if err != nil {
		return nil, err
	}
	return &sliceIterator{ids: ids}, nil
}

func (ix *Index) eval(q indexapi.QueryNode) ([]int64, error) {
	switch q.Kind {
	case indexapi.QueryEmpty:
		return nil, nil
	case indexapi.QueryToken:
		if p, ok := ix.tokenPostings[tokenKey{attr: q.Attr, tok: strings.ToLower(q.Token)}]; ok {
			return append([]int64(nil), p.ids...), nil
		}
		return nil, nil
	case indexapi.QueryTag:
		set := map[int64]struct{}{}
		var out []int64
		for _, tag := range q.Tags {
			if p, ok := ix.tagPostings[tagKey{attr: q.Attr, tag: tag}]; ok {
				for _, id := range p.ids {
					if _, seen := set[id]; !seen {
						set[id] = struct{}{}
						out = append(out, id)
					}
				}
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out, nil
	case indexapi.QueryNumericRange:
		return ix.numericRange(q), nil
	case indexapi.QueryUnion:
		return ix.combine(q.Children, unionIDs)
	case indexapi.QueryIntersect:
		return ix.combine(q.Children, intersectIDs)
	default:
		// Geo/LexRange have no in-tree backing structure; an external
		// Index implementation can widen this switch without changing
		// the collaborator contract.
		return nil, nil
	}
}

func (ix *Index) numericRange(q indexapi.QueryNode) []int64 {
	entries := ix.numeric[q.Attr]
	lo := sort.Search(len(entries), func(i int) bool { return entries[i].value >= q.Min })
	var out []int64
	for i := lo; i < len(entries); i++ {
		v := entries[i].value
		if v < q.Min || (v == q.Min && !q.MinIncl) {
			continue
		}
		if v > q.Max || (v == q.Max && !q.MaxIncl) {
			break
		}
		out = append(out, entries[i].id)
	}
	return out
}

func (ix *Index) combine(children []indexapi.QueryNode, merge func(a, b []int64) []int64) ([]int64, error) {
	if len(children) == 0 {
		return nil, nil
	}
	result, err := ix.eval(children[0])
	if err != nil {
		return nil, err
	}
	for _, c := range children[1:] {
		next, err := ix.eval(c)
		if err != nil {
			return nil, err
		}
		result = merge(result, next)
	}
	return result, nil
}

func unionIDs(a, b []int64) []int64 {
	set := map[int64]struct{}{}
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		set[id] = struct{}{}
	}
	out := make([]int64, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func intersectIDs(a, b []int64) []int64 {
	set := map[int64]struct{}{}
	for _, id := range a {
		set[id] = struct{}{}
	}
	var out []int64
	for _, id := range b {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type sliceIterator struct {
	ids []int64
	pos int
}

func (it *sliceIterator) Next() (int64, bool) {
	if it.pos >= len(it.ids) {
		return 0, false
	}
	id := it.ids[it.pos]
	it.pos++
	return id, true
}

func (it *sliceIterator) Close() {}
