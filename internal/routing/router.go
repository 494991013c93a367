package routing

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// phrase boundaries: start/end of text or any char that is not a letter, digit or underscore
const (
	boundaryBefore = `(?:^|[^\pL\pN_])`
	boundaryAfter  = `(?:$|[^\pL\pN_])`
)

type compiledTopic struct {
	id      int64
	pattern *regexp.Regexp
}

type dictionary struct {
	keywords *Keywords
	phrases  []string
	topics   []compiledTopic
}

func compile(kw *Keywords) *dictionary {
	d := &dictionary{keywords: kw}

	seen := make(map[string]struct{})
	for _, c := range kw.Categories {
		for _, p := range c.Phrases {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			d.phrases = append(d.phrases, p)
		}
	}

	for _, t := range kw.Topics {
		d.topics = append(d.topics, compiledTopic{
			id:      t.TopicID,
			pattern: regexp.MustCompile(boundaryBefore + regexp.QuoteMeta(t.Title) + boundaryAfter),
		})
	}
	return d
}

// Router tags listings and picks their destinations. The dictionary can be
// swapped at runtime without blocking readers.
type Router struct {
	general int64
	maxHits int
	dict    atomic.Pointer[dictionary]
}

// NewRouter creates a router over kw
func NewRouter(kw *Keywords, generalTopicID int64, maxHits int) *Router {
	r := &Router{general: generalTopicID, maxHits: maxHits}
	r.dict.Store(compile(kw))
	return r
}

// Reload replaces the dictionary
func (r *Router) Reload(kw *Keywords) {
	r.dict.Store(compile(kw))
	logrus.WithFields(logrus.Fields{
		"categories": len(kw.Categories),
		"topics":     len(kw.Topics),
	}).Info("Routing dictionary reloaded")
}

// ReloadFiles reads the dictionaries from disk and swaps them in. The
// current dictionary stays in place when the files are invalid.
func (r *Router) ReloadFiles(categoriesPath, topicsPath string) (*Keywords, error) {
	kw, err := LoadKeywords(categoriesPath, topicsPath)
	if err != nil {
		return nil, err
	}
	r.Reload(kw)
	return kw, nil
}

// FileSource reloads a router from fixed dictionary paths
type FileSource struct {
	Router         *Router
	CategoriesPath string
	TopicsPath     string
}

// ReloadRouting re-reads the dictionary files
func (s *FileSource) ReloadRouting(_ context.Context) error {
	_, err := s.Router.ReloadFiles(s.CategoriesPath, s.TopicsPath)
	return err
}

// Keywords returns the dictionary currently in use
func (r *Router) Keywords() *Keywords {
	return r.dict.Load().keywords
}

// GeneralTopicID returns the destination every listing is sent to
func (r *Router) GeneralTopicID() int64 {
	return r.general
}

// Tags returns the tags found in text
func (r *Router) Tags(text string) []string {
	return extractTags(text, r.dict.Load().phrases)
}

// Destinations returns the topics text should be published to
func (r *Router) Destinations(text string) []int64 {
	return route(text, r.dict.Load().topics, r.general, r.maxHits)
}

// ExtractTags returns "#phrase" tags (spaces replaced by "_") for every
// category phrase contained in text, case-insensitively, deduplicated and
// sorted. Containment is a plain substring test.
func ExtractTags(text string, categories []Category) []string {
	var phrases []string
	for _, c := range categories {
		for _, p := range c.Phrases {
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				phrases = append(phrases, p)
			}
		}
	}
	return extractTags(text, phrases)
}

func extractTags(text string, phrases []string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]struct{})
	tags := []string{}
	for _, p := range phrases {
		if !strings.Contains(lowered, p) {
			continue
		}
		tag := "#" + strings.ReplaceAll(p, " ", "_")
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// RouteDestinations returns the general topic plus every topic whose title
// occurs in text as a whole phrase, capped at maxHits+1 entries and sorted.
func RouteDestinations(text string, topics []Topic, general int64, maxHits int) []int64 {
	kw := &Keywords{Topics: make([]Topic, len(topics))}
	copy(kw.Topics, topics)
	kw.normalize()
	return route(text, compile(kw).topics, general, maxHits)
}

func route(text string, topics []compiledTopic, general int64, maxHits int) []int64 {
	lowered := strings.ToLower(text)
	hits := map[int64]struct{}{general: {}}
	limit := maxHits + 1

	for _, t := range topics {
		if len(hits) >= limit {
			break
		}
		if t.pattern.MatchString(lowered) {
			hits[t.id] = struct{}{}
		}
	}

	out := make([]int64, 0, len(hits))
	for id := range hits {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
