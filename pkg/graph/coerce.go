package graph

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Coerce normalizes a decoded model payload into a Graph. Nodes are
// defaulted, deduplicated by id and capped first; edges are then kept only
// when both endpoints are in the kept node set, deduplicated and capped.
// An empty result collapses to the placeholder graph for topic.
func Coerce(obj map[string]any, topic string, addDegree bool) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}}

	seenNodes := make(map[string]struct{})
	for _, raw := range elements(obj, "nodes") {
		n := normalizeNode(raw)
		if _, dup := seenNodes[n.ID]; dup {
			continue
		}
		if len(g.Nodes) == MaxNodes {
			break
		}
		seenNodes[n.ID] = struct{}{}
		g.Nodes = append(g.Nodes, n)
	}

	type signature struct{ id, source, target, label string }
	seenEdges := make(map[signature]struct{})
	usedEdgeIDs := make(map[string]int)
	for _, raw := range elements(obj, "edges") {
		if len(g.Edges) == MaxEdges {
			break
		}
		e := normalizeEdge(raw)
		if e.Source == "" || e.Target == "" {
			continue
		}
		if _, ok := seenNodes[e.Source]; !ok {
			continue
		}
		if _, ok := seenNodes[e.Target]; !ok {
			continue
		}
		sig := signature{e.ID, e.Source, e.Target, e.Label}
		if _, dup := seenEdges[sig]; dup {
			continue
		}
		seenEdges[sig] = struct{}{}

		// Same id with a different endpoint or label: keep both, renamed.
		if n, taken := usedEdgeIDs[e.ID]; taken {
			base := e.ID
			for {
				n++
				candidate := fmt.Sprintf("%s-%d", base, n)
				if _, clash := usedEdgeIDs[candidate]; !clash {
					usedEdgeIDs[base] = n
					e.ID = candidate
					break
				}
			}
		}
		usedEdgeIDs[e.ID] = 1
		g.Edges = append(g.Edges, e)
	}

	if addDegree {
		degree := make(map[string]int, len(g.Nodes))
		for _, e := range g.Edges {
			degree[e.Source]++
			degree[e.Target]++
		}
		for i := range g.Nodes {
			d := degree[g.Nodes[i].ID]
			g.Nodes[i].Degree = &d
		}
	}

	if len(g.Nodes) == 0 && len(g.Edges) == 0 {
		return Placeholder(topic)
	}
	return g
}

// elements returns the list under key, unwrapping {"data": {...}} items.
func elements(obj map[string]any, key string) []map[string]any {
	list, ok := obj[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			out = append(out, map[string]any{})
			continue
		}
		if inner, ok := m["data"].(map[string]any); ok {
			m = inner
		}
		out = append(out, m)
	}
	return out
}

func normalizeNode(d map[string]any) Node {
	n := Node{
		ID:          str(d["id"]),
		Label:       firstNonEmpty(str(d["label"]), str(d["type"]), "Entity"),
		Description: truncate(str(d["description"]), MaxDescription),
		DocID:       str(d["doc_id"]),
		SourceURL:   str(d["source_url"]),
	}
	if n.ID == "" {
		n.ID = slug(firstNonEmpty(str(d["name"]), str(d["label"]), "n"), "n")
	}
	n.Label = strings.ToUpper(n.Label)
	n.Name = str(d["name"])
	if n.Name == "" {
		n.Name = n.Label
	}
	return n
}

func normalizeEdge(d map[string]any) Edge {
	e := Edge{
		ID:          str(d["id"]),
		Source:      str(d["source"]),
		Target:      str(d["target"]),
		Label:       strings.ToUpper(firstNonEmpty(str(d["label"]), str(d["relation"]), "RELATED")),
		Confidence:  confidence(d["confidence"]),
		Description: truncate(str(d["description"]), MaxDescription),
	}
	if e.ID == "" {
		e.ID = slug(e.Source+"-"+e.Target, "e")
	}
	return e
}

// confidence parses numbers and numeric strings, defaults anything else to
// DefaultConfidence and clamps into [0, 1].
func confidence(v any) float64 {
	c := DefaultConfidence
	switch t := v.(type) {
	case float64:
		c = t
	case int:
		c = float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			c = f
		}
	}
	if math.IsNaN(c) || math.IsInf(c, 0) {
		c = DefaultConfidence
	}
	return math.Max(0, math.Min(1, c))
}

func slug(s, prefix string) string {
	s = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-"), "-")
	if s == "" {
		s = strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	if len(s) > 40 {
		s = s[:40]
	}
	return prefix + "-" + s
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		return fmt.Sprint(t)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
