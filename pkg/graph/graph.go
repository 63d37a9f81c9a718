// Package graph turns free-text reports into a validated knowledge graph.
package graph

import (
	"bytes"
	"encoding/json"
	"errors"
)

const (
	MaxNodes       = 50
	MaxEdges       = 100
	MaxDescription = 300

	DefaultConfidence = 0.8
)

// ErrNoJSON is returned when no JSON object can be recovered from model output.
var ErrNoJSON = errors.New("no JSON object found in model output")

// Node is a graph vertex. Degree is set only when requested.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	DocID       string `json:"doc_id,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
	Degree      *int   `json:"degree,omitempty"`
}

// Edge is a directed relation between two node ids.
type Edge struct {
	ID          string  `json:"id"`
	Source      string  `json:"source"`
	Target      string  `json:"target"`
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// Graph is the extracted structure. It marshals to the element format graph
// viewers expect, with each element wrapped in {"data": ...}.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

type nodeElement struct {
	Data Node `json:"data"`
}

type edgeElement struct {
	Data Edge `json:"data"`
}

type wireGraph struct {
	Nodes []nodeElement `json:"nodes"`
	Edges []edgeElement `json:"edges"`
}

// MarshalJSON writes empty arrays, never null. HTML characters are left
// unescaped here; callers that want escaping get it from json.Marshal.
func (g Graph) MarshalJSON() ([]byte, error) {
	w := wireGraph{
		Nodes: make([]nodeElement, len(g.Nodes)),
		Edges: make([]edgeElement, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		w.Nodes[i] = nodeElement{Data: n}
	}
	for i, e := range g.Edges {
		w.Edges[i] = edgeElement{Data: e}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func (g *Graph) UnmarshalJSON(data []byte) error {
	var w wireGraph
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	g.Nodes = make([]Node, len(w.Nodes))
	g.Edges = make([]Edge, len(w.Edges))
	for i, n := range w.Nodes {
		g.Nodes[i] = n.Data
	}
	for i, e := range w.Edges {
		g.Edges[i] = e.Data
	}
	return nil
}

// Placeholder is the single-node graph returned when nothing can be extracted.
func Placeholder(topic string) Graph {
	return Graph{
		Nodes: []Node{{ID: "query", Label: "QUERY", Name: topic}},
		Edges: []Edge{},
	}
}
