package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NodeID accepts both string and numeric ids from the editor.
type NodeID string

func (id *NodeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = NodeID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("node id must be a string or number: %w", err)
	}
	*id = NodeID(n.String())
	return nil
}

// TopologyNode is one node of the editor document. Other members the
// editor stores (positions, styling) are ignored here and survive in the
// raw document.
type TopologyNode struct {
	ID   NodeID          `json:"id"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Topology is the editor's graph document. Connections map a node id, or
// START, to the ids it points at.
type Topology struct {
	Nodes       []TopologyNode      `json:"nodes"`
	Connections map[NodeID][]NodeID `json:"connections"`
}

// ParseTopology decodes and checks an editor document: every node needs
// an id and a name, ids are unique and connections only name known ids.
func ParseTopology(data []byte) (*Topology, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, structural(ErrMalformedTopology, nil, "topology is empty")
	}
	var t Topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, structural(ErrMalformedTopology, nil, "%v", err)
	}

	ids := make(map[NodeID]bool, len(t.Nodes))
	for i, n := range t.Nodes {
		if strings.TrimSpace(string(n.ID)) == "" {
			return nil, structural(ErrMalformedTopology, nil, "node %d has no id", i)
		}
		if strings.TrimSpace(n.Name) == "" {
			return nil, structural(ErrMalformedTopology, nil, "node %q has no name", n.ID)
		}
		if n.ID == Start {
			return nil, structural(ErrMalformedTopology, nil, "node id %s is reserved", Start)
		}
		if ids[n.ID] {
			return nil, structural(ErrMalformedTopology, nil, "node id %q is used twice", n.ID)
		}
		ids[n.ID] = true
	}
	for from, targets := range t.Connections {
		if from != Start && !ids[from] {
			return nil, structural(ErrUnknownStep, []string{string(from)}, "connection from unknown node id")
		}
		for _, to := range targets {
			if !ids[to] {
				return nil, structural(ErrUnknownStep, []string{string(to)}, "connection from %q to unknown node id", from)
			}
		}
	}
	return &t, nil
}

// Graph converts the document to a step graph keyed by node name.
func (t *Topology) Graph() (*Graph, error) {
	names := make(map[NodeID]string, len(t.Nodes))
	steps := make([]Step, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		names[n.ID] = strings.TrimSpace(n.Name)
		steps = append(steps, Step{Name: n.Name, Data: n.Data})
	}

	froms := make([]string, 0, len(t.Connections))
	for from := range t.Connections {
		froms = append(froms, string(from))
	}
	sort.Strings(froms)

	var edges []Edge
	for _, from := range froms {
		fromName := Start
		if NodeID(from) != Start {
			fromName = names[NodeID(from)]
		}
		for _, to := range t.Connections[NodeID(from)] {
			edges = append(edges, Edge{fromName, names[to]})
		}
	}
	return New(steps, edges)
}
