package model

import (
	"fmt"
	"strings"
)

// TopologyType selects the layout used when a topology is generated.
type TopologyType string

const (
	TopologyMesh   TopologyType = "Mesh"
	TopologyRing   TopologyType = "Ring"
	TopologyBus    TopologyType = "Bus"
	TopologyStar   TopologyType = "Star"
	TopologyTree   TopologyType = "Tree"
	TopologyHybrid TopologyType = "Hybrid"
)

// TopologyTypes lists every supported layout in a stable order.
var TopologyTypes = []TopologyType{
	TopologyMesh,
	TopologyRing,
	TopologyBus,
	TopologyStar,
	TopologyTree,
	TopologyHybrid,
}

// Valid reports whether t is a known topology type.
func (t TopologyType) Valid() bool {
	for _, known := range TopologyTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseTopologyType matches s case-insensitively against the known types.
func ParseTopologyType(s string) (TopologyType, error) {
	for _, known := range TopologyTypes {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown topology type %q", s)
}

// NodeStatus is the health flag carried by gNBs and UEs.
type NodeStatus string

const (
	NodeActive   NodeStatus = "active"
	NodeDegraded NodeStatus = "degraded"
)

// Node type labels used in the JSON payloads.
const (
	NodeTypeGNB = "gNB"
	NodeTypeUE  = "UE"
)

// GNB is a simulated base station placed on the dashboard canvas.
type GNB struct {
	ID     string     `json:"id"`
	Type   string     `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Status NodeStatus `json:"status"`
}

// UE is a simulated user equipment attached to exactly one gNB.
type UE struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	X           float64    `json:"x"`
	Y           float64    `json:"y"`
	ConnectedTo string     `json:"connectedTo"`
	Status      NodeStatus `json:"status"`
}

// Topology is the gNB/UE graph rendered by the dashboard.
type Topology struct {
	GNBs []GNB `json:"gNBs"`
	UEs  []UE  `json:"UEs"`
}

// Clone returns a deep copy of t.
func (t Topology) Clone() Topology {
	out := Topology{}
	if t.GNBs != nil {
		out.GNBs = make([]GNB, len(t.GNBs))
		copy(out.GNBs, t.GNBs)
	}
	if t.UEs != nil {
		out.UEs = make([]UE, len(t.UEs))
		copy(out.UEs, t.UEs)
	}
	return out
}

// Validate checks that ids are unique and every UE references a gNB in
// the same graph.
func (t Topology) Validate() error {
	gnbs := make(map[string]struct{}, len(t.GNBs))
	for _, g := range t.GNBs {
		if g.ID == "" {
			return fmt.Errorf("gNB with empty id")
		}
		if _, dup := gnbs[g.ID]; dup {
			return fmt.Errorf("duplicate gNB id %q", g.ID)
		}
		gnbs[g.ID] = struct{}{}
	}
	for _, ue := range t.UEs {
		if ue.ID == "" {
			return fmt.Errorf("UE with empty id")
		}
		if _, ok := gnbs[ue.ConnectedTo]; !ok {
			return fmt.Errorf("UE %q connected to unknown gNB %q", ue.ID, ue.ConnectedTo)
		}
	}
	return nil
}

// DegradedGNBs returns the ids of gNBs currently flagged degraded.
func (t Topology) DegradedGNBs() []string {
	var ids []string
	for _, g := range t.GNBs {
		if g.Status == NodeDegraded {
			ids = append(ids, g.ID)
		}
	}
	return ids
}
