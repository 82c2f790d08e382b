package generator

import (
	"fmt"
	"math"

	"github.com/Chandru6607/6g-dashboard/model"
)

// Canvas bounds and population of generated topologies.
const (
	GNBCount = 5
	UECount  = 12

	canvasMinX = 100.0
	canvasMaxX = 700.0
	canvasMinY = 100.0
	canvasMaxY = 300.0

	degradedProbability = 0.1
	ueSpread            = 60.0
)

// Topology generates a fresh graph laid out according to t. Unknown types
// fall back to the mesh layout.
func (g *Generator) Topology(t model.TopologyType) model.Topology {
	g.mu.Lock()
	defer g.mu.Unlock()

	positions := g.layout(t)
	topo := model.Topology{
		GNBs: make([]model.GNB, GNBCount),
		UEs:  make([]model.UE, UECount),
	}
	for i := range topo.GNBs {
		status := model.NodeActive
		if g.rng.Float64() < degradedProbability {
			status = model.NodeDegraded
		}
		topo.GNBs[i] = model.GNB{
			ID:     fmt.Sprintf("gnb-%d", i+1),
			Type:   model.NodeTypeGNB,
			X:      round(positions[i][0], 1),
			Y:      round(positions[i][1], 1),
			Status: status,
		}
	}

	attach := attachable(t)
	for i := range topo.UEs {
		parent := topo.GNBs[attach[g.rng.Intn(len(attach))]]
		x := clamp(parent.X+g.uniform(-ueSpread, ueSpread), canvasMinX, canvasMaxX)
		y := clamp(parent.Y+g.uniform(-ueSpread, ueSpread), canvasMinY, canvasMaxY)
		topo.UEs[i] = model.UE{
			ID:          fmt.Sprintf("ue-%d", i+1),
			Type:        model.NodeTypeUE,
			X:           round(x, 1),
			Y:           round(y, 1),
			ConnectedTo: parent.ID,
			Status:      model.NodeActive,
		}
	}
	return topo
}

// PickOtherTopology returns a topology type chosen uniformly from every type
// except current.
func (g *Generator) PickOtherTopology(current model.TopologyType) model.TopologyType {
	options := make([]model.TopologyType, 0, len(model.TopologyTypes))
	for _, t := range model.TopologyTypes {
		if t != current {
			options = append(options, t)
		}
	}
	return options[g.Intn(len(options))]
}

func (g *Generator) layout(t model.TopologyType) [][2]float64 {
	cx := (canvasMinX + canvasMaxX) / 2
	cy := (canvasMinY + canvasMaxY) / 2
	pos := make([][2]float64, GNBCount)

	switch t {
	case model.TopologyRing:
		ellipse(pos, cx, cy, 250, 80, 0)
	case model.TopologyBus:
		step := (canvasMaxX - canvasMinX - 100) / float64(GNBCount-1)
		for i := range pos {
			pos[i] = [2]float64{canvasMinX + 50 + step*float64(i), cy}
		}
	case model.TopologyStar:
		pos[0] = [2]float64{cx, cy}
		ellipse(pos[1:], cx, cy, 220, 80, math.Pi/4)
	case model.TopologyTree:
		pos[0] = [2]float64{cx, canvasMinY + 20}
		step := (canvasMaxX - canvasMinX - 100) / float64(GNBCount-2)
		for i := 1; i < GNBCount; i++ {
			pos[i] = [2]float64{canvasMinX + 50 + step*float64(i-1), canvasMaxY - 40}
		}
	case model.TopologyHybrid:
		half := GNBCount / 2
		ellipse(pos[:half+1], cx-120, cy, 120, 60, 0)
		for i := half + 1; i < GNBCount; i++ {
			pos[i] = [2]float64{g.uniform(cx+50, canvasMaxX), g.uniform(canvasMinY, canvasMaxY)}
		}
	default:
		for i := range pos {
			pos[i] = [2]float64{g.uniform(canvasMinX, canvasMaxX), g.uniform(canvasMinY, canvasMaxY)}
		}
	}
	return pos
}

// attachable returns the gNB indices UEs may attach to. Hub-and-spoke
// layouts keep UEs off the hub.
func attachable(t model.TopologyType) []int {
	start := 0
	if t == model.TopologyStar || t == model.TopologyTree {
		start = 1
	}
	idx := make([]int, 0, GNBCount)
	for i := start; i < GNBCount; i++ {
		idx = append(idx, i)
	}
	return idx
}

func ellipse(pos [][2]float64, cx, cy, rx, ry, phase float64) {
	n := float64(len(pos))
	for i := range pos {
		a := phase + 2*math.Pi*float64(i)/n
		pos[i] = [2]float64{cx + rx*math.Cos(a), cy + ry*math.Sin(a)}
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
