package rescue

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Chandru6607/6g-dashboard/internal/logging"
	"github.com/Chandru6607/6g-dashboard/internal/sim/state"
	"github.com/Chandru6607/6g-dashboard/model"
)

type fixedDice bool

func (d fixedDice) Chance(float64) bool { return bool(d) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(event string, _ any) {
	p.mu.Lock()
	p.events = append(p.events, event)
	p.mu.Unlock()
}

func (p *recordingPublisher) count(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == event {
			n++
		}
	}
	return n
}

type resumeRecorder struct{ calls int }

func (r *resumeRecorder) Resume(context.Context) bool {
	r.calls++
	return true
}

type metricsRecorder struct {
	mu       sync.Mutex
	healed   int
	writes   int
	failures int
}

func (m *metricsRecorder) NodesHealed(n int) {
	m.mu.Lock()
	m.healed += n
	m.mu.Unlock()
}

func (m *metricsRecorder) SnapshotWritten(err error) {
	m.mu.Lock()
	m.writes++
	if err != nil {
		m.failures++
	}
	m.mu.Unlock()
}

func degradedTopology() model.Topology {
	return model.Topology{
		GNBs: []model.GNB{
			{ID: "gNB-1", Type: model.NodeTypeGNB, Status: model.NodeActive},
			{ID: "gNB-2", Type: model.NodeTypeGNB, Status: model.NodeDegraded},
			{ID: "gNB-3", Type: model.NodeTypeGNB, Status: model.NodeDegraded},
		},
		UEs: []model.UE{
			{ID: "UE-1", Type: model.NodeTypeUE, ConnectedTo: "gNB-2", Status: model.NodeActive},
		},
	}
}

func TestHealDegradedRestoresNodes(t *testing.T) {
	st := state.New(logging.Noop())
	st.SetTopology(degradedTopology())
	pub := &recordingPublisher{}
	m := &metricsRecorder{}
	agent := New(st, pub, fixedDice(true), nil, logging.Noop(), WithMetrics(m))

	healed := agent.HealDegraded(context.Background())
	if len(healed) != 2 {
		t.Fatalf("expected 2 healed nodes, got %v", healed)
	}
	if got := st.Topology().DegradedGNBs(); len(got) != 0 {
		t.Fatalf("expected no degraded gNBs, got %v", got)
	}
	if got := pub.count(model.EventTelemetryEvent); got != 2 {
		t.Fatalf("expected 2 recovery events, got %d", got)
	}
	if got := pub.count(model.EventAlertNew); got != 2 {
		t.Fatalf("expected 2 recovery alerts, got %d", got)
	}
	if got := pub.count(model.EventNetworkUpdate); got != 1 {
		t.Fatalf("expected 1 topology update, got %d", got)
	}
	if m.healed != 2 {
		t.Fatalf("expected metrics to record 2 heals, got %d", m.healed)
	}
}

func TestHealDegradedFailedRollStillPublishesTopology(t *testing.T) {
	st := state.New(logging.Noop())
	st.SetTopology(degradedTopology())
	pub := &recordingPublisher{}
	agent := New(st, pub, fixedDice(false), nil, logging.Noop())

	if healed := agent.HealDegraded(context.Background()); len(healed) != 0 {
		t.Fatalf("expected no heals, got %v", healed)
	}
	if got := len(st.Topology().DegradedGNBs()); got != 2 {
		t.Fatalf("expected 2 degraded gNBs to remain, got %d", got)
	}
	if pub.count(model.EventTelemetryEvent) != 0 {
		t.Fatalf("no recovery events expected")
	}
	if pub.count(model.EventNetworkUpdate) != 1 {
		t.Fatalf("expected topology update while degraded nodes exist")
	}
}

func TestHealDegradedHealthyTopologyIsQuiet(t *testing.T) {
	st := state.New(logging.Noop())
	pub := &recordingPublisher{}
	agent := New(st, pub, fixedDice(true), nil, logging.Noop())

	agent.HealDegraded(context.Background())
	if len(pub.events) != 0 {
		t.Fatalf("expected no events, got %v", pub.events)
	}
}

func TestTroubleshootAllResetsHealth(t *testing.T) {
	st := state.New(logging.Noop())
	st.SetTopology(degradedTopology())
	snap := st.Snapshot()
	snap.Agents[0].AvgReward = 0.2
	if err := st.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	pub := &recordingPublisher{}
	agent := New(st, pub, fixedDice(false), nil, logging.Noop())

	res := agent.TroubleshootAll(context.Background())
	if !res.Success || res.Message != "Intensive troubleshooting complete" {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := st.Topology().DegradedGNBs(); len(got) != 0 {
		t.Fatalf("expected all nodes active, got %v", got)
	}
	if got := st.Agents()[0].AvgReward; got != 0.75 {
		t.Fatalf("expected reward reset to 0.75, got %v", got)
	}
	if pub.count(model.EventAgentsUpdate) != 1 || pub.count(model.EventNetworkUpdate) != 1 {
		t.Fatalf("expected agents and network updates, got %v", pub.events)
	}
}

func TestBackupAndRestoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	src := state.New(logging.Noop())
	src.Activate(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	if err := src.SetTopologyType(model.TopologyRing); err != nil {
		t.Fatalf("set topology type: %v", err)
	}
	m := &metricsRecorder{}
	clock := func() time.Time { return time.Date(2025, 6, 1, 12, 0, 5, 0, time.UTC) }
	writer := New(src, &recordingPublisher{}, fixedDice(true), NewSnapshotStore(path), logging.Noop(), WithMetrics(m), WithClock(clock))

	if err := writer.Backup(context.Background()); err != nil {
		t.Fatalf("backup: %v", err)
	}
	if m.writes != 1 || m.failures != 0 {
		t.Fatalf("unexpected snapshot metrics %+v", m)
	}
	if !writer.LastSync().Equal(clock()) {
		t.Fatalf("expected last sync %v, got %v", clock(), writer.LastSync())
	}

	dst := state.New(logging.Noop())
	resumer := &resumeRecorder{}
	reader := New(dst, &recordingPublisher{}, fixedDice(true), NewSnapshotStore(path), logging.Noop())
	restored, err := reader.Restore(context.Background(), resumer)
	if err != nil || !restored {
		t.Fatalf("restore: restored=%v err=%v", restored, err)
	}
	if !dst.Active() || dst.TopologyType() != model.TopologyRing {
		t.Fatalf("state not restored: %+v", dst.Status())
	}
	if resumer.calls != 1 {
		t.Fatalf("expected resume after restore, got %d calls", resumer.calls)
	}
}

func TestRestoreWithoutSnapshot(t *testing.T) {
	st := state.New(logging.Noop())
	agent := New(st, &recordingPublisher{}, fixedDice(true), NewSnapshotStore(filepath.Join(t.TempDir(), "missing.json")), logging.Noop())
	resumer := &resumeRecorder{}

	restored, err := agent.Restore(context.Background(), resumer)
	if err != nil || restored {
		t.Fatalf("expected clean miss, got restored=%v err=%v", restored, err)
	}
	if resumer.calls != 0 {
		t.Fatalf("resume should not be called")
	}
}

func TestRestoreRejectsMalformedSnapshot(t *testing.T) {
	cases := map[string]string{
		"not json":      "{",
		"bad topology":  `{"active":true,"scenario":"x","currentTopologyType":"Blob","agents":[{"id":"a","name":"A","state":"training","episodes":1,"avgReward":0.5,"convergence":10}],"topology":{"gNBs":[],"UEs":[]}}`,
		"no agents":     `{"active":false,"scenario":"x","currentTopologyType":"Mesh","agents":[],"topology":{"gNBs":[],"UEs":[]}}`,
		"unknown field": `{"bogus":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "state.json")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			st := state.New(logging.Noop())
			agent := New(st, &recordingPublisher{}, fixedDice(true), NewSnapshotStore(path), logging.Noop())
			resumer := &resumeRecorder{}

			restored, err := agent.Restore(context.Background(), resumer)
			if restored || !errors.Is(err, state.ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got restored=%v err=%v", restored, err)
			}
			if st.Active() || st.TopologyType() != model.TopologyMesh {
				t.Fatalf("state changed by rejected snapshot: %+v", st.Status())
			}
			if resumer.calls != 0 {
				t.Fatalf("resume should not be called")
			}
		})
	}
}

func TestDisabledStoreSkipsPersistence(t *testing.T) {
	store := NewSnapshotStore("")
	if store.Enabled() {
		t.Fatalf("empty path should disable the store")
	}
	if err := store.Save(state.Snapshot{}); err != nil {
		t.Fatalf("save on disabled store: %v", err)
	}
	if _, ok, err := store.Load(); ok || err != nil {
		t.Fatalf("load on disabled store: ok=%v err=%v", ok, err)
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "state.json"))
	st := state.New(logging.Noop())
	for i := 0; i < 3; i++ {
		if err := store.Save(st.Snapshot()); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "state.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("expected only state.json, got %v", names)
	}
}

func TestWatchdogRunsPeriodically(t *testing.T) {
	st := state.New(logging.Noop())
	st.SetTopology(degradedTopology())
	pub := &recordingPublisher{}
	m := &metricsRecorder{}
	path := filepath.Join(t.TempDir(), "state.json")
	agent := New(st, pub, fixedDice(true), NewSnapshotStore(path), logging.Noop(), WithPeriod(10*time.Millisecond), WithMetrics(m))

	agent.Start(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for len(st.Topology().DegradedGNBs()) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	agent.Stop(context.Background())

	if got := st.Topology().DegradedGNBs(); len(got) != 0 {
		t.Fatalf("watchdog did not heal nodes: %v", got)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected snapshot file: %v", err)
	}
}
