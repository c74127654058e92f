package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/buildmaster/internal/scripts"
	"github.com/mattjoyce/buildmaster/internal/supervisor"
)

func TestHubRingKeepsNewest(t *testing.T) {
	h := NewHub(3)
	for i := 0; i < 5; i++ {
		h.Publish("test", "b", map[string]int{"i": i})
	}

	snap := h.SnapshotSince(0)
	require.Len(t, snap, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{snap[0].ID, snap[1].ID, snap[2].ID})
	assert.JSONEq(t, `{"i":4}`, string(snap[2].Data))

	since := h.SnapshotSince(4)
	require.Len(t, since, 1)
	assert.Equal(t, int64(5), since[0].ID)
}

func TestHubSubscribeReceivesAndCancels(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(4)

	h.Publish("test", "b", nil)
	select {
	case ev := <-ch:
		assert.Equal(t, "test", ev.Type)
		assert.Equal(t, "b", ev.Builder)
		assert.JSONEq(t, `{}`, string(ev.Data))
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	cancel()
	_, ok := <-ch
	assert.False(t, ok)
}

func TestHubSlowSubscriberDrops(t *testing.T) {
	h := NewHub(10)
	_, cancel := h.Subscribe(1)
	defer cancel()

	h.Publish("a", "", nil)
	h.Publish("b", "", nil)
	assert.Equal(t, int64(1), h.Dropped())
}

func TestHubClose(t *testing.T) {
	h := NewHub(10)
	ch, cancel := h.Subscribe(1)
	h.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()

	late, _ := h.Subscribe(1)
	_, ok = <-late
	assert.False(t, ok)

	h.Publish("ignored", "", nil)
	assert.Empty(t, h.SnapshotSince(0))
}

func TestPublisherEventTypes(t *testing.T) {
	h := NewHub(16)
	p := NewPublisher(h)
	info := supervisor.GenerationInfo{Builder: "deploy.sh", ID: "gen-1", PID: 42}

	p.Spawned(info)
	p.Stopped(info, "redeploy")
	p.Stopped(info, "terminate")
	p.Exited(info, supervisor.Exit{Code: 2, Status: "exit status 2"})
	p.Failed("deploy.sh", errors.New("boom"))
	p.ScriptChanged(scripts.Change{Name: "deploy.sh", Kind: scripts.ChangeModified})

	snap := h.SnapshotSince(0)
	types := make([]string, 0, len(snap))
	for _, ev := range snap {
		types = append(types, ev.Type)
		assert.Equal(t, "deploy.sh", ev.Builder)
	}
	assert.Equal(t, []string{
		BuilderSpawned, BuilderRedeployed, BuilderTerminated,
		BuilderExited, BuilderFailed, ScriptChanged,
	}, types)

	var exit ExitPayload
	require.NoError(t, json.Unmarshal(snap[3].Data, &exit))
	assert.Equal(t, 2, exit.ExitCode)
	assert.Equal(t, "gen-1", exit.GenerationID)

	assert.JSONEq(t, `{"error":"boom"}`, string(snap[4].Data))
	assert.JSONEq(t, `{"change":"modified"}`, string(snap[5].Data))
}
