package apify

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	startErr error
	statuses []string
	polls    int
	items    []json.RawMessage
	pages    [][2]int
	input    any
}

func (f *fakeClient) StartRun(_ context.Context, actorID string, input any) (*Run, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.input = input
	return &Run{ID: "run-1", ActID: actorID, Status: StatusReady, DefaultDatasetID: "ds-1"}, nil
}

func (f *fakeClient) GetRun(_ context.Context, runID string, _ int) (*Run, error) {
	status := f.statuses[min(f.polls, len(f.statuses)-1)]
	f.polls++
	return &Run{ID: runID, Status: status, StatusMessage: "msg", DefaultDatasetID: "ds-1", UsageTotalUSD: 0.1}, nil
}

func (f *fakeClient) DatasetItems(_ context.Context, _ string, offset, limit int) ([]json.RawMessage, error) {
	f.pages = append(f.pages, [2]int{offset, limit})
	if offset >= len(f.items) {
		return nil, nil
	}
	end := min(offset+limit, len(f.items))
	return f.items[offset:end], nil
}

func items(n int) []json.RawMessage {
	out := make([]json.RawMessage, n)
	for i := range out {
		out[i] = json.RawMessage(fmt.Sprintf(`{"i":%d}`, i))
	}
	return out
}

func fastPoll() []PollOption {
	return []PollOption{WithPollInterval(time.Millisecond), WithPollCap(2 * time.Millisecond), WithWaitForFinish(0)}
}

func TestWaitRun_Succeeds(t *testing.T) {
	f := &fakeClient{statuses: []string{StatusReady, StatusRunning, StatusSucceeded}}
	run, err := WaitRun(context.Background(), f, "run-1", fastPoll()...)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, run.Status)
	assert.Equal(t, 3, f.polls)
}

func TestWaitRun_Failed(t *testing.T) {
	f := &fakeClient{statuses: []string{StatusRunning, StatusAborted}}
	run, err := WaitRun(context.Background(), f, "run-1", fastPoll()...)
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, StatusAborted, runErr.Status)
	assert.Equal(t, StatusAborted, run.Status)
}

func TestWaitRun_Timeout(t *testing.T) {
	f := &fakeClient{statuses: []string{StatusRunning}}
	opts := append(fastPoll(), WithPollTimeout(20*time.Millisecond))
	_, err := WaitRun(context.Background(), f, "run-1", opts...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestAllItems_Pages(t *testing.T) {
	f := &fakeClient{items: items(5)}
	got, err := AllItems(context.Background(), f, "ds-1", 2)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, [][2]int{{0, 2}, {2, 2}, {4, 2}}, f.pages)
}

func TestAllItems_ExactMultiple(t *testing.T) {
	f := &fakeClient{items: items(4)}
	got, err := AllItems(context.Background(), f, "ds-1", 2)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Len(t, f.pages, 3, "a final empty page ends the read")
}

func TestCallActor(t *testing.T) {
	f := &fakeClient{statuses: []string{StatusSucceeded}, items: items(3)}
	opts := append(fastPoll(), WithPageSize(10))
	run, got, err := CallActor(context.Background(), f, "actor-1", map[string]string{"k": "v"}, opts...)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.InDelta(t, 0.1, run.UsageTotalUSD, 1e-9)
	assert.Len(t, got, 3)
	assert.Equal(t, map[string]string{"k": "v"}, f.input)
}

func TestCallActor_StartError(t *testing.T) {
	f := &fakeClient{startErr: fmt.Errorf("boom")}
	_, _, err := CallActor(context.Background(), f, "actor-1", nil, fastPoll()...)
	require.Error(t, err)
	assert.Equal(t, 0, f.polls)
}
