package telephony

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is an in-memory provider for tests and local development.
// Dial assigns deterministic remote call ids; failures can be programmed
// per destination number.
type FakeClient struct {
	mu sync.Mutex

	seq      int
	FailFor  map[string]error  // To -> error
	States   map[string]string // remote call id -> remote status
	Dialed   []DialRequest
	DialedTo map[string]int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		FailFor:  map[string]error{},
		States:   map[string]string{},
		DialedTo: map[string]int{},
	}
}

func (f *FakeClient) Name() string { return "fake" }

func (f *FakeClient) Dial(ctx context.Context, req DialRequest) (DialResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.FailFor[req.To]; ok {
		return DialResult{}, err
	}

	f.seq++
	sid := fmt.Sprintf("CA%032d", f.seq)
	f.States[sid] = "queued"
	f.Dialed = append(f.Dialed, req)
	f.DialedTo[req.To]++
	return DialResult{RemoteCallID: sid, RemoteStatus: "queued"}, nil
}

func (f *FakeClient) FetchCallState(ctx context.Context, remoteCallID string) (CallState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.States[remoteCallID]
	if !ok {
		return CallState{}, fmt.Errorf("telephony: unknown call %s", remoteCallID)
	}
	return CallState{RemoteCallID: remoteCallID, RemoteStatus: status}, nil
}

// SetState programs the remote status reported for a call. Test helper.
func (f *FakeClient) SetState(remoteCallID, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.States[remoteCallID] = status
}
