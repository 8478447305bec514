package entitlement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_InitialRefresh(t *testing.T) {
	src := newScriptedSource(succeed(starter(1, baseTime)))
	sess := &fakeSession{identity: "user-1", credential: "tok-1"}

	s, first := Begin(context.Background(), src, sess, SessionOptions{PollInterval: time.Hour, Logger: testLogger()})
	defer s.End()

	require.IsType(t, Success{}, first)
	assert.Equal(t, StateKnown, s.Evaluator.View().State)
	assert.True(t, s.Poller.Visible())
}

func TestBegin_FirstRefreshFails(t *testing.T) {
	src := newScriptedSource(reply{out: ConnectivityFailure{Err: errors.New("refused")}})
	sess := &fakeSession{identity: "user-1", credential: "tok-1"}

	s, first := Begin(context.Background(), src, sess, SessionOptions{PollInterval: time.Hour, Logger: testLogger()})
	defer s.End()

	assert.IsType(t, ConnectivityFailure{}, first)
	assert.Equal(t, StateUnavailable, s.Evaluator.View().State)
	assert.Equal(t, NoticeConnectivity, s.Evaluator.View().Notice())
}

func TestSession_EndStopsPollingAndCloses(t *testing.T) {
	src := newScriptedSource(succeed(starter(0, baseTime)))
	sess := &fakeSession{identity: "user-1", credential: "tok-1"}
	s, _ := Begin(context.Background(), src, sess, SessionOptions{PollInterval: time.Hour, Logger: testLogger()})

	done := make(chan struct{})
	go func() {
		s.End()
		s.End()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("End did not return")
	}
	assert.Equal(t, AuthFailure{Err: ErrSessionClosed}, s.Evaluator.Refresh(context.Background()))
}
