package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownWhenDone_DrainsInFlightRequests(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
	})}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln) //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	shutdownWhenDone(ctx, srv)

	got := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			got <- 0
			return
		}
		resp.Body.Close() //nolint:errcheck
		got <- resp.StatusCode
	}()

	// Stop only once the request is inside the handler, then let it finish.
	<-entered
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(release)

	select {
	case code := <-got:
		assert.Equal(t, http.StatusOK, code, "in-flight request must complete during the drain")
	case <-time.After(5 * time.Second):
		t.Fatal("request never completed")
	}
}
