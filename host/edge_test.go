package host

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/charcount/transport"
)

func TestEdge_HeldStreamsEndImmediately(t *testing.T) {
	a := NewAdapter(newRegistry(t), WithTransportOptions(transport.StreamableOptions{HoldStream: true}))

	done := make(chan *EdgeResponse, 1)
	go func() {
		done <- a.Edge(t.Context(), &EdgeRequest{
			Method: http.MethodGet,
			Header: http.Header{"Accept": []string{transport.ContentTypeEventStream}},
		})
	}()

	select {
	case resp := <-done:
		if resp.Status != http.StatusOK {
			t.Errorf("status = %d", resp.Status)
		}
		if ct := resp.Header.Get("Content-Type"); ct != transport.ContentTypeEventStream {
			t.Errorf("Content-Type = %q", ct)
		}
	case <-time.After(time.Second):
		t.Fatal("buffered GET did not return")
	}
}

func TestEdgeResponse_Send(t *testing.T) {
	resp := &EdgeResponse{
		Status: http.StatusAccepted,
		Header: http.Header{"X-Test": []string{"yes"}},
		Body:   []byte("ok"),
	}
	rec := httptest.NewRecorder()
	resp.Send(rec)

	if rec.Code != http.StatusAccepted || rec.Body.String() != "ok" || rec.Header().Get("X-Test") != "yes" {
		t.Errorf("got %d %q %v", rec.Code, rec.Body.String(), rec.Header())
	}
}

func TestEdgeRouter_NotificationIsAccepted(t *testing.T) {
	rec := httptest.NewRecorder()
	EdgeRouter(NewAdapter(newRegistry(t))).ServeHTTP(rec,
		newRequest(http.MethodPost, `{"jsonrpc":"2.0","method":"notifications/initialized"}`))

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q", rec.Body.String())
	}
}
