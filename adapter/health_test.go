package adapter

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/srediag/dma-mapcache/api"
	"github.com/srediag/dma-mapcache/pkg/heapdma"
	"github.com/srediag/dma-mapcache/pkg/mapcache"
	"github.com/srediag/dma-mapcache/pkg/segment"
)

type testResponseWriter struct {
	headers http.Header
	status  int
	body    []byte
}

func (w *testResponseWriter) Header() http.Header {
	if w.headers == nil {
		w.headers = make(http.Header)
	}
	return w.headers
}

func (w *testResponseWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return len(b), nil
}

func (w *testResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}

func serve(h http.Handler, path string) int {
	req, _ := http.NewRequest("GET", path, nil)
	rw := &testResponseWriter{}
	h.ServeHTTP(rw, req)
	return rw.status
}

func TestHealthHandler(t *testing.T) {
	m, err := mapcache.New(heapdma.New(), mapcache.DefaultConfig())
	assert.NoError(t, err)

	h := NewHealthHandler(m, 1)
	assert.Equal(t, 200, serve(h, "/live"))
	assert.Equal(t, 200, serve(h, "/ready"))

	// two live mappings exceed the limit of one
	buf := &api.StaticBuffer{ID: "bufA"}
	segs := segment.List{{PhysAddr: 0x1000, Length: 4096}}
	for _, id := range []string{"dev1", "dev2"} {
		_, err = m.Acquire(context.Background(), &api.StaticDevice{ID: id}, buf, segs, segment.ToDevice, 0)
		assert.NoError(t, err)
	}
	assert.Equal(t, 503, serve(h, "/ready"))
	assert.Equal(t, 200, serve(h, "/live"))

	m.ReleaseAllForBuffer(buf)
	assert.Equal(t, 200, serve(h, "/ready"))

	assert.NoError(t, m.Close())
	assert.Equal(t, 503, serve(h, "/live"))
}
