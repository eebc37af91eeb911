package metrics

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestRecordersDoNotPanic(t *testing.T) {
	RecordCacheHit()
	RecordCacheMiss()
	RecordBlobWritten()
	RecordBlobDeduplicated()
	ObserveInstall("npm", time.Now().Add(-time.Millisecond))
}

func TestHandlerServesExpositionFormat(t *testing.T) {
	RecordCacheHit()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("expected a non-empty metrics exposition body")
	}
}
