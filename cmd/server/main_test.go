package main

import (
	"net/http"
	"testing"

	"giftai/pkg/ai"
)

func TestHTTPServerAllowsSlowGeneration(t *testing.T) {
	srv := newHTTPServer(":0", http.NotFoundHandler())
	if srv.WriteTimeout != 0 && srv.WriteTimeout < ai.DefaultGenerationTimeout {
		t.Fatalf("write deadline %v is shorter than the %v generation timeout; slow provider responses would be dropped mid-flight", srv.WriteTimeout, ai.DefaultGenerationTimeout)
	}
	if srv.ReadTimeout <= 0 || srv.IdleTimeout <= 0 {
		t.Fatal("read and idle deadlines must stay bounded")
	}
}
