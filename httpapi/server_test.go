package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type noopAdapter struct{}

func (noopAdapter) Name() string { return "noop" }
func (noopAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	return gateway.HandshakeReply{}, nil
}
func (noopAdapter) Connect(ctx context.Context) error                          { return nil }
func (noopAdapter) Disconnect()                                                {}
func (noopAdapter) Connected() bool                                            { return false }
func (noopAdapter) Bind(sink gateway.EventSink)                                {}
func (noopAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error          { return nil }
func (noopAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, p float64) error { return nil }
func (noopAdapter) CancelOrder(ctx context.Context, o *gw.Order) error         { return nil }
func (noopAdapter) CancelAll(ctx context.Context) error                       { return nil }
func (noopAdapter) Wallets(ctx context.Context) (gw.Wallets, error)           { return gw.Wallets{}, nil }
func (noopAdapter) Fees(ctx context.Context) (float64, float64, error)        { return 0, 0, nil }
func (noopAdapter) Features() gw.FeatureFlags                                 { return gw.FeatureFlags{} }

func TestHealthzReturnsOK(t *testing.T) {
	g := gateway.New(gw.Config{Symbol: "BTCUSD"}, noopAdapter{}, gw.SystemClock{}, zerolog.Nop())
	s := New(g)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
