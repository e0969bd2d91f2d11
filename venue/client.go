// Package venue implements the eight exchange adapters and the shared
// REST client they're built on. Each adapter satisfies gateway.Adapter
// and is registered by name in the registry map, constructed through New
// for config-driven construction.
package venue

import (
	"time"

	"github.com/go-resty/resty/v2"
)

// newRestClient builds a resty client with the shared retry/timeout
// policy every venue's REST calls use, mirroring the teacher pack's
// resty-based exchange client: bounded retries on 5xx, fixed base URL
// and timeout, with venue-specific auth injected by each adapter through
// OnBeforeRequest.
func newRestClient(baseURL string) *resty.Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(250 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return c
}
