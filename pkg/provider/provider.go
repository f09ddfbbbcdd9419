// Package provider holds the adapters that translate a vendor's directions and matrix
// responses into the internal route model. Nothing outside this package sees vendor JSON.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"lintang/deliverynav/pkg/datastructure"
	"lintang/deliverynav/pkg/server"
	"net/http"
	"time"

	"github.com/gojek/heimdall/v7"
	"github.com/gojek/heimdall/v7/httpclient"
	"github.com/twpayne/go-polyline"
)

type RouteRequest struct {
	Origin         datastructure.Coordinate
	Destination    datastructure.Coordinate
	IncludeTraffic bool
	Alternatives   bool
}

// Provider is a directions + distance matrix backend. Route returns the primary route first,
// followed by alternatives when req.Alternatives is set. TrafficLevel is left empty, it is
// classified by the routing client.
type Provider interface {
	Name() string
	Route(ctx context.Context, req RouteRequest) ([]datastructure.RouteResult, error)
	Matrix(ctx context.Context, origins, destinations []datastructure.Coordinate) (datastructure.MatrixResult, error)
}

type Options struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retries int
}

func newHTTPClient(opts Options) heimdall.Doer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return httpclient.NewClient(
		httpclient.WithHTTPTimeout(timeout),
		httpclient.WithRetryCount(opts.Retries),
	)
}

func getJSON(ctx context.Context, client heimdall.Doer, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return server.WrapErrorf(err, server.ErrInternalServerError, "build provider request")
	}
	res, err := client.Do(req)
	if err != nil {
		return server.WrapErrorf(err, server.ErrProviderUnavailable, "provider request failed")
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return server.WrapErrorf(nil, server.ErrProviderUnavailable, "provider returned HTTP %d", res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return server.WrapErrorf(err, server.ErrProviderUnavailable, "decode provider response")
	}
	return nil
}

func decodeGeometry(encoded string) []datastructure.Coordinate {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil
	}
	geometry := make([]datastructure.Coordinate, 0, len(coords))
	for _, c := range coords {
		geometry = append(geometry, datastructure.NewCoordinate(c[0], c[1]))
	}
	return geometry
}

func coordParam(c datastructure.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lon)
}

// New builds the adapter named by name ("google" or "osrm").
func New(name string, opts Options) (Provider, error) {
	switch name {
	case "google", "":
		return NewGoogleProvider(opts), nil
	case "osrm":
		return NewOSRMProvider(opts), nil
	default:
		return nil, server.WrapErrorf(nil, server.ErrBadParamInput, "unknown routing provider %q", name)
	}
}
