package distance

import (
	"collection-route-service/internal/domain"
	"collection-route-service/internal/platform/obs"
	"collection-route-service/internal/ports"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
)

type osrmTableResponse struct {
	Code      string       `json:"code"`
	Message   string       `json:"message"`
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// OSRMProvider implements ports.RouteProvider with the OSRM table service.
// It is safe for concurrent use.
type OSRMProvider struct {
	baseURL string
	profile string
	client  *client
}

func NewOSRMProvider(baseURL, profile string, opts ClientOptions) (*OSRMProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("OSRM base url is empty")
	}
	if profile == "" {
		profile = "driving"
	}
	p := &OSRMProvider{baseURL: baseURL, profile: profile}
	p.client = newClient(p.Name(), opts, nil)
	return p, nil
}

func (p *OSRMProvider) Name() string { return "osrm/" + p.profile }

// Row fetches one table row: origin is the only source.
func (p *OSRMProvider) Row(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Coordinates,
) (_ []ports.DistanceResult, err error) {
	defer obs.Time(ctx, "osrm.Row")(&err)

	if len(destinations) == 0 {
		return []ports.DistanceResult{}, nil
	}

	coords := make([]string, 0, 1+len(destinations))
	coords = append(coords, osrmCoord(origin))
	for _, d := range destinations {
		coords = append(coords, osrmCoord(d))
	}
	endpoint := fmt.Sprintf("%s/table/v1/%s/%s?sources=0&annotations=distance,duration",
		p.baseURL, p.profile, strings.Join(coords, ";"))

	resp, err := p.client.doWithRetry(ctx, func() (*http.Request, error) {
		return p.client.newRequest(ctx, http.MethodGet, endpoint, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("table request failed: %w", err)
	}
	defer resp.Body.Close()

	var tr osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode table response: %w", err)
	}
	if tr.Code != "Ok" {
		return nil, fmt.Errorf("table response code %q: %s", tr.Code, tr.Message)
	}
	if len(tr.Distances) != 1 || len(tr.Durations) != 1 {
		return nil, fmt.Errorf(
			"expected 1 source row; got distances=%d durations=%d",
			len(tr.Distances), len(tr.Durations),
		)
	}

	// Column 0 is the origin itself.
	return rowResults(tr.Distances[0][1:], tr.Durations[0][1:], len(destinations))
}

func osrmCoord(c domain.Coordinates) string {
	return strconv.FormatFloat(c.Lon, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lat, 'f', 6, 64)
}

// rowResults converts float metres and seconds, rounding to whole units.
func rowResults(distances, durations []*float64, n int) ([]ports.DistanceResult, error) {
	if len(distances) != n || len(durations) != n {
		return nil, fmt.Errorf(
			"row lengths do not match destinations: distances=%d durations=%d destinations=%d",
			len(distances), len(durations), n,
		)
	}

	out := make([]ports.DistanceResult, n)
	for i := range n {
		if distances[i] == nil || durations[i] == nil {
			return nil, fmt.Errorf("no route to destination #%d", i+1)
		}
		out[i] = ports.DistanceResult{
			DistanceMeters:  int(math.Round(*distances[i])),
			DurationSeconds: int(math.Round(*durations[i])),
		}
	}
	return out, nil
}
