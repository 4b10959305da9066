package fetcher

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dwsmith1983/gamedata-etl/pkg/types"
)

// Endpoint is one resolved upstream resource.
type Endpoint struct {
	Name    string
	URL     string
	Query   map[string]string
	Timeout time.Duration
}

// RawPayload is the undecoded body of a successful fetch.
type RawPayload struct {
	Endpoint  string
	URL       string
	Body      []byte
	Attempts  int
	FetchedAt time.Time
}

// Resolve builds the endpoints to fetch from config, in configured order.
// Relative URLs are joined to api.base_url and api.language is added as the
// language query parameter unless the endpoint sets its own.
func Resolve(cfg *types.ProjectConfig) []Endpoint {
	base := strings.TrimRight(cfg.API.BaseURL, "/")
	out := make([]Endpoint, 0, len(cfg.Endpoints))
	for _, ec := range cfg.Endpoints {
		u := ec.URL
		if !isAbsolute(u) {
			u = base + "/" + strings.TrimLeft(u, "/")
		}

		query := make(map[string]string, len(ec.Query)+1)
		if cfg.API.Language != "" {
			query["language"] = cfg.API.Language
		}
		for k, v := range ec.Query {
			query[k] = v
		}

		timeout := ec.TimeoutSeconds
		if timeout <= 0 {
			timeout = cfg.API.TimeoutSeconds
		}
		out = append(out, Endpoint{
			Name:    ec.Name,
			URL:     u,
			Query:   query,
			Timeout: time.Duration(timeout * float64(time.Second)),
		})
	}
	return out
}

// requestURL merges the endpoint query into its URL. Keys are encoded in
// sorted order so the same endpoint always yields the same URL.
func (e Endpoint) requestURL() (string, error) {
	u, err := url.Parse(e.URL)
	if err != nil {
		return "", fmt.Errorf("parsing url for %s: %w", e.Name, err)
	}
	if len(e.Query) == 0 {
		return u.String(), nil
	}
	q := u.Query()
	for k, v := range e.Query {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func isAbsolute(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
