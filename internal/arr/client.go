package arr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"strikearr/internal/logging"
	"strikearr/internal/services"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultPageSize = 250
	maxPages        = 40
	maxBodyBytes    = 32 << 20
)

// Client is the per-instance queue API used by the poller and remediator.
type Client interface {
	FetchQueue(ctx context.Context) ([]QueueItem, error)
	RemoveQueueItem(ctx context.Context, item QueueItem, opts RemoveOptions) error
	TriggerResearch(ctx context.Context, item QueueItem) error
}

// HTTPDoer describes the HTTP client used to reach an instance.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures an HTTP-backed Client.
type Options struct {
	Name              string
	ServiceType       ServiceType
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	// MaxPages bounds queue pagination; zero means the package default.
	MaxPages int
	HTTP     HTTPDoer
	Logger   *slog.Logger
}

// HTTPClient implements Client against a live *arr instance.
type HTTPClient struct {
	name        string
	serviceType ServiceType
	baseURL     string
	apiKey      string
	timeout     time.Duration
	limiter     *rate.Limiter
	maxPages    int
	http        HTTPDoer
	logger      *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs a client for one instance.
func NewHTTPClient(opts Options) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, services.Wrap(services.ErrConfiguration, "arr", "new client", "base url is required", nil)
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "arr", "new client", "invalid base url", err)
	}
	if _, err := ParseServiceType(string(opts.ServiceType)); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "arr", "new client", "", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Limit(opts.RequestsPerSecond)
	if opts.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	pages := opts.MaxPages
	if pages <= 0 {
		pages = maxPages
	}
	doer := opts.HTTP
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &HTTPClient{
		name:        opts.Name,
		serviceType: opts.ServiceType,
		baseURL:     base,
		apiKey:      strings.TrimSpace(opts.APIKey),
		timeout:     timeout,
		limiter:     rate.NewLimiter(limit, burst),
		maxPages:    pages,
		http:        doer,
		logger: logging.NewComponentLogger(opts.Logger, "arr").With(
			logging.String(logging.FieldInstance, opts.Name)),
	}, nil
}

// ServiceType reports the flavour of API this client speaks.
func (c *HTTPClient) ServiceType() ServiceType {
	return c.serviceType
}

func (c *HTTPClient) endpoint(segments string, query url.Values) string {
	u := fmt.Sprintf("%s/api/%s/%s", c.baseURL, c.serviceType.apiVersion(), strings.TrimLeft(segments, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// FetchQueue returns every queue entry, following pagination.
func (c *HTTPClient) FetchQueue(ctx context.Context) ([]QueueItem, error) {
	var items []QueueItem
	total := 0
	for page := 1; page <= c.maxPages; page++ {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(defaultPageSize))
		switch c.serviceType {
		case Sonarr, Whisparr:
			query.Set("includeUnknownSeriesItems", "true")
			query.Set("includeEpisode", "true")
		case Radarr:
			query.Set("includeUnknownMovieItems", "true")
			query.Set("includeMovie", "true")
		case Lidarr:
			query.Set("includeUnknownArtistItems", "true")
			query.Set("includeAlbum", "true")
		case Readarr:
			query.Set("includeUnknownAuthorItems", "true")
		}

		var resp queuePage
		if err := c.do(ctx, http.MethodGet, c.endpoint("queue", query), nil, &resp, "fetch queue"); err != nil {
			return nil, err
		}
		for _, record := range resp.Records {
			items = append(items, record.normalize())
		}
		total = resp.TotalRecords
		if len(resp.Records) == 0 || len(items) >= resp.TotalRecords {
			total = 0
			break
		}
	}
	if total > len(items) {
		logging.WarnWithContext(c.logger, "queue truncated at page limit", "queue_truncated",
			logging.Int("fetched", len(items)),
			logging.Int("total_records", total),
			logging.Int("max_pages", c.maxPages),
			logging.String(logging.FieldErrorHint, "clear the instance queue backlog"),
			logging.String(logging.FieldImpact, "items beyond the page limit are not classified this cycle"),
		)
	}
	return items, nil
}

// RemoveQueueItem deletes an entry from the queue. An entry that is already
// gone counts as removed.
func (c *HTTPClient) RemoveQueueItem(ctx context.Context, item QueueItem, opts RemoveOptions) error {
	if item.QueueID <= 0 {
		return services.Wrap(services.ErrRemediation, "arr", "remove queue item", "queue id missing for "+item.Identity, nil)
	}
	query := url.Values{}
	query.Set("removeFromClient", strconv.FormatBool(opts.RemoveFromClient))
	query.Set("blocklist", strconv.FormatBool(opts.Blocklist))
	query.Set("skipRedownload", strconv.FormatBool(opts.SkipRedownload))
	err := c.do(ctx, http.MethodDelete, c.endpoint("queue/"+strconv.Itoa(item.QueueID), query), nil, nil, "remove queue item")
	if isNotFound(err) {
		return nil
	}
	return err
}

type command struct {
	Name       string `json:"name"`
	SeriesID   int    `json:"seriesId,omitempty"`
	EpisodeIDs []int  `json:"episodeIds,omitempty"`
	MovieIDs   []int  `json:"movieIds,omitempty"`
	ArtistID   int    `json:"artistId,omitempty"`
	AlbumIDs   []int  `json:"albumIds,omitempty"`
	AuthorID   int    `json:"authorId,omitempty"`
	BookIDs    []int  `json:"bookIds,omitempty"`
}

func (c *HTTPClient) researchCommand(item QueueItem) (command, bool) {
	switch c.serviceType {
	case Sonarr, Whisparr:
		if len(item.ChildIDs) > 0 {
			return command{Name: "EpisodeSearch", EpisodeIDs: item.ChildIDs}, true
		}
		if item.MediaID > 0 {
			return command{Name: "SeriesSearch", SeriesID: item.MediaID}, true
		}
	case Radarr:
		if item.MediaID > 0 {
			return command{Name: "MoviesSearch", MovieIDs: []int{item.MediaID}}, true
		}
	case Lidarr:
		if len(item.ChildIDs) > 0 {
			return command{Name: "AlbumSearch", AlbumIDs: item.ChildIDs}, true
		}
		if item.MediaID > 0 {
			return command{Name: "ArtistSearch", ArtistID: item.MediaID}, true
		}
	case Readarr:
		if len(item.ChildIDs) > 0 {
			return command{Name: "BookSearch", BookIDs: item.ChildIDs}, true
		}
		if item.MediaID > 0 {
			return command{Name: "AuthorSearch", AuthorID: item.MediaID}, true
		}
	}
	return command{}, false
}

// TriggerResearch asks the instance to search for a replacement release.
func (c *HTTPClient) TriggerResearch(ctx context.Context, item QueueItem) error {
	cmd, ok := c.researchCommand(item)
	if !ok {
		return services.Wrap(services.ErrRemediation, "arr", "trigger research", "no media reference for "+item.Identity, nil)
	}
	return c.do(ctx, http.MethodPost, c.endpoint("command", nil), cmd, nil, "trigger research")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

// StatusCode extracts the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}

func (c *HTTPClient) do(ctx context.Context, method, target string, body, out any, operation string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return services.Wrap(services.ErrTransient, "arr", operation, c.name+": rate limit wait", err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "arr", operation, c.name, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "arr", operation, c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		msg := c.name
		if text := strings.TrimSpace(string(snippet)); text != "" {
			msg += ": " + text
		}
		return services.Wrap(services.ErrTransient, "arr", operation, msg, &statusError{code: resp.StatusCode})
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return services.Wrap(services.ErrTransient, "arr", operation, c.name+": decode response", err)
	}
	return nil
}
