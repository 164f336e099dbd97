package patterns

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"strikearr/internal/services"
)

const (
	defaultSourceTimeout = 15 * time.Second
	maxSourceBytes       = 4 << 20
)

// Source describes where block patterns come from. Inline patterns are always
// included; File and URL, when set, must each yield a JSON array of strings.
type Source struct {
	Inline  []string
	File    string
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// LoadSource resolves every configured pattern origin into one ordered list.
func LoadSource(ctx context.Context, src Source) ([]string, error) {
	out := make([]string, 0, len(src.Inline))
	out = append(out, src.Inline...)

	if path := strings.TrimSpace(src.File); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "patterns", "read source file", path, err)
		}
		list, err := decodeList(data)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "patterns", "decode source file", path, err)
		}
		out = append(out, list...)
	}

	if url := strings.TrimSpace(src.URL); url != "" {
		list, err := fetchList(ctx, src, url)
		if err != nil {
			return nil, err
		}
		out = append(out, list...)
	}
	return out, nil
}

func fetchList(ctx context.Context, src Source, url string) ([]string, error) {
	timeout := src.Timeout
	if timeout <= 0 {
		timeout = defaultSourceTimeout
	}
	client := src.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "patterns", "build source request", url, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "patterns", "fetch source", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.Wrap(services.ErrConfiguration, "patterns", "fetch source",
			fmt.Sprintf("%s returned %s", url, resp.Status), nil)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "patterns", "read source", url, err)
	}
	list, err := decodeList(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "patterns", "decode source", url, err)
	}
	return list, nil
}

func decodeList(data []byte) ([]string, error) {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("expected JSON array of strings: %w", err)
	}
	if list == nil {
		return nil, fmt.Errorf("expected JSON array of strings, got null")
	}
	return list, nil
}
