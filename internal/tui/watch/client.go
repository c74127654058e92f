package watch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattjoyce/buildmaster/internal/api"
	"github.com/mattjoyce/buildmaster/internal/events"
)

// --- Message types ---

type eventMsg events.Event

type healthMsg api.HealthzResponse

type buildersMsg []api.BuilderSummary

type outputMsg api.BuilderResponse

// actionMsg reports the result of a redeploy or terminate request.
type actionMsg struct {
	name   string
	action string
	err    error
}

type tickMsg time.Time

type errMsg error

type sseDisconnectedMsg struct{}
type reconnectMsg struct{}

// Client talks to a running buildmaster API.
type Client struct {
	base string
	http *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) post(ctx context.Context, path string, want int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return statusError(resp)
	}
	return nil
}

func statusError(resp *http.Response) error {
	var e api.ErrorResponse
	if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, e.Error)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}

func (c *Client) Health(ctx context.Context) (api.HealthzResponse, error) {
	var h api.HealthzResponse
	err := c.getJSON(ctx, "/healthz", &h)
	return h, err
}

func (c *Client) Builders(ctx context.Context) ([]api.BuilderSummary, error) {
	var l api.BuilderListResponse
	if err := c.getJSON(ctx, "/builders", &l); err != nil {
		return nil, err
	}
	return l.Builders, nil
}

// Output returns a builder's output without deploying it.
func (c *Client) Output(ctx context.Context, name string) (api.BuilderResponse, error) {
	var b api.BuilderResponse
	err := c.getJSON(ctx, "/builders/"+url.PathEscape(name)+"?create=false", &b)
	return b, err
}

func (c *Client) Redeploy(ctx context.Context, name string) error {
	return c.post(ctx, "/builders/"+url.PathEscape(name)+"/redeploy", http.StatusOK)
}

func (c *Client) Terminate(ctx context.Context, name string) error {
	return c.post(ctx, "/builders/"+url.PathEscape(name)+"/terminate", http.StatusNoContent)
}

// Stream reads the /events stream until it ends, sending each event to ch.
func (c *Client) Stream(ctx context.Context, ch chan<- events.Event) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/events", nil)
	if err != nil {
		return err
	}
	// The stream is long-lived; the default client timeout would cut it.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	var (
		id   int64
		typ  string
		data string
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data != "" {
				ev := events.Event{ID: id, Type: typ, At: time.Now()}
				// The data line carries the full event; framing fields win.
				_ = json.Unmarshal([]byte(data), &ev)
				ev.ID, ev.Type = id, typ
				select {
				case ch <- ev:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			id, typ, data = 0, "", ""
		case strings.HasPrefix(line, "id: "):
			if n, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				id = n
			}
		case strings.HasPrefix(line, "event: "):
			typ = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = line[6:]
		}
	}
	return scanner.Err()
}

// --- Commands ---

func subscribeToEvents(c *Client, ch chan<- events.Event) tea.Cmd {
	return func() tea.Msg {
		_ = c.Stream(context.Background(), ch)
		return sseDisconnectedMsg{}
	}
}

func receiveNextEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-ch)
	}
}

func fetchHealth(c *Client) tea.Cmd {
	return func() tea.Msg {
		h, err := c.Health(context.Background())
		if err != nil {
			return errMsg(err)
		}
		return healthMsg(h)
	}
}

func fetchBuilders(c *Client) tea.Cmd {
	return func() tea.Msg {
		l, err := c.Builders(context.Background())
		if err != nil {
			return errMsg(err)
		}
		return buildersMsg(l)
	}
}

// fetchOutput returns nil when the builder is not running.
func fetchOutput(c *Client, name string) tea.Cmd {
	return func() tea.Msg {
		b, err := c.Output(context.Background(), name)
		if err != nil {
			return nil
		}
		return outputMsg(b)
	}
}

func redeploy(c *Client, name string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{name: name, action: "redeploy", err: c.Redeploy(context.Background(), name)}
	}
}

func terminate(c *Client, name string) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{name: name, action: "terminate", err: c.Terminate(context.Background(), name)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}
