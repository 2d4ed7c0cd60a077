package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

// ProtocolHTTP identifies the long-polling HTTP relay.
const ProtocolHTTP = "http"

// PublishRequest is the body of POST /topics/{topic}.
type PublishRequest struct {
	Sender  string `json:"sender"`
	Payload []byte `json:"payload"`
}

// PolledMessage is one message returned by GET /topics/{topic}.
type PolledMessage struct {
	Seq     int64  `json:"seq"`
	Payload []byte `json:"payload"`
}

// PollResponse is the body returned by GET /topics/{topic}.
type PollResponse struct {
	Cursor   int64           `json:"cursor"`
	Messages []PolledMessage `json:"messages"`
}

// HTTP is a relay client for the development relay server. Each subscribed
// topic is served by one long-poll loop.
type HTTP struct {
	Base     string
	HTTP     *http.Client
	PollWait time.Duration

	id  string
	log *logrus.Entry

	mu        sync.Mutex
	connected bool
	subs      map[domain.Topic]*httpSub
}

type httpSub struct {
	mu      sync.Mutex
	handler domain.MessageHandler
	cancel  context.CancelFunc
	done    chan struct{}
}

func (s *httpSub) setHandler(h domain.MessageHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

// NewHTTP returns a client for the relay at base.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{
		Base:     base,
		HTTP:     client,
		PollWait: 25 * time.Second,
		id:       uuid.NewString(),
		log:      logrus.WithField("component", "relay.http"),
		subs:     make(map[domain.Topic]*httpSub),
	}
}

// Start checks the relay is reachable.
func (c *HTTP) Start(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return errs.Transport("relay start", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return errs.Transport("relay start", fmt.Errorf("relay get /healthz: %s", resp.Status))
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return nil
}

// Stop ends every poll loop and waits for them to exit.
func (c *HTTP) Stop(context.Context) error {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[domain.Topic]*httpSub)
	c.connected = false
	c.mu.Unlock()

	for _, s := range subs {
		s.cancel()
		<-s.done
	}
	return nil
}

func (c *HTTP) Publish(ctx context.Context, topic domain.Topic, payload []byte) error {
	if !c.Connected() {
		return errs.ErrNotConnected
	}
	if err := c.post(ctx, "/topics/"+url.PathEscape(topic), PublishRequest{Sender: c.id, Payload: payload}); err != nil {
		return errs.Transport("relay publish", err)
	}
	return nil
}

func (c *HTTP) Subscribe(ctx context.Context, topic domain.Topic, handler domain.MessageHandler) error {
	if c.replaceHandler(topic, handler) {
		return nil
	}
	if !c.Connected() {
		return errs.ErrNotConnected
	}

	// Resolve the current head before returning so that anything published
	// after Subscribe is observed. The lock is not held across the round trip.
	cursor, err := c.head(ctx, topic)
	if err != nil {
		return errs.Transport("relay subscribe", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return errs.ErrNotConnected
	}
	if s, ok := c.subs[topic]; ok {
		s.setHandler(handler)
		return nil
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	s := &httpSub{handler: handler, cancel: cancel, done: make(chan struct{})}
	c.subs[topic] = s
	go c.poll(pollCtx, topic, s, cursor)
	return nil
}

// replaceHandler swaps the handler of an existing subscription.
func (c *HTTP) replaceHandler(topic domain.Topic, handler domain.MessageHandler) bool {
	c.mu.Lock()
	s, ok := c.subs[topic]
	c.mu.Unlock()
	if ok {
		s.setHandler(handler)
	}
	return ok
}

func (c *HTTP) Unsubscribe(_ context.Context, topic domain.Topic) error {
	c.mu.Lock()
	s, ok := c.subs[topic]
	delete(c.subs, topic)
	c.mu.Unlock()

	if ok {
		s.cancel()
	}
	return nil
}

func (c *HTTP) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *HTTP) Protocol() domain.RelayProtocolOptions {
	return domain.RelayProtocolOptions{Protocol: ProtocolHTTP, Data: c.Base}
}

func (c *HTTP) poll(ctx context.Context, topic domain.Topic, s *httpSub, cursor int64) {
	defer close(s.done)
	log := c.log.WithField("topic", topic)
	backoff := time.Second

	for ctx.Err() == nil {
		resp, err := c.fetch(ctx, topic, cursor, c.PollWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("relay poll failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
		for _, m := range resp.Messages {
			s.mu.Lock()
			h := s.handler
			s.mu.Unlock()
			h(context.WithoutCancel(ctx), topic, m.Payload)
		}
		cursor = resp.Cursor
	}
}

func (c *HTTP) head(ctx context.Context, topic domain.Topic) (int64, error) {
	resp, err := c.fetch(ctx, topic, -1, 0)
	if err != nil {
		return 0, err
	}
	return resp.Cursor, nil
}

func (c *HTTP) fetch(ctx context.Context, topic domain.Topic, cursor int64, wait time.Duration) (PollResponse, error) {
	q := url.Values{}
	q.Set("cursor", strconv.FormatInt(cursor, 10))
	q.Set("client", c.id)
	if wait > 0 {
		q.Set("wait", wait.String())
	}
	u := c.Base + "/topics/" + url.PathEscape(topic) + "?" + q.Encode()

	var out PollResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return out, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return out, fmt.Errorf("relay get %s: %s", u, resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func (c *HTTP) post(ctx context.Context, path string, in any) error {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Base+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("relay post %s: %s", path, resp.Status)
	}
	return nil
}

var _ domain.Relay = (*HTTP)(nil)
