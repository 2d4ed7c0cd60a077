package relay

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultRetention = 1024
	maxPollWait      = 60 * time.Second
)

type storedMessage struct {
	seq     int64
	sender  string
	payload []byte
}

// topicLog is an append-only window of recent messages on one topic.
type topicLog struct {
	msgs    []storedMessage
	next    int64
	changed chan struct{}
}

// Server is the in-memory HTTP relay. It stores a bounded window of sealed
// payloads per topic and serves them to long-polling clients.
//
//	GET  /healthz
//	POST /topics/{topic}                          body PublishRequest
//	GET  /topics/{topic}?cursor=N&client=ID&wait=D  -> PollResponse
//
// A negative cursor returns the current head without messages. Messages
// published by the polling client itself are skipped.
type Server struct {
	Retention int

	log *logrus.Entry

	mu     sync.Mutex
	topics map[string]*topicLog
}

// NewServer returns an empty relay server.
func NewServer() *Server {
	return &Server{
		Retention: defaultRetention,
		log:       logrus.WithField("component", "relay.server"),
		topics:    make(map[string]*topicLog),
	}
}

// Handler returns the HTTP routes of the relay.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/topics/", func(w http.ResponseWriter, r *http.Request) {
		topic := strings.TrimPrefix(r.URL.Path, "/topics/")
		if topic == "" || strings.Contains(topic, "/") {
			http.Error(w, "bad topic", http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodPost:
			s.handlePublish(w, r, topic)
		case http.MethodGet:
			s.handlePoll(w, r, topic)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	return s.accessLog(mux)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request, topic string) {
	defer r.Body.Close()
	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	tl := s.topicLocked(topic)
	tl.msgs = append(tl.msgs, storedMessage{seq: tl.next, sender: req.Sender, payload: req.Payload})
	tl.next++
	if over := len(tl.msgs) - s.Retention; over > 0 {
		tl.msgs = append([]storedMessage(nil), tl.msgs[over:]...)
	}
	close(tl.changed)
	tl.changed = make(chan struct{})
	s.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request, topic string) {
	q := r.URL.Query()
	cursor, err := strconv.ParseInt(q.Get("cursor"), 10, 64)
	if err != nil {
		http.Error(w, "bad cursor", http.StatusBadRequest)
		return
	}
	var wait time.Duration
	if raw := q.Get("wait"); raw != "" {
		if wait, err = time.ParseDuration(raw); err != nil {
			http.Error(w, "bad wait", http.StatusBadRequest)
			return
		}
	}
	if wait > maxPollWait {
		wait = maxPollWait
	}
	client := q.Get("client")

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		tl := s.topicLocked(topic)
		if cursor < 0 {
			resp := PollResponse{Cursor: tl.next}
			s.mu.Unlock()
			writeJSON(w, resp)
			return
		}
		resp := PollResponse{Cursor: tl.next}
		for _, m := range tl.msgs {
			if m.seq >= cursor && m.sender != client {
				resp.Messages = append(resp.Messages, PolledMessage{Seq: m.seq, Payload: m.payload})
			}
		}
		changed := tl.changed
		s.mu.Unlock()

		if len(resp.Messages) > 0 || wait == 0 {
			writeJSON(w, resp)
			return
		}
		select {
		case <-changed:
		case <-deadline.C:
			writeJSON(w, resp)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) topicLocked(topic string) *topicLog {
	tl, ok := s.topics[topic]
	if !ok {
		tl = &topicLog{changed: make(chan struct{})}
		s.topics[topic] = tl
	}
	return tl
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// accessLog records method, path, remote, status, bytes and duration.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"remote":   r.RemoteAddr,
			"status":   rec.status,
			"bytes":    rec.bytes,
			"duration": time.Since(start),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
