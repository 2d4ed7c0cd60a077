package relay

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
)

// subscription delivers queued payloads for one topic to its handler on a
// dedicated goroutine, preserving arrival order.
type subscription struct {
	topic  domain.Topic
	log    *logrus.Entry
	notify chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handler domain.MessageHandler
	queue   [][]byte
}

func newSubscription(topic domain.Topic, handler domain.MessageHandler, log *logrus.Entry) *subscription {
	ctx, cancel := context.WithCancel(context.Background())
	s := &subscription{
		topic:   topic,
		log:     log.WithField("topic", topic),
		notify:  make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
		handler: handler,
	}
	go s.run()
	return s
}

func (s *subscription) setHandler(h domain.MessageHandler) {
	s.mu.Lock()
	s.handler = h
	s.mu.Unlock()
}

func (s *subscription) enqueue(payload []byte) {
	s.mu.Lock()
	s.queue = append(s.queue, payload)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscription) close() { s.cancel() }

func (s *subscription) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.notify:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 || s.ctx.Err() != nil {
				s.mu.Unlock()
				break
			}
			payload := s.queue[0]
			s.queue = s.queue[1:]
			h := s.handler
			s.mu.Unlock()

			s.deliver(h, payload)
		}
	}
}

func (s *subscription) deliver(h domain.MessageHandler, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("panic", r).Error("relay handler panicked")
		}
	}()
	h(context.WithoutCancel(s.ctx), s.topic, payload)
}
