package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
)

const (
	DefaultRequestTimeout = 5 * time.Minute
	DefaultExpiry         = 7 * 24 * time.Hour
	DefaultProposalExpiry = 5 * time.Minute
	DefaultSweepInterval  = time.Hour
)

type options struct {
	log            *logrus.Entry
	now            func() time.Time
	requestTimeout time.Duration
	expiry         time.Duration
	proposalExpiry time.Duration
	sweepInterval  time.Duration
	metadata       domain.Metadata
}

// Option configures a session engine.
type Option func(*options)

func defaultOptions() options {
	return options{
		log:            logrus.NewEntry(logrus.StandardLogger()),
		now:            time.Now,
		requestTimeout: DefaultRequestTimeout,
		expiry:         DefaultExpiry,
		proposalExpiry: DefaultProposalExpiry,
		sweepInterval:  DefaultSweepInterval,
	}
}

func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }

func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithRequestTimeout bounds how long Request waits for a response.
func WithRequestTimeout(d time.Duration) Option { return func(o *options) { o.requestTimeout = d } }

// WithExpiry sets the lifetime of sessions settled by this engine.
func WithExpiry(d time.Duration) Option { return func(o *options) { o.expiry = d } }

// WithProposalExpiry sets how long a proposal stays valid.
func WithProposalExpiry(d time.Duration) Option { return func(o *options) { o.proposalExpiry = d } }

func WithSweepInterval(d time.Duration) Option { return func(o *options) { o.sweepInterval = d } }

// WithMetadata sets the metadata advertised in proposals and settlements.
func WithMetadata(md domain.Metadata) Option { return func(o *options) { o.metadata = md } }
