package pairing

import (
	"time"

	"github.com/sirupsen/logrus"

	"pairlink/internal/domain"
)

const (
	DefaultApprovalTimeout = 5 * time.Minute
	DefaultExpiry          = 30 * 24 * time.Hour
	DefaultSweepInterval   = time.Hour
)

type options struct {
	log             *logrus.Entry
	now             func() time.Time
	approvalTimeout time.Duration
	expiry          time.Duration
	sweepInterval   time.Duration
	metadata        domain.Metadata
}

// Option configures an Engine.
type Option func(*options)

func defaultOptions() options {
	return options{
		log:             logrus.NewEntry(logrus.StandardLogger()),
		now:             time.Now,
		approvalTimeout: DefaultApprovalTimeout,
		expiry:          DefaultExpiry,
		sweepInterval:   DefaultSweepInterval,
	}
}

// WithLogger sets the log entry the engine derives its fields from.
func WithLogger(l *logrus.Entry) Option { return func(o *options) { o.log = l } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *options) { o.now = now } }

// WithApprovalTimeout bounds how long Create waits for the peer's approve.
func WithApprovalTimeout(d time.Duration) Option { return func(o *options) { o.approvalTimeout = d } }

// WithExpiry sets the default lifetime of new pairings.
func WithExpiry(d time.Duration) Option { return func(o *options) { o.expiry = d } }

// WithSweepInterval sets how often expired pairings are removed.
func WithSweepInterval(d time.Duration) Option { return func(o *options) { o.sweepInterval = d } }

// WithMetadata sets the metadata advertised for this peer.
func WithMetadata(md domain.Metadata) Option { return func(o *options) { o.metadata = md } }
