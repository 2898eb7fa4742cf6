// Package ucenter implements the platform account SDK component. Requests run
// on background goroutines; their callbacks run on the update thread.
package ucenter

import (
	"context"

	"github.com/google/uuid"
	"github.com/zeusync/ecengine/internal/core/ec"
	"github.com/zeusync/ecengine/internal/core/observability/log"
)

const (
	ArgConfig = "ucenter.config"
	// ArgClient overrides the account-center client.
	ArgClient = "ucenter.client"
)

type LoginCallback func(session Session, err error)

type loginResult struct {
	requestID string
	session   Session
	err       error
	callback  LoginCallback
}

type Component struct {
	ec.Base

	cfg    Config
	client Client
	logger log.Log

	results  chan loginResult
	pending  string
	session  *Session
	detached bool
}

func New() *Component {
	return &Component{cfg: DefaultConfig()}
}

func (c *Component) OnAttach(e *ec.Entity, args ec.Args) error {
	if cfg, ok := ec.Value[Config](args, ArgConfig); ok {
		c.cfg = cfg
	}
	if c.cfg.Timeout <= 0 {
		c.cfg.Timeout = DefaultConfig().Timeout
	}
	c.logger = ec.LoggerFrom(args).With(
		log.String("component", "ucenter"),
		log.Uint64("entity", uint64(e.ID())),
	)
	c.results = make(chan loginResult, 1)

	if client, ok := ec.Value[Client](args, ArgClient); ok && client != nil {
		c.client = client
		return nil
	}
	// An SDK without a base URL stays usable offline; Login reports ErrNoBaseURL.
	if c.cfg.BaseURL != "" {
		client, err := NewHTTPClient(c.cfg)
		if err != nil {
			return err
		}
		c.client = client
	}
	return nil
}

// Login starts an asynchronous login. The callback runs during a later
// OnUpdate. It returns the request id used to correlate server logs.
func (c *Component) Login(account, password string, cb LoginCallback) (string, error) {
	switch {
	case c.detached:
		return "", ErrDetached
	case c.client == nil:
		return "", ErrNoBaseURL
	case c.pending != "":
		return "", ErrLoginInProgress
	}

	req := LoginRequest{
		RequestID: uuid.NewString(),
		AppID:     c.cfg.AppID,
		Account:   account,
		Password:  password,
	}
	c.pending = req.RequestID
	client, results, timeout := c.client, c.results, c.cfg.Timeout

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		session, err := client.Login(ctx, req)
		results <- loginResult{requestID: req.RequestID, session: session, err: err, callback: cb}
	}()

	c.logger.Debug("login started", log.String("request_id", req.RequestID), log.String("account", account))
	return req.RequestID, nil
}

func (c *Component) OnUpdate(float64) error {
	for {
		select {
		case res := <-c.results:
			c.complete(res)
		default:
			return nil
		}
	}
}

func (c *Component) complete(res loginResult) {
	c.pending = ""
	if res.err != nil {
		c.logger.Warn("login failed", log.String("request_id", res.requestID), log.Error(res.err))
	} else {
		session := res.session
		c.session = &session
		c.logger.Info("login succeeded", log.String("request_id", res.requestID), log.String("account_id", session.AccountID))
	}
	if res.callback != nil {
		res.callback(res.session, res.err)
	}
}

// Session returns the current session, if any.
func (c *Component) Session() (Session, bool) {
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

func (c *Component) LoggedIn() bool { return c.session != nil }

func (c *Component) Logout() error {
	if c.session == nil {
		return ErrNotLoggedIn
	}
	c.session = nil
	return nil
}

// Pending reports whether a login is in flight.
func (c *Component) Pending() bool { return c.pending != "" }

func (c *Component) Config() Config { return c.cfg }

// OnDetach drops the session. A login still in flight completes into the
// buffered result channel and is discarded.
func (c *Component) OnDetach() {
	c.detached = true
	c.session = nil
}
