// Package monitor drives the watchdog: it probes connectivity in a loop,
// counts consecutive failures of the same kind and cycles the radio once the
// configured threshold is reached.
//
// Each iteration is computed as a Decision (what was observed, what was done,
// how long to wait) before the loop suspends, so the cadence can be tested
// with an injected clock and sleeper.
package monitor

import (
	"context"
	"errors"
	"os"
	"time"

	"wifiwatchdog/internal/history"
	"wifiwatchdog/internal/logging"
	"wifiwatchdog/internal/models"
	"wifiwatchdog/internal/netif"
)

// Prober runs one connectivity check.
type Prober interface {
	Probe(ctx context.Context, iface string) models.ConnectivityStatus
}

// Radio is the set of interface actions used for recovery and startup.
//
// Every method is best-effort from the controller's point of view: a returned
// error is logged and otherwise ignored. The next probe decides whether the
// action helped.
type Radio interface {
	SetLinkDown(iface string) error
	SetLinkUp(iface string) error
	Reassociate(ctx context.Context, iface string) error
	PowerSave(ctx context.Context, iface string) (bool, error)
	SetPowerSave(ctx context.Context, iface string, enabled bool) error
}

// Config is the controller's fixed configuration.
type Config struct {
	Interface string
	Threshold int
	Healthy   time.Duration
	Retry     time.Duration
	Recovery  time.Duration
	Settle    time.Duration
}

// Action is what an iteration did after observing the probe result.
type Action int

const (
	// ActionHealthy means connectivity was verified.
	ActionHealthy Action = iota
	// ActionRetry means a failure below the threshold; nothing was changed.
	ActionRetry
	// ActionRecover means the radio was cycled.
	ActionRecover
	// ActionStop means the context ended during the probe and the
	// observation was discarded.
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionHealthy:
		return "healthy"
	case ActionRetry:
		return "retry"
	case ActionRecover:
		return "recover"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

// Decision is the outcome of one iteration.
type Decision struct {
	Status models.ConnectivityStatus
	Streak int
	Action Action
	// Delay is the wait before the next iteration.
	Delay time.Duration
	// SessionOpened is set when this iteration started a recovery session.
	SessionOpened bool
	// Recovered is set when this iteration closed a recovery session;
	// Downtime then holds its duration.
	Recovered bool
	Downtime  time.Duration
}

// Controller runs the probe/recover loop for one interface.
type Controller struct {
	cfg    Config
	prober Prober
	radio  Radio
	log    *logging.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error

	track tracker

	cancel context.CancelFunc
	doneCh chan struct{}
}

// New creates a controller. Non-positive durations and thresholds fall back
// to the defaults.
func New(cfg Config, prober Prober, radio Radio, log *logging.Logger) *Controller {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	if cfg.Healthy <= 0 {
		cfg.Healthy = 15 * time.Second
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 5 * time.Second
	}
	if cfg.Recovery <= 0 {
		cfg.Recovery = 60 * time.Second
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Controller{
		cfg:    cfg,
		prober: prober,
		radio:  radio,
		log:    log,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// Start launches Run in a goroutine.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.doneCh = make(chan struct{})
	go func() {
		defer close(c.doneCh)
		c.Run(ctx)
	}()
}

// Stop requests loop termination and waits until it is done.
func (c *Controller) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.doneCh
}

// Run disables power saving once and then iterates until ctx is done. The
// context is checked at the top of every iteration; a pending sleep ends
// early when it is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.log.Infof("watchdog started interface=%s pid=%d threshold=%d", c.cfg.Interface, os.Getpid(), c.cfg.Threshold)
	defer c.log.Infof("watchdog stopping")

	c.preparePowerSave(ctx)

	for {
		if ctx.Err() != nil {
			return
		}
		d := c.Step(ctx)
		if d.Action == ActionStop {
			return
		}
		c.log.Debugf("next check in %s (%s)", d.Delay, d.Action)
		if err := c.sleep(ctx, d.Delay); err != nil {
			return
		}
	}
}

// Step runs one iteration without the trailing sleep.
func (c *Controller) Step(ctx context.Context) Decision {
	status := c.prober.Probe(ctx, c.cfg.Interface)
	if ctx.Err() != nil {
		return Decision{Status: status, Action: ActionStop}
	}
	now := c.now()
	d := Decision{Status: status}

	if status.OK() {
		if downtime, closed := c.track.healthy(now); closed {
			d.Recovered = true
			d.Downtime = downtime
			c.log.Recoveryf("%s", history.RecoveredMessage(downtime))
		}
		c.log.Infof("%s", history.StateMessage(status.State, 0, c.cfg.Threshold, status.Detail))
		c.log.Infof("%s", history.StatusMessage(status.Diagnostics))
		d.Action = ActionHealthy
		d.Delay = c.cfg.Healthy
		return d
	}

	d.Streak = c.track.fail(status.State)
	c.log.Infof("%s", history.StateMessage(status.State, d.Streak, c.cfg.Threshold, status.Detail))
	c.log.Infof("%s", history.StatusMessage(status.Diagnostics))

	if d.Streak < c.cfg.Threshold {
		d.Action = ActionRetry
		d.Delay = c.cfg.Retry
		return d
	}

	if c.track.open(now) {
		d.SessionOpened = true
		c.log.Recoveryf("%s", history.RecoveryStartMessage(status.State))
	}
	c.cycleRadio(ctx)
	d.Action = ActionRecover
	d.Delay = c.cfg.Recovery
	return d
}

// cycleRadio takes the interface down, lets the driver settle, brings it
// back up and asks the supplicant to reassociate. The interface is brought
// back up even when the settle pause is cut short.
func (c *Controller) cycleRadio(ctx context.Context) {
	iface := c.cfg.Interface

	if err := c.radio.SetLinkDown(iface); err != nil {
		c.log.Warnf("recovery: link down %s: %v", iface, err)
	}
	_ = c.sleep(ctx, c.cfg.Settle)
	if err := c.radio.SetLinkUp(iface); err != nil {
		c.log.Warnf("recovery: link up %s: %v", iface, err)
	}

	// Runs on its own deadline; ctx may already be cancelled here.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	err := c.radio.Reassociate(rctx, iface)
	switch {
	case err == nil:
		c.log.Debugf("recovery: reassociation requested on %s", iface)
	case errors.Is(err, netif.ErrUnavailable):
		c.log.Debugf("recovery: reassociation skipped: %v", err)
	default:
		c.log.Warnf("recovery: reassociate %s: %v", iface, err)
	}
}

func (c *Controller) preparePowerSave(ctx context.Context) {
	iface := c.cfg.Interface
	on, err := c.radio.PowerSave(ctx, iface)
	if err != nil {
		c.log.Debugf("power save state unavailable on %s: %v", iface, err)
		return
	}
	if !on {
		return
	}
	if err := c.radio.SetPowerSave(ctx, iface, false); err != nil {
		c.log.Warnf("disable power save on %s: %v", iface, err)
		return
	}
	c.log.Infof("power save disabled on %s", iface)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
