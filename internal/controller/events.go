package controller

import (
	"context"
	"encoding/json"

	"live-clientv1/internal/indicator"
	"live-clientv1/internal/model"
	"live-clientv1/internal/realtime"
)

// runLoop is the controller's single mutation path: every channel event is
// fully applied before the next one is read, so stores never see interleaved
// partial updates.
func (c *Controller) runLoop(ctx context.Context, ch *realtime.Channel) {
	defer c.loopWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch.Events():
			c.handleEvent(ctx, ev)
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev realtime.Event) {
	switch ev.Kind {
	case realtime.KindConnected:
		// First open and every reconnect: the protocol has no resume cursor,
		// so re-pull history to resynchronize
		c.resync(ctx)
	case realtime.KindFrame:
		c.handleFrame(ctx, ev.Frame)
	case realtime.KindDisconnected:
		c.log.Info("realtime channel disconnected")
	case realtime.KindClosed:
		c.mu.Lock()
		c.lastErr = ev.Err
		c.mu.Unlock()
		c.log.Error("realtime channel failed, user action required", "err", ev.Err)
	}
}

// resync primes the stores from the API history endpoints. Failures are
// logged, not fatal: the stream keeps the stores converging.
func (c *Controller) resync(ctx context.Context) {
	id := c.SessionID()

	bars, err := c.api.GetBars(ctx, id, c.barLimit)
	if err != nil {
		c.log.Warn("bar backfill failed", "err", err)
	} else {
		accepted := c.bars.BulkLoad(bars)
		if dropped := len(bars) - accepted; dropped > 0 {
			c.log.Warn("dropped invalid bars from backfill", "count", dropped)
		}
		c.refreshIndicators()
	}

	trades, err := c.api.GetTrades(ctx, id, c.markerLimit)
	if err != nil {
		c.log.Warn("trade backfill failed", "err", err)
	} else {
		c.markers.LoadFromTrades(trades)
	}

	c.refreshStatus(ctx)
}

func (c *Controller) handleFrame(ctx context.Context, f model.Frame) {
	switch f.Type {
	case model.FrameBar:
		var b model.Bar
		if err := json.Unmarshal(f.Payload, &b); err != nil {
			c.log.Warn("dropping bad bar payload", "err", err)
			c.met.IncDropped()
			return
		}
		applied := c.bars.Upsert(b)
		c.met.ObserveBarUpsert(applied)
		if !applied {
			c.log.Warn("rejected invalid bar", "time", b.Time)
			return
		}
		c.refreshIndicators()
		if c.jrnl != nil {
			if err := c.jrnl.RecordBar(c.SessionID(), b); err != nil {
				c.log.Warn("journal bar write failed", "err", err)
			}
		}
		if c.pub != nil {
			c.pub.PublishBar(ctx, c.SessionID(), b)
		}

	case model.FrameTrade:
		var t model.Trade
		if err := json.Unmarshal(f.Payload, &t); err != nil {
			c.log.Warn("dropping bad trade payload", "err", err)
			c.met.IncDropped()
			return
		}
		c.markers.AddFromTrade(t)
		if c.jrnl != nil {
			if err := c.jrnl.RecordTrade(c.SessionID(), t); err != nil {
				c.log.Warn("journal trade write failed", "err", err)
			}
		}
		if c.pub != nil {
			c.pub.PublishTrade(ctx, c.SessionID(), t)
		}
		// Aggregate metrics depend on the full trade list, not just this
		// event, so refetch the session state out of band
		c.refreshStatus(ctx)

	case model.FrameStateUpdate:
		var st model.SessionState
		if err := json.Unmarshal(f.Payload, &st); err != nil {
			c.log.Warn("dropping bad state payload", "err", err)
			c.met.IncDropped()
			return
		}
		c.applyState(ctx, st)

	case model.FrameError:
		var ep model.ErrorPayload
		_ = json.Unmarshal(f.Payload, &ep)
		c.log.Error("server reported error", "detail", ep.Detail)
	}
}

func (c *Controller) refreshIndicators() {
	series := indicator.Compute(c.bars.Snapshot(), c.indCfg)
	c.mu.Lock()
	c.series = series
	c.mu.Unlock()
}

func (c *Controller) refreshStatus(ctx context.Context) {
	resp, err := c.api.GetSession(ctx, c.SessionID())
	if err != nil {
		c.log.Warn("session status refresh failed", "err", err)
		return
	}
	if resp.LastState != nil {
		c.applyState(ctx, *resp.LastState)
	}
}

func (c *Controller) applyState(ctx context.Context, st model.SessionState) {
	c.mu.Lock()
	cp := st
	c.lastState = &cp
	c.summary = deriveSummary(c.cfg.InitialDeposit, st)
	sum := c.summary
	c.mu.Unlock()

	if c.pub != nil {
		c.pub.PublishState(ctx, c.SessionID(), st, sum)
	}
}

// deriveSummary computes return %, trade count and win rate from the initial
// deposit and the recent trade list.
func deriveSummary(initialDeposit float64, st model.SessionState) model.Summary {
	var s model.Summary
	if initialDeposit > 0 {
		s.ReturnPct = (st.Equity - initialDeposit) / initialDeposit * 100
	}
	s.TradeCount = len(st.RecentTrades)

	wins, closed := 0, 0
	for _, t := range st.RecentTrades {
		if t.PnL == nil {
			continue
		}
		closed++
		if *t.PnL > 0 {
			wins++
		}
	}
	if closed > 0 {
		s.WinRate = float64(wins) / float64(closed) * 100
	}
	return s
}
