package engine

import (
	"github.com/roach88/beacon/internal/event"
	"github.com/roach88/beacon/internal/queue"
)

// Tracking calls are fire-and-forget. Before Start, or while analytics are
// disabled, they do nothing.

func (e *Engine) TrackRevenue(amount float64, currency string, opts ...event.Option) {
	e.Track(event.Revenue(e.clock.Now(), amount, currency, opts...))
}

func (e *Engine) TrackItemPurchase(name string, opts ...event.Option) {
	e.Track(event.ItemPurchase(e.clock.Now(), name, opts...))
}

func (e *Engine) TrackTutorial(step string) {
	e.Track(event.Tutorial(e.clock.Now(), step))
}

func (e *Engine) TrackMilestone(name, value string) {
	e.Track(event.Milestone(e.clock.Now(), name, value))
}

func (e *Engine) TrackMarketing(m event.Marketing) {
	e.Track(event.MarketingEvent(m))
}

func (e *Engine) TrackUserAttribute(name, value string) {
	e.Track(event.UserAttribute(name, value))
}

// TrackCountry takes an ISO 3166-1 alpha-2 code.
func (e *Engine) TrackCountry(country string) {
	e.Track(event.Country(country))
}

// Track queues an arbitrary event body.
func (e *Engine) Track(body event.Fields) {
	if !e.initialized || e.closed || !e.analyticsEnabled {
		return
	}
	e.track(body)
}

func (e *Engine) track(body event.Fields) {
	r, err := queue.NewRecord(e.identities, body)
	if err != nil {
		e.logger.Error("failed to encode event", "type", body.Type(), "error", err)
		return
	}
	e.pending.Append(r)
	e.metrics.Tracked(r.EventType())
	e.metrics.Pending(e.pending.Len())
}
