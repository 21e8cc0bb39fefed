package bootstrap

import (
	"context"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/bytedance/sonic"

	"orate-server-go/internal/domain/eventbus"
	"orate-server-go/internal/domain/session"
	"orate-server-go/internal/domain/session/store"
	platformerrors "orate-server-go/internal/platform/errors"
	platformlogging "orate-server-go/internal/platform/logging"
	platformstorage "orate-server-go/internal/platform/storage"
)

func sharedBus() evbus.Bus {
	return eventbus.Get()
}

// registerEventHandlers wires the persistence side of the event bus: closed
// sessions land in the summary store, per-tick metrics are appended to the
// metric event log. Metric handlers run async so they never block a tick.
func registerEventHandlers(st store.Store, logger *platformlogging.Logger) error {
	const op = "eventbus:register-handlers"
	bus := sharedBus()

	err := bus.Subscribe(eventbus.TopicSessionClosed, func(evt eventbus.SessionClosedEvent) {
		summary, ok := evt.Summary.(session.Summary)
		if !ok {
			logger.WarnTag("Storage", "session %s closed with unexpected summary payload", evt.SessionID)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.Save(ctx, summary); err != nil {
			logger.ErrorTag("Storage", "failed to save summary for session %s: %v", evt.SessionID, err)
			return
		}
		logger.InfoTag("Storage", "saved summary for session %s", evt.SessionID)
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, op, "subscribe session.closed", err)
	}

	err = bus.SubscribeAsync(eventbus.TopicAudioMetrics, func(evt eventbus.AudioMetricsEvent) {
		recordMetricEvent(logger, eventbus.TopicAudioMetrics, evt.SessionID, evt.Metrics, evt.At)
	}, false)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, op, "subscribe metrics.audio", err)
	}

	err = bus.SubscribeAsync(eventbus.TopicFacialMetrics, func(evt eventbus.FacialMetricsEvent) {
		recordMetricEvent(logger, eventbus.TopicFacialMetrics, evt.SessionID, evt.Metrics, evt.At)
	}, false)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, op, "subscribe metrics.facial", err)
	}

	return nil
}

func recordMetricEvent(logger *platformlogging.Logger, eventType, sessionID string, metrics any, at time.Time) {
	payload, err := sonic.Marshal(metrics)
	if err != nil {
		logger.WarnTag("Storage", "failed to encode %s event: %v", eventType, err)
		return
	}

	record := platformstorage.MetricEvent{
		EventType: eventType,
		SessionID: sessionID,
		Data:      payload,
		CreatedAt: at,
	}
	if err := platformstorage.GetDB().Create(&record).Error; err != nil {
		logger.DebugTag("Storage", "failed to record %s event: %v", eventType, err)
	}
}
