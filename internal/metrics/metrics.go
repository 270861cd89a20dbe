package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geochat",
		Name:      "messages_sent_total",
		Help:      "Messages accepted by the store, by outcome.",
	}, []string{"outcome"})

	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geochat",
		Name:      "events_published_total",
		Help:      "Insert events handed to the notification broker, by backend.",
	}, []string{"backend"})

	EventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geochat",
		Name:      "events_delivered_total",
		Help:      "Insert events delivered to local subscriptions.",
	})

	SubscribersLagging = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "geochat",
		Name:      "subscribers_lagging_total",
		Help:      "Subscriptions terminated because their buffer was full.",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geochat",
		Name:      "subscribers",
		Help:      "Open notification subscriptions.",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "geochat",
		Name:      "websocket_clients",
		Help:      "Connected websocket clients.",
	})

	AuthorCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geochat",
		Name:      "author_cache_lookups_total",
		Help:      "Author cache lookups, by result (hit, miss, error).",
	}, []string{"result"})
)

// Handler exposes the default registry for gin
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
