package metrics

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

const (
	namespace = "stockwatch"
	subsystem = "telegram_bot"
)

// MetricStore persists counters across restarts.
type MetricStore interface {
	GetMetric(metricName string) (float64, error)
	SaveMetric(metricName string, value float64) error
	SaveMetricWithLabels(metricName, labelKey, labelValue string, value float64) error
	GetMetricsWithLabels(metricName string) (map[string]map[string]float64, error)
}

type Metrics struct {
	CommandsProcessed prometheus.Counter
	MessagesHandled   prometheus.Counter
	ChatsCount        prometheus.Gauge
	ChatNames         *prometheus.CounterVec
	MessagesPerChat   *prometheus.CounterVec
	ChatsSet          map[int64]string

	AlertCycles      prometheus.Counter
	WatchesEvaluated prometheus.Counter
	AlertsTriggered  prometheus.Counter
	FetchFailures    *prometheus.CounterVec
	DeliveryFailures prometheus.Counter
	StoreFailures    prometheus.Counter
	ActiveWatches    prometheus.Gauge
	CycleDuration    prometheus.Histogram

	Mutex sync.Mutex
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		ChatsCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "chats_count",
			Help:      "The current number of unique chats the bot is operating in",
		}),
		ChatNames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "chat_names",
				Help:      "Tracks chats the bot has interacted with",
			},
			[]string{"chat_id", "chat_name"},
		),
		MessagesPerChat: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "messages_per_chat",
				Help:      "The total number of messages handled per chat",
			},
			[]string{"chat_id", "chat_name"},
		),
		ChatsSet: make(map[int64]string),

		AlertCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "cycles_total",
			Help:      "Completed passes over the watch table",
		}),
		WatchesEvaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "watches_evaluated_total",
			Help:      "Watches evaluated against a fresh price sample",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "triggered_total",
			Help:      "Watches whose condition fired",
		}),
		FetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "alerts",
				Name:      "fetch_failures_total",
				Help:      "Price fetches that failed, by reason",
			},
			[]string{"reason"},
		),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "delivery_failures_total",
			Help:      "Alert notifications that could not be delivered",
		}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "store_failures_total",
			Help:      "Watch store operations that failed inside the alert loop",
		}),
		ActiveWatches: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "active_watches",
			Help:      "Watches present at the start of the last cycle",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one alert cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
	}

	reg.MustRegister(
		m.CommandsProcessed,
		m.MessagesHandled,
		m.ChatsCount,
		m.ChatNames,
		m.MessagesPerChat,
		m.AlertCycles,
		m.WatchesEvaluated,
		m.AlertsTriggered,
		m.FetchFailures,
		m.DeliveryFailures,
		m.StoreFailures,
		m.ActiveWatches,
		m.CycleDuration,
	)

	return m
}

// TrackChat counts a handled message for the chat and records the chat the
// first time it is seen.
func (m *Metrics) TrackChat(chatID int64, chatName string) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	m.MessagesHandled.Inc()
	if _, exists := m.ChatsSet[chatID]; !exists {
		m.ChatsSet[chatID] = chatName
		m.ChatsCount.Set(float64(len(m.ChatsSet)))

		m.ChatNames.WithLabelValues(fmt.Sprintf("%d", chatID), chatName).Inc()
	}
	m.MessagesPerChat.WithLabelValues(fmt.Sprintf("%d", chatID), chatName).Inc()
}

func (m *Metrics) Load(store MetricStore) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	// Load non-labeled metrics
	commandsProcessed, _ := store.GetMetric("commands_processed")
	messagesHandled, _ := store.GetMetric("messages_handled")
	alertsTriggered, _ := store.GetMetric("alerts_triggered")

	m.CommandsProcessed.Add(commandsProcessed)
	m.MessagesHandled.Add(messagesHandled)
	m.AlertsTriggered.Add(alertsTriggered)

	// Load labeled metrics
	loadLabeledMetrics(store, "chat_names", func(chatIDStr, chatName string, _ float64) {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			log.Errorf("Failed to parse chatID %s: %v", chatIDStr, err)
			return
		}
		m.ChatNames.WithLabelValues(chatIDStr, chatName).Add(1)
		m.ChatsSet[chatID] = chatName
	})
	m.ChatsCount.Set(float64(len(m.ChatsSet)))

	loadLabeledMetrics(store, "messages_per_chat", func(chatID, chatName string, value float64) {
		m.MessagesPerChat.WithLabelValues(chatID, chatName).Add(value)
	})

	log.Info("Metrics loaded from database.")
}

func loadLabeledMetrics(store MetricStore, metricName string, callback func(labelKey, labelValue string, value float64)) {
	metricsWithLabels, err := store.GetMetricsWithLabels(metricName)
	if err != nil {
		log.Errorf("Failed to load %s: %v", metricName, err)
		return
	}
	for labelKey, labelValues := range metricsWithLabels {
		for labelValue, value := range labelValues {
			callback(labelKey, labelValue, value)
		}
	}
}

func (m *Metrics) Save(store MetricStore) {
	m.Mutex.Lock()
	defer m.Mutex.Unlock()

	save := func(err error) {
		if err != nil {
			log.Errorf("Failed to save metric: %v", err)
		}
	}

	// Save non-labeled metrics
	save(store.SaveMetric("commands_processed", GetMetricValue(m.CommandsProcessed)))
	save(store.SaveMetric("messages_handled", GetMetricValue(m.MessagesHandled)))
	save(store.SaveMetric("alerts_triggered", GetMetricValue(m.AlertsTriggered)))
	save(store.SaveMetric("chats_count", float64(len(m.ChatsSet))))

	// Save labeled metrics: chat_names
	for chatID, chatName := range m.ChatsSet {
		save(store.SaveMetricWithLabels("chat_names", fmt.Sprintf("%d", chatID), chatName, float64(chatID)))
	}

	// Save labeled metrics: messages_per_chat
	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		m.MessagesPerChat.Collect(metricChan)
		close(metricChan)
	}()

	for metric := range metricChan {
		metricProto := &dto.Metric{}
		if err := metric.Write(metricProto); err != nil {
			log.Errorf("Failed to read MessagesPerChat metric: %v", err)
			continue
		}
		var chatID, chatName string
		for _, label := range metricProto.Label {
			if label.GetName() == "chat_id" {
				chatID = label.GetValue()
			}
			if label.GetName() == "chat_name" {
				chatName = label.GetValue()
			}
		}
		save(store.SaveMetricWithLabels("messages_per_chat", chatID, chatName, metricProto.Counter.GetValue()))
	}

	log.Info("Metrics saved to database.")
}

// GetMetricValue reads the current value of a single counter or gauge.
func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Errorf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
