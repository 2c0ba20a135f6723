package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type memStore struct {
	plain   map[string]float64
	labeled map[string]map[string]map[string]float64
}

func newMemStore() *memStore {
	return &memStore{
		plain:   make(map[string]float64),
		labeled: make(map[string]map[string]map[string]float64),
	}
}

func (s *memStore) GetMetric(name string) (float64, error) { return s.plain[name], nil }

func (s *memStore) SaveMetric(name string, value float64) error {
	s.plain[name] = value
	return nil
}

func (s *memStore) SaveMetricWithLabels(name, key, value string, v float64) error {
	if s.labeled[name] == nil {
		s.labeled[name] = make(map[string]map[string]float64)
	}
	if s.labeled[name][key] == nil {
		s.labeled[name][key] = make(map[string]float64)
	}
	s.labeled[name][key][value] = v
	return nil
}

func (s *memStore) GetMetricsWithLabels(name string) (map[string]map[string]float64, error) {
	return s.labeled[name], nil
}

func TestTrackChat(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.TrackChat(1, "alice")
	m.TrackChat(1, "alice")
	m.TrackChat(2, "bob")

	if got := GetMetricValue(m.MessagesHandled); got != 3 {
		t.Fatalf("expected 3 messages, got %v", got)
	}
	if got := GetMetricValue(m.ChatsCount); got != 2 {
		t.Fatalf("expected 2 chats, got %v", got)
	}
	if got := GetMetricValue(m.MessagesPerChat.WithLabelValues("1", "alice")); got != 2 {
		t.Fatalf("expected 2 messages for chat 1, got %v", got)
	}
}

func TestSaveThenLoad(t *testing.T) {
	store := newMemStore()

	before := New(prometheus.NewRegistry())
	before.CommandsProcessed.Add(4)
	before.AlertsTriggered.Add(2)
	before.TrackChat(10, "PrivateChat-10")
	before.TrackChat(10, "PrivateChat-10")
	before.Save(store)

	if store.plain["commands_processed"] != 4 || store.plain["alerts_triggered"] != 2 {
		t.Fatalf("unexpected saved values: %+v", store.plain)
	}

	after := New(prometheus.NewRegistry())
	after.Load(store)

	if got := GetMetricValue(after.CommandsProcessed); got != 4 {
		t.Fatalf("expected 4 commands after load, got %v", got)
	}
	if got := GetMetricValue(after.MessagesHandled); got != 2 {
		t.Fatalf("expected 2 messages after load, got %v", got)
	}
	if got := GetMetricValue(after.ChatsCount); got != 1 {
		t.Fatalf("expected 1 chat after load, got %v", got)
	}
	if got := GetMetricValue(after.MessagesPerChat.WithLabelValues("10", "PrivateChat-10")); got != 2 {
		t.Fatalf("expected per-chat counter to be restored, got %v", got)
	}
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AlertCycles.Inc()

	srv := httptest.NewServer(NewServer(0, reg).Handler)
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(body) != "OK" {
		t.Fatalf("unexpected health body %q", body)
	}

	resp, err = srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "stockwatch_alerts_cycles_total 1") {
		t.Fatalf("expected cycle counter in metrics output, got:\n%s", body)
	}
}
