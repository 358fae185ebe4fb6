package network

import (
	"context"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Prober проверяет доступность сервера лёгким запросом.
type Prober interface {
	Probe(ctx context.Context) error
}

// Transition — зафиксированная смена состояния сети.
type Transition struct {
	From bool
	To   bool
	At   time.Time
}

// Online сообщает, что переход ведёт в онлайн.
func (t Transition) Online() bool {
	return t.To
}

type Config struct {
	Debounce      time.Duration
	PollInterval  time.Duration
	ProbeTimeout  time.Duration
	InitialOnline bool
}

func DefaultConfig() Config {
	return Config{
		Debounce:     2 * time.Second,
		PollInterval: 15 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Monitor хранит признак доступности сервера. Сырые сигналы применяются, только если
// продержались дольше окна Debounce.
type Monitor struct {
	prober Prober
	cfg    Config
	log    *slog.Logger

	mu        sync.Mutex
	online    bool
	candidate bool
	timer     *time.Timer
	subs      map[int]chan Transition
	nextSub   int
}

func NewMonitor(prober Prober, cfg Config, log *slog.Logger) *Monitor {
	return &Monitor{
		prober: prober,
		cfg:    cfg,
		log:    log.With("component", "network_monitor"),
		online: cfg.InitialOnline,
		subs:   make(map[int]chan Transition),
	}
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Subscribe возвращает поток переходов. Медленный подписчик теряет события, а не блокирует монитор.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan Transition, 8)
	m.subs[id] = ch

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

// Report принимает сырой сигнал доступности.
func (m *Monitor) Report(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if online == m.online {
		// Флап вернулся к текущему состоянию до истечения окна.
		m.stopTimer()
		return
	}
	if m.timer != nil && m.candidate == online {
		return
	}

	m.stopTimer()
	m.candidate = online
	if m.cfg.Debounce <= 0 {
		m.commit(online)
		return
	}
	m.timer = time.AfterFunc(m.cfg.Debounce, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.timer == nil || m.candidate != online {
			return
		}
		m.timer = nil
		m.commit(online)
	})
}

// Force применяет состояние сразу, минуя окно.
func (m *Monitor) Force(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimer()
	m.commit(online)
}

// Check выполняет пробу немедленно и возвращает её результат, не дожидаясь окна.
func (m *Monitor) Check(ctx context.Context) bool {
	timeout := m.cfg.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.prober.Probe(ctx)
	if err != nil {
		m.log.Debug("server probe failed", "error", err)
	}
	reachable := err == nil
	m.Report(reachable)
	return reachable
}

// Run периодически проверяет доступность сервера до отмены ctx.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.PollInterval
	if interval <= 0 {
		interval = DefaultConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			m.mu.Lock()
			m.stopTimer()
			m.mu.Unlock()
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

func (m *Monitor) commit(online bool) {
	if online == m.online {
		return
	}
	tr := Transition{From: m.online, To: online, At: time.Now()}
	m.online = online

	m.log.Info("network state changed", "online", online)
	for _, ch := range m.subs {
		select {
		case ch <- tr:
		default:
		}
	}
}

func (m *Monitor) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
