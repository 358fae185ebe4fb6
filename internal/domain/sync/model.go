package sync

import (
	"time"
)

// State — стадия прохода синхронизации.
type State string

const (
	StateIdle           State = "idle"
	StatePreparing      State = "preparing"
	StatePushing        State = "pushing"
	StatePulling        State = "pulling"
	StateReconciling    State = "reconciling"
	StateSuccess        State = "success"
	StatePartialSuccess State = "partial-success"
	StateError          State = "error"
	StateCancelled      State = "cancelled"
)

// Progress публикуется после каждой операции.
type Progress struct {
	State      State   `json:"state"`
	Total      int     `json:"total"`
	Processed  int     `json:"processed"`
	Successful int     `json:"successful"`
	Failed     int     `json:"failed"`
	Conflicts  int     `json:"conflicts"`
	Percentage float64 `json:"percentage"`
}

// Result — итог прохода. Deferred считает операции, отложенные до синхронизации записей,
// на которые они ссылаются.
type Result struct {
	State      State         `json:"state"`
	Total      int           `json:"total"`
	Processed  int           `json:"processed"`
	Successful int           `json:"successful"`
	Failed     int           `json:"failed"`
	Conflicts  int           `json:"conflicts"`
	Deferred   int           `json:"deferred"`
	Pulled     int           `json:"pulled"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Errors     []OpError     `json:"errors,omitempty"`
	Err        error         `json:"-"`
}

// OpError описывает неудачную операцию прохода.
type OpError struct {
	OperationID int64  `json:"operation_id"`
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	Operation   string `json:"operation"`
	Error       string `json:"error"`
	Terminal    bool   `json:"terminal"`
}

func (r *Result) progress(state State) Progress {
	p := Progress{
		State:      state,
		Total:      r.Total,
		Processed:  r.Processed,
		Successful: r.Successful,
		Failed:     r.Failed,
		Conflicts:  r.Conflicts,
		Percentage: 100,
	}
	if r.Total > 0 {
		p.Percentage = float64(r.Processed) * 100 / float64(r.Total)
	}
	return p
}

// Status — текущее состояние движка для интерфейса.
type Status struct {
	State         State     `json:"state"`
	Running       bool      `json:"running"`
	Cancelled     bool      `json:"cancelled"`
	Progress      Progress  `json:"progress"`
	LastResult    *Result   `json:"last_result,omitempty"`
	LastSyncAt    time.Time `json:"last_sync_at"`
	LastRefreshAt time.Time `json:"last_refresh_at"`
	TotalPasses   int       `json:"total_passes"`
	TotalErrors   int       `json:"total_errors"`
}
