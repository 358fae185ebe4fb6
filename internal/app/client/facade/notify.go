package facade

// Level — важность уведомления.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier показывает пользователю результат записи.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc адаптирует функцию к Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

type discard struct{}

func (discard) Notify(Notification) {}
