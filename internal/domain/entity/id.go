package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const tempPrefix = "temp_"

// NewTempID генерирует временный идентификатор вида temp_<unix-millis>_<random>.
func NewTempID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s%d_%s", tempPrefix, now.UnixMilli(), random)
}

// IsTempID сообщает, выдан ли идентификатор клиентом до первой синхронизации.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// ServerID разбирает серверный идентификатор.
func ServerID(id string) (int64, bool) {
	if IsTempID(id) {
		return 0, false
	}
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FormatID — строковая форма серверного идентификатора.
func FormatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
