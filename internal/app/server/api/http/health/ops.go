package health

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const path = "/api/v1/health"

func (h *Handler) healthCheckOp() huma.Operation {
	return huma.Operation{
		OperationID: "health-check",
		Method:      http.MethodGet,
		Path:        path,
		Summary:     "Состояние сервиса",
		Description: "Возвращает состояние сервиса и базы данных",
		Tags:        []string{"health"},
		Middlewares: h.middleware,
	}
}

// probeOp — лёгкая проверка доступности для монитора сети клиента.
func (h *Handler) probeOp() huma.Operation {
	return huma.Operation{
		OperationID:   "health-probe",
		Method:        http.MethodHead,
		Path:          path,
		Summary:       "Проверка доступности",
		Tags:          []string{"health"},
		DefaultStatus: http.StatusOK,
		Middlewares:   h.middleware,
	}
}
