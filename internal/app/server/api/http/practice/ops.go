package practice

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

const basePath = "/api/v1/entities/{type}"

func (h *Handler) op(id, method, path, summary string) huma.Operation {
	return huma.Operation{
		OperationID: id,
		Method:      method,
		Path:        path,
		Summary:     summary,
		Tags:        []string{"entities"},
		Security:    []map[string][]string{{"bearer": {}}},
		Middlewares: h.middleware,
	}
}

func (h *Handler) createOp() huma.Operation {
	op := h.op("entities-create", http.MethodPost, basePath, "Создать запись")
	op.Description = "Идемпотентно по client_id: повтор возвращает ранее созданную запись со статусом 200."
	op.DefaultStatus = http.StatusCreated
	return op
}

func (h *Handler) updateOp() huma.Operation {
	op := h.op("entities-update", http.MethodPut, basePath+"/{id}", "Заменить данные записи")
	op.Description = "Отклоняется с 409 и текущей записью, если base_version устарела."
	return op
}

func (h *Handler) deleteOp() huma.Operation {
	op := h.op("entities-delete", http.MethodDelete, basePath+"/{id}", "Удалить запись")
	op.DefaultStatus = http.StatusNoContent
	return op
}

func (h *Handler) getOp() huma.Operation {
	return h.op("entities-get", http.MethodGet, basePath+"/{id}", "Получить запись, включая удалённую")
}

func (h *Handler) listOp() huma.Operation {
	return h.op("entities-list", http.MethodGet, basePath, "Изменения после момента since")
}
