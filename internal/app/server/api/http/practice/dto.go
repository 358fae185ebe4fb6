package practice

import (
	"encoding/json"

	"vetsync/internal/domain/entity"
)

type createInput struct {
	Type entity.Type `path:"type" doc:"Тип сущности"`
	Body struct {
		ClientID string          `json:"client_id,omitempty" doc:"Временный id клиента; повтор с тем же id не создаёт дубль"`
		Data     json.RawMessage `json:"data" doc:"Поля сущности"`
	}
}

type updateInput struct {
	Type entity.Type `path:"type" doc:"Тип сущности"`
	ID   int64       `path:"id" minimum:"1"`
	Body struct {
		BaseVersion int64           `json:"base_version" doc:"Версия, от которой клиент начал правку; 0 — без проверки"`
		Data        json.RawMessage `json:"data"`
	}
}

type deleteInput struct {
	Type        entity.Type `path:"type" doc:"Тип сущности"`
	ID          int64       `path:"id" minimum:"1"`
	BaseVersion int64       `query:"base_version"`
}

type getInput struct {
	Type entity.Type `path:"type" doc:"Тип сущности"`
	ID   int64       `path:"id" minimum:"1"`
}

type listInput struct {
	Type  entity.Type `path:"type" doc:"Тип сущности"`
	Since string      `query:"since" doc:"RFC 3339; только записи, изменённые позже"`
}

type recordOutput struct {
	Status int
	Body   *entity.RemoteRecord
}

type listOutput struct {
	Body ListResponse
}

type ListResponse struct {
	Records []*entity.RemoteRecord `json:"records"`
}
