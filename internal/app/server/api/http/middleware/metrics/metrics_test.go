package metrics

import (
	"context"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"vetsync/internal/domain/entity"
)

func TestRecordConflict(t *testing.T) {
	before := testutil.ToFloat64(VersionConflictsTotal.WithLabelValues("pets"))
	RecordConflict(entity.TypePet)
	RecordConflict(entity.TypePet)
	assert.Equal(t, before+2, testutil.ToFloat64(VersionConflictsTotal.WithLabelValues("pets")))
}

func TestMiddleware_LabelsByOperation(t *testing.T) {
	_, api := humatest.New(t)
	huma.Register(api, huma.Operation{
		OperationID: "metrics-probe",
		Method:      http.MethodGet,
		Path:        "/probe/{id}",
		Middlewares: huma.Middlewares{Middleware()},
	}, func(ctx context.Context, in *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		return nil, nil
	})

	counter := RequestsTotal.WithLabelValues("metrics-probe", http.MethodGet, "204")
	before := testutil.ToFloat64(counter)

	api.Get("/probe/1")
	api.Get("/probe/2")

	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}
