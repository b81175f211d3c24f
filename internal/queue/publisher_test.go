package queue

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer

	p := NewLogPublisher(slog.New(slog.NewJSONHandler(&buf, nil)))
	job := order.ScanJob{JobID: uuid.New(), OrderID: uuid.New(), TrackingCode: "9400ABC", Carrier: "usps"}

	require.NoError(t, p.PublishScanJob(context.Background(), job))

	assert.Contains(t, buf.String(), `"tracking_code":"9400ABC"`)
	assert.Contains(t, buf.String(), job.OrderID.String())
}
