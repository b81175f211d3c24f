package order

import (
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/label"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	UserID        uuid.UUID           `json:"user_id"`
	Type          order.Type          `json:"type"`
	DesignSubtype order.DesignSubtype `json:"design_subtype,omitempty"`
	TrackingCode  string              `json:"tracking_code,omitempty"`
	Carrier       string              `json:"carrier,omitempty"`
	TotalCost     string              `json:"total_cost"`
	Status        order.Status        `json:"status"`
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	ResultURL     string              `json:"result_url,omitempty"`
	AdminNote     string              `json:"admin_note,omitempty"`
	Warning       string              `json:"warning,omitempty"`
	LabelID       *uuid.UUID          `json:"label_id,omitempty"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Type:          o.Kind.Type(),
		DesignSubtype: order.SubtypeOf(o.Kind),
		TrackingCode:  o.TrackingCode,
		Carrier:       o.Carrier,
		TotalCost:     o.TotalCost.StringFixed(2),
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		ResultURL:     o.ResultURL,
		AdminNote:     o.AdminNote,
		Warning:       o.Warning,
		LabelID:       o.LabelID,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func toResponseList(orders []*order.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toResponse(o)
	}

	return resp
}

type createResponse struct {
	Order orderResponse `json:"order"`
	Paid  bool          `json:"paid"`
}

type payResponse struct {
	PaidOrderIDs   []uuid.UUID `json:"paid_order_ids"`
	UnpaidOrderIDs []uuid.UUID `json:"unpaid_order_ids"`
}

type failResponse struct {
	Order    orderResponse `json:"order"`
	Refunded string        `json:"refunded"`
}

type itemErrorResponse struct {
	OrderID uuid.UUID `json:"order_id"`
	Error   string    `json:"error"`
}

type bulkResponse struct {
	Succeeded []uuid.UUID         `json:"succeeded"`
	Failed    []itemErrorResponse `json:"failed"`
}

func toBulkResponse(res *order.BulkResult) bulkResponse {
	resp := bulkResponse{
		Succeeded: res.Succeeded,
		Failed:    make([]itemErrorResponse, 0, len(res.Failed)),
	}

	if resp.Succeeded == nil {
		resp.Succeeded = []uuid.UUID{}
	}

	for _, f := range res.Failed {
		resp.Failed = append(resp.Failed, itemErrorResponse{OrderID: f.OrderID, Error: f.Err.Error()})
	}

	return resp
}

type importedResponse struct {
	Row   int           `json:"row"`
	Order orderResponse `json:"order"`
	Paid  bool          `json:"paid"`
}

type rejectedResponse struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

type importResponse struct {
	Imported []importedResponse `json:"imported"`
	Rejected []rejectedResponse `json:"rejected"`
	Paid     int                `json:"paid"`
}

func toImportResponse(res *label.Result) importResponse {
	resp := importResponse{
		Imported: make([]importedResponse, 0, len(res.Imported)),
		Rejected: make([]rejectedResponse, 0, len(res.Rejected)),
		Paid:     res.PaidCount(),
	}

	for _, imp := range res.Imported {
		resp.Imported = append(resp.Imported, importedResponse{Row: imp.Row, Order: toResponse(imp.Order), Paid: imp.Paid})
	}

	for _, rej := range res.Rejected {
		resp.Rejected = append(resp.Rejected, rejectedResponse(rej))
	}

	return resp
}
