package order

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/http/apierror"
	"github.com/MrJamesThe3rd/labelhub/internal/label"
	"github.com/MrJamesThe3rd/labelhub/internal/order"
)

const maxManifestSize = 10 << 20

type Handler struct {
	svc    *order.Service
	labels *label.Service
}

func NewHandler(svc *order.Service, labels *label.Service) *Handler {
	return &Handler{svc: svc, labels: labels}
}

// Routes serves the caller's own orders.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Post("/pay", h.pay)
	r.Post("/import", h.importManifest)
	r.Get("/{id}", h.get)
}

// AdminRoutes serves order review and settlement.
func (h *Handler) AdminRoutes(r chi.Router) {
	r.Get("/", h.listAll)
	r.Post("/bulk/start", h.bulkStart)
	r.Post("/bulk/fail", h.bulkFail)
	r.Post("/{id}/start", h.start)
	r.Post("/{id}/result", h.saveResult)
	r.Post("/{id}/complete", h.complete)
	r.Post("/{id}/fail", h.fail)
	r.Patch("/{id}/payment-status", h.setPaymentStatus)
}

func caller(r *http.Request) actor.Actor {
	who, _ := actor.FromContext(r.Context())
	return who
}

func orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierror.BadRequest(w, "invalid request body: "+err.Error())
		return false
	}

	return true
}

type createOrderRequest struct {
	Type          order.Type          `json:"type"`
	DesignSubtype order.DesignSubtype `json:"design_subtype"`
	TrackingCode  string              `json:"tracking_code"`
	Carrier       string              `json:"carrier"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decode(w, r, &req) {
		return
	}

	who := caller(r)

	o, err := h.svc.Create(r.Context(), order.CreateParams{
		UserID:        who.ID,
		Type:          req.Type,
		DesignSubtype: req.DesignSubtype,
		TrackingCode:  req.TrackingCode,
		Carrier:       req.Carrier,
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	paid, err := h.svc.AutoPay(r.Context(), who.ID, o.ID)
	if err != nil {
		slog.WarnContext(r.Context(), "auto-pay failed", "order_id", o.ID, "error", err)
	}

	if paid {
		if fresh, err := h.svc.Get(r.Context(), o.ID); err == nil {
			o = fresh
		}
	}

	apierror.JSON(w, http.StatusCreated, createResponse{Order: toResponse(o), Paid: paid})
}

func listFilter(r *http.Request) (order.ListFilter, error) {
	q := r.URL.Query()

	var filter order.ListFilter

	if s := q.Get("status"); s != "" {
		filter.Status = new(order.Status(s))
	}

	if s := q.Get("payment_status"); s != "" {
		filter.PaymentStatus = new(order.PaymentStatus(s))
	}

	if s := q.Get("user_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return filter, err
		}

		filter.UserID = &id
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return filter, err
		}

		filter.Limit = n
	}

	return filter, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		apierror.BadRequest(w, "invalid filter: "+err.Error())
		return
	}

	filter.UserID = new(caller(r).ID)

	h.respondList(w, r, filter)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		apierror.BadRequest(w, "invalid filter: "+err.Error())
		return
	}

	h.respondList(w, r, filter)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, filter order.ListFilter) {
	orders, err := h.svc.List(r.Context(), filter)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponseList(orders))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.GetForUser(r.Context(), caller(r).ID, id)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponse(o))
}

type orderIDsRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	var req orderIDsRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.PayOrders(r.Context(), caller(r).ID, req.OrderIDs)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, payResponse{PaidOrderIDs: res.PaidOrderIDs, UnpaidOrderIDs: res.UnpaidOrderIDs})
}

func (h *Handler) importManifest(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxManifestSize); err != nil {
		apierror.BadRequest(w, "failed to parse form: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apierror.BadRequest(w, "file field is required")
		return
	}
	defer file.Close()

	res, err := h.labels.Import(r.Context(), caller(r).ID, file)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusCreated, toImportResponse(res))
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	o, err := h.svc.StartProcessing(r.Context(), caller(r), id)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponse(o))
}

type resultRequest struct {
	ResultURL string `json:"result_url"`
}

func (h *Handler) saveResult(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req resultRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.svc.SaveResult(r.Context(), caller(r), id, req.ResultURL)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req resultRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}

	o, err := h.svc.Complete(r.Context(), caller(r), id, req.ResultURL)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponse(o))
}

type failRequest struct {
	Note   string `json:"note"`
	Refund bool   `json:"refund"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req failRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.MarkFailed(r.Context(), caller(r), id, order.FailParams(req))
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, failResponse{Order: toResponse(res.Order), Refunded: res.Refunded.StringFixed(2)})
}

type paymentStatusRequest struct {
	PaymentStatus order.PaymentStatus `json:"payment_status"`
	Note          string              `json:"note"`
}

func (h *Handler) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req paymentStatusRequest
	if !decode(w, r, &req) {
		return
	}

	o, err := h.svc.SetPaymentStatus(r.Context(), caller(r), id, req.PaymentStatus, req.Note)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toResponse(o))
}

func (h *Handler) bulkStart(w http.ResponseWriter, r *http.Request) {
	var req orderIDsRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.BulkStartProcessing(r.Context(), caller(r), req.OrderIDs)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toBulkResponse(res))
}

type bulkFailRequest struct {
	OrderIDs []uuid.UUID `json:"order_ids"`
	Note     string      `json:"note"`
	Refund   bool        `json:"refund"`
}

func (h *Handler) bulkFail(w http.ResponseWriter, r *http.Request) {
	var req bulkFailRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.svc.BulkMarkFailed(r.Context(), caller(r), req.OrderIDs, order.FailParams{Note: req.Note, Refund: req.Refund})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toBulkResponse(res))
}
