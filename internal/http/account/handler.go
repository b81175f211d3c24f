package account

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/labelhub/internal/actor"
	"github.com/MrJamesThe3rd/labelhub/internal/audit"
	"github.com/MrJamesThe3rd/labelhub/internal/credit"
	"github.com/MrJamesThe3rd/labelhub/internal/http/apierror"
	"github.com/MrJamesThe3rd/labelhub/internal/ledger"
)

type Handler struct {
	balances *ledger.Service
	credits  *credit.Service
	audit    *audit.Service
}

func NewHandler(balances *ledger.Service, credits *credit.Service, auditSvc *audit.Service) *Handler {
	return &Handler{balances: balances, credits: credits, audit: auditSvc}
}

// Routes serves the caller's balance and ledger.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/balance", h.balance)
	r.Get("/ledger", h.history)
}

func (h *Handler) AdminRoutes(r chi.Router) {
	r.Post("/users", h.createUser)
	r.Get("/users/reconcile", h.reconcileAll)
	r.Post("/users/{id}/credits", h.adjust)
	r.Get("/users/{id}/reconcile", h.reconcile)
	r.Get("/audit", h.listAudit)
}

type balanceResponse struct {
	UserID  uuid.UUID `json:"user_id"`
	Balance string    `json:"balance"`
}

type entryResponse struct {
	ID           uuid.UUID        `json:"id"`
	Direction    ledger.Direction `json:"direction"`
	Amount       string           `json:"amount"`
	BalanceAfter string           `json:"balance_after"`
	Reason       string           `json:"reason"`
	Reference    string           `json:"reference,omitempty"`
	Actor        string           `json:"actor"`
	CreatedAt    time.Time        `json:"created_at"`
}

type reconciliationResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Cached       string    `json:"cached"`
	LedgerSum    string    `json:"ledger_sum"`
	LastSnapshot string    `json:"last_snapshot"`
	Entries      int       `json:"entries"`
	Consistent   bool      `json:"consistent"`
}

func toReconciliation(rec ledger.Reconciliation) reconciliationResponse {
	return reconciliationResponse{
		UserID:       rec.UserID,
		Cached:       rec.Cached.StringFixed(2),
		LedgerSum:    rec.LedgerSum.StringFixed(2),
		LastSnapshot: rec.LastSnapshot.StringFixed(2),
		Entries:      rec.Entries,
		Consistent:   rec.Consistent(),
	}
}

func userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apierror.BadRequest(w, "invalid id")
		return uuid.Nil, false
	}

	return id, true
}

func limit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	who, _ := actor.FromContext(r.Context())

	bal, err := h.balances.Balance(r.Context(), who.ID)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, balanceResponse{UserID: who.ID, Balance: bal.StringFixed(2)})
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	who, _ := actor.FromContext(r.Context())

	entries, err := h.balances.History(r.Context(), who.ID, limit(r))
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	resp := make([]entryResponse, len(entries))
	for i, e := range entries {
		resp[i] = entryResponse{
			ID:           e.ID,
			Direction:    e.Direction,
			Amount:       e.Amount.StringFixed(2),
			BalanceAfter: e.BalanceAfter.StringFixed(2),
			Reason:       e.Reason,
			Reference:    e.Reference,
			Actor:        e.Actor.String(),
			CreatedAt:    e.CreatedAt,
		}
	}

	apierror.JSON(w, http.StatusOK, resp)
}

type createUserRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	CreditBalance string    `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	u, err := h.balances.CreateUser(r.Context(), req.Email)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusCreated, userResponse{
		ID:            u.ID,
		Email:         u.Email,
		CreditBalance: u.CreditBalance.StringFixed(2),
		CreatedAt:     u.CreatedAt,
	})
}

type adjustRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	TopUp     bool            `json:"top_up"`
	Reference string          `json:"reference"`
	Note      string          `json:"note"`
}

type adjustResponse struct {
	Balance string `json:"balance"`
	Applied bool   `json:"applied"`
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	var req adjustRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierror.BadRequest(w, "invalid request body: "+err.Error())
		return
	}

	who, _ := actor.FromContext(r.Context())

	res, err := h.credits.Adjust(r.Context(), credit.AdjustParams{
		UserID:    id,
		Amount:    req.Amount,
		TopUp:     req.TopUp,
		Reference: req.Reference,
		Note:      req.Note,
		Actor:     who,
	})
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	status := http.StatusCreated
	if !res.Applied {
		status = http.StatusOK
	}

	apierror.JSON(w, status, adjustResponse{Balance: res.Balance.StringFixed(2), Applied: res.Applied})
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	rec, err := h.balances.Reconcile(r.Context(), id)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	apierror.JSON(w, http.StatusOK, toReconciliation(rec))
}

func (h *Handler) reconcileAll(w http.ResponseWriter, r *http.Request) {
	recs, err := h.balances.ReconcileAll(r.Context())
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	resp := make([]reconciliationResponse, len(recs))
	for i, rec := range recs {
		resp[i] = toReconciliation(rec)
	}

	apierror.JSON(w, http.StatusOK, resp)
}

type auditResponse struct {
	ID        uuid.UUID      `json:"id"`
	Actor     string         `json:"actor"`
	Action    audit.Action   `json:"action"`
	TargetID  string         `json:"target_id"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	filter := audit.ListFilter{
		TargetID: r.URL.Query().Get("target_id"),
		Limit:    limit(r),
	}

	if s := r.URL.Query().Get("action"); s != "" {
		filter.Action = new(audit.Action(s))
	}

	records, err := h.audit.List(r.Context(), filter)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	resp := make([]auditResponse, len(records))
	for i, rec := range records {
		resp[i] = auditResponse{
			ID:        rec.ID,
			Actor:     rec.Actor.String(),
			Action:    rec.Action,
			TargetID:  rec.TargetID,
			Payload:   rec.Payload,
			CreatedAt: rec.CreatedAt,
		}
	}

	apierror.JSON(w, http.StatusOK, resp)
}
