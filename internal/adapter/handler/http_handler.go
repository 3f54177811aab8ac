package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rapeepat/shopflow/internal/core/domain"
	"github.com/rapeepat/shopflow/internal/core/lock"
	"github.com/rapeepat/shopflow/internal/core/service"
)

type HTTPHandler struct {
	orderService *service.OrderService
}

func NewHTTPHandler(orderService *service.OrderService) *HTTPHandler {
	return &HTTPHandler{orderService: orderService}
}

// Register installs the handler's routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.HealthCheck)
	mux.HandleFunc("/api/orders", h.CreateOrder)
	mux.HandleFunc("/api/resolve", h.ResolveProduct)
	mux.HandleFunc("/api/stock/adjust", h.AdjustStock)
}

type orderLineJSON struct {
	Query     string  `json:"query"`
	Quantity  int     `json:"quantity"`
	PriceHint float64 `json:"price_hint,omitempty"`
	UnitHint  string  `json:"unit_hint,omitempty"`
}

type createOrderRequest struct {
	RequestID      string          `json:"request_id,omitempty"`
	Customer       string          `json:"customer"`
	Lines          []orderLineJSON `json:"lines"`
	DeliveryPerson string          `json:"delivery_person,omitempty"`
	PaymentStatus  string          `json:"payment_status,omitempty"`
	Notes          string          `json:"notes,omitempty"`
}

type orderLineResponse struct {
	Product        string  `json:"product"`
	Unit           string  `json:"unit"`
	Quantity       int     `json:"quantity"`
	UnitPrice      float64 `json:"unit_price"`
	Subtotal       float64 `json:"subtotal"`
	ResultingStock int     `json:"resulting_stock"`
}

type createOrderResponse struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message,omitempty"`
	OrderID    int64               `json:"order_id,omitempty"`
	Total      float64             `json:"total,omitempty"`
	Lines      []orderLineResponse `json:"lines,omitempty"`
	Candidates []candidateJSON     `json:"candidates,omitempty"`
	Shortfalls []shortfallJSON     `json:"shortfalls,omitempty"`
	// NeedsOperator flags a failed rollback: state may be inconsistent
	// and must be reconciled by hand, not retried.
	NeedsOperator bool `json:"needs_operator,omitempty"`
}

type candidateJSON struct {
	Name  string  `json:"name"`
	Unit  string  `json:"unit"`
	Price float64 `json:"price"`
	Stock int     `json:"stock"`
	Score int     `json:"score,omitempty"`
}

type shortfallJSON struct {
	Product   string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, createOrderResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	lines := make([]domain.OrderLineRequest, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.OrderLineRequest{
			Query:     l.Query,
			Quantity:  l.Quantity,
			PriceHint: l.PriceHint,
			UnitHint:  l.UnitHint,
		}
	}

	rec, err := h.orderService.CreateOrder(r.Context(), service.OrderRequest{
		RequestID:      req.RequestID,
		Customer:       req.Customer,
		Lines:          lines,
		DeliveryPerson: req.DeliveryPerson,
		Payment:        domain.PaymentStatus(req.PaymentStatus),
		Notes:          req.Notes,
	})
	if err != nil {
		writeOrderError(w, err)
		return
	}

	resp := createOrderResponse{
		Success: true,
		Message: "order committed",
		OrderID: rec.ID,
		Total:   rec.Total,
	}
	for _, l := range rec.Lines {
		resp.Lines = append(resp.Lines, orderLineResponse{
			Product:        l.Product,
			Unit:           l.Unit,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			Subtotal:       l.Subtotal(),
			ResultingStock: l.ResultingStock,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeOrderError(w http.ResponseWriter, err error) {
	var ambiguous *domain.AmbiguousMatchError
	var short *domain.InsufficientStockError
	var timeout *domain.LockTimeoutError

	switch {
	case errors.Is(err, domain.ErrValidation):
		writeJSON(w, http.StatusBadRequest, createOrderResponse{Success: false, Message: err.Error()})
	case errors.Is(err, service.ErrDuplicateRequest):
		writeJSON(w, http.StatusConflict, createOrderResponse{Success: false, Message: "duplicate request"})
	case errors.Is(err, domain.ErrNoMatch):
		writeJSON(w, http.StatusNotFound, createOrderResponse{Success: false, Message: err.Error()})
	case errors.As(err, &ambiguous):
		resp := createOrderResponse{Success: false, Message: "ambiguous product, please disambiguate"}
		for _, c := range ambiguous.Candidates {
			resp.Candidates = append(resp.Candidates, candidateJSON{
				Name: c.Name, Unit: c.Unit, Price: c.Price, Stock: c.Stock,
			})
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.As(err, &short):
		resp := createOrderResponse{Success: false, Message: "insufficient stock"}
		for _, s := range short.Shortfalls {
			resp.Shortfalls = append(resp.Shortfalls, shortfallJSON{
				Product: s.Product, Requested: s.Requested, Available: s.Available,
			})
		}
		writeJSON(w, http.StatusGone, resp)
	case errors.As(err, &timeout), errors.Is(err, lock.ErrCapacity):
		writeJSON(w, http.StatusServiceUnavailable, createOrderResponse{
			Success: false, Message: "busy, try again",
		})
	case domain.IsRollbackFailure(err):
		writeJSON(w, http.StatusInternalServerError, createOrderResponse{
			Success: false, Message: err.Error(), NeedsOperator: true,
		})
	default:
		writeJSON(w, http.StatusInternalServerError, createOrderResponse{
			Success: false, Message: "internal error",
		})
	}
}

type resolveRequest struct {
	Query     string  `json:"query"`
	PriceHint float64 `json:"price_hint,omitempty"`
	UnitHint  string  `json:"unit_hint,omitempty"`
}

type resolveResponse struct {
	Candidates []candidateJSON `json:"candidates"`
	Ambiguous  bool            `json:"ambiguous"`
	Message    string          `json:"message,omitempty"`
}

func (h *HTTPHandler) ResolveProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, resolveResponse{Message: "invalid request body"})
		return
	}

	res, err := h.orderService.ResolveProduct(r.Context(), req.Query, req.PriceHint, req.UnitHint)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeJSON(w, http.StatusBadRequest, resolveResponse{Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, resolveResponse{Message: "internal error"})
		return
	}

	resp := resolveResponse{Ambiguous: res.Ambiguous, Candidates: []candidateJSON{}}
	for _, c := range res.Candidates {
		resp.Candidates = append(resp.Candidates, candidateJSON{
			Name:  c.Entry.Name,
			Unit:  c.Entry.Unit,
			Price: c.Entry.Price,
			Stock: c.Entry.Stock,
			Score: c.Score,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type adjustStockRequest struct {
	ResourceKey string `json:"resource_key"`
	Value       int    `json:"value"`
	Operation   string `json:"operation"`
}

type adjustStockResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message,omitempty"`
	Product  string `json:"product,omitempty"`
	OldStock int    `json:"old_stock"`
	NewStock int    `json:"new_stock"`
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req adjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, adjustStockResponse{Success: false, Message: "invalid request body"})
		return
	}

	adj, err := h.orderService.AdjustStock(r.Context(), req.ResourceKey, req.Value, service.StockOp(req.Operation))
	if err != nil {
		var short *domain.InsufficientStockError
		var timeout *domain.LockTimeoutError
		switch {
		case errors.Is(err, domain.ErrValidation):
			writeJSON(w, http.StatusBadRequest, adjustStockResponse{Success: false, Message: err.Error()})
		case errors.Is(err, domain.ErrNoMatch):
			writeJSON(w, http.StatusNotFound, adjustStockResponse{Success: false, Message: err.Error()})
		case errors.As(err, &short):
			writeJSON(w, http.StatusGone, adjustStockResponse{Success: false, Message: err.Error()})
		case errors.As(err, &timeout), errors.Is(err, lock.ErrCapacity):
			writeJSON(w, http.StatusServiceUnavailable, adjustStockResponse{Success: false, Message: "busy, try again"})
		default:
			writeJSON(w, http.StatusInternalServerError, adjustStockResponse{Success: false, Message: "internal error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, adjustStockResponse{
		Success:  true,
		Product:  adj.Product,
		OldStock: adj.OldStock,
		NewStock: adj.NewStock,
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
