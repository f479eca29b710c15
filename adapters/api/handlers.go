package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/SE121-UIT/inventory-service/core/inventory"
)

var errValidation = errors.New("validation error")

// App holds the HTTP handlers. Writes go through the command service,
// reads through the read model.
type App struct {
	log  *slog.Logger
	svc  *inventory.Service
	rows inventory.RowStore
}

func NewApp(log *slog.Logger, svc *inventory.Service, rows inventory.RowStore) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		log:  log.With(slog.String("component", "api")),
		svc:  svc,
		rows: rows,
	}
}

// NewRouter registers the routes and wraps them with request logging.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /show", app.showHandler)
	mux.HandleFunc("POST /add", app.addHandler)
	mux.HandleFunc("DELETE /remove/{productId}", app.removeHandler)
	mux.HandleFunc("PUT /update/{productId}", app.updateHandler)
	mux.HandleFunc("PUT /add-quantity/{productId}", app.addQuantityHandler)
	mux.HandleFunc("PUT /deduct-quantity/{productId}", app.deductQuantityHandler)
	mux.HandleFunc("GET /healthz", app.healthHandler)
	return withLogging(app.log, mux)
}

type addProductRequest struct {
	Name     *string `json:"name"`
	Price    *int64  `json:"price"`
	Quantity *int64  `json:"quantity"`
	Desc     *string `json:"desc"`
}

type updateProductRequest struct {
	Name  *string `json:"name"`
	Price *int64  `json:"price"`
	Desc  *string `json:"desc"`
}

type quantityRequest struct {
	Quantity *int64 `json:"quantity"`
}

func (a *App) showHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := a.rows.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, rows)
}

func (a *App) addHandler(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	name, err := requireNotEmpty("name", req.Name)
	if err != nil {
		a.fail(w, err)
		return
	}
	price, err := requirePositive("price", req.Price)
	if err != nil {
		a.fail(w, err)
		return
	}
	quantity, err := requirePositive("quantity", req.Quantity)
	if err != nil {
		a.fail(w, err)
		return
	}

	productID := uuid.NewString()
	_, err = a.svc.Create(r.Context(), inventory.CreateProduct{
		ProductID: productID,
		Name:      name,
		Price:     price,
		Desc:      req.Desc,
		Quantity:  quantity,
	})
	if err != nil {
		a.fail(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]string{"productId": productID})
}

func (a *App) removeHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := requireNotEmpty("productId", ptr(r.PathValue("productId")))
	if err != nil {
		a.fail(w, err)
		return
	}

	_, err = a.svc.Delete(r.Context(), inventory.DeleteProduct{ProductID: productID})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (a *App) updateHandler(w http.ResponseWriter, r *http.Request) {
	productID, err := requireNotEmpty("productId", ptr(r.PathValue("productId")))
	if err != nil {
		a.fail(w, err)
		return
	}
	var req updateProductRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}

	_, err = a.svc.UpdateInfo(r.Context(), inventory.UpdateInfoProduct{
		ProductID: productID,
		Name:      req.Name,
		Price:     req.Price,
		Desc:      req.Desc,
	})
	if err != nil {
		a.fail(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (a *App) addQuantityHandler(w http.ResponseWriter, r *http.Request) {
	a.quantityHandler(w, r, func(ctx context.Context, productID string, quantity int64) error {
		_, err := a.svc.AddQuantity(ctx, inventory.AddQuantityProduct{
			ProductID: productID,
			Quantity:  quantity,
		})
		return err
	})
}

func (a *App) deductQuantityHandler(w http.ResponseWriter, r *http.Request) {
	a.quantityHandler(w, r, func(ctx context.Context, productID string, quantity int64) error {
		_, err := a.svc.DeductQuantity(ctx, inventory.DeductQuantityProduct{
			ProductID: productID,
			Quantity:  quantity,
		})
		return err
	})
}

func (a *App) quantityHandler(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, productID string, quantity int64) error,
) {
	productID, err := requireNotEmpty("productId", ptr(r.PathValue("productId")))
	if err != nil {
		a.fail(w, err)
		return
	}
	var req quantityRequest
	if err := decodeBody(r, &req); err != nil {
		a.fail(w, err)
		return
	}
	quantity, err := requirePositive("quantity", req.Quantity)
	if err != nil {
		a.fail(w, err)
		return
	}

	if err := apply(r.Context(), productID, quantity); err != nil {
		a.fail(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) fail(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		a.log.Error("request failed", slog.Any("error", err))
	}
	writeError(w, status, err)
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errValidation, err)
	}
	return nil
}

func requireNotEmpty(field string, v *string) (string, error) {
	if v == nil || *v == "" {
		return "", fmt.Errorf("%w: %s is required", errValidation, field)
	}
	return *v, nil
}

func requirePositive(field string, v *int64) (int64, error) {
	if v == nil || *v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive number", errValidation, field)
	}
	return *v, nil
}

func ptr(s string) *string { return &s }
