package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/creditgate/creditgate/internal/handler/dto"
	"github.com/creditgate/creditgate/internal/middleware"
	"github.com/creditgate/creditgate/internal/service"
)

// ItemHandler handles the item collection. List and Create produce results
// for the quota gate; Update and Delete write their responses directly.
type ItemHandler struct {
	items  *service.ItemService
	logger *slog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(items *service.ItemService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, logger: logger}
}

// List returns every item.
// GET /items
func (h *ItemHandler) List(r *http.Request) dto.Result {
	return dto.Result{Status: http.StatusOK, Body: h.items.ListItems(r.Context())}
}

// Create appends an item. Both fields are optional.
// POST /items
func (h *ItemHandler) Create(r *http.Request) dto.Result {
	var req dto.ItemRequest
	if err := decodeJSON(r, &req); err != nil {
		return decodeError(err)
	}

	item := h.items.CreateItem(r.Context(), service.ItemInput{
		Name:        req.Name,
		Description: req.Description,
	})

	h.logger.Debug("item created",
		slog.Int("item_id", item.ID),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	return dto.Result{Status: http.StatusCreated, Body: item}
}

// Update merges the non-empty fields of the body into an item.
// PUT /items/{id}
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.ItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeResult(w, decodeError(err))
		return
	}

	id, ok := itemID(r)
	if !ok {
		writeItemNotFound(w)
		return
	}

	item, err := h.items.UpdateItem(r.Context(), id, service.ItemInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ItemMessageResponse{
		Message: "Item updated successfully.",
		Item:    *item,
	})
}

// Delete removes an item.
// DELETE /items/{id}
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(r)
	if !ok {
		writeItemNotFound(w)
		return
	}

	item, err := h.items.DeleteItem(r.Context(), id)
	if err != nil {
		h.writeItemError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ItemMessageResponse{
		Message: "Item deleted successfully.",
		Item:    *item,
	})
}

// itemID parses the {id} URL parameter. A non-integer id can never match an
// item, so callers treat !ok as not found.
func itemID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, false
	}
	return id, true
}

func (h *ItemHandler) writeItemError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		writeItemNotFound(w)
	case errors.Is(err, service.ErrMissingFields):
		writeError(w, http.StatusBadRequest, CodeMissingFields, "Name or description is required for update.")
	default:
		h.logger.Error("item operation failed",
			slog.String("error", err.Error()),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
	}
}

func writeItemNotFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, CodeItemNotFound, "Item not found")
}
