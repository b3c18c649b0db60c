package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/viefmoon/bite-api/internal/database"
)

// ScreenStore defines the database methods needed by preparation screen
// handlers. Satisfied by *database.Queries.
type ScreenStore interface {
	GetPreparationScreen(ctx context.Context, id uuid.UUID) (database.PreparationScreen, error)
	ListPreparationScreens(ctx context.Context) ([]database.PreparationScreen, error)
	CreatePreparationScreen(ctx context.Context, name string) (database.PreparationScreen, error)
	UpdatePreparationScreen(ctx context.Context, arg database.UpdatePreparationScreenParams) (database.PreparationScreen, error)
	SoftDeletePreparationScreen(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// ScreenHandler handles preparation screen management endpoints.
type ScreenHandler struct {
	store ScreenStore
}

// NewScreenHandler creates a new ScreenHandler.
func NewScreenHandler(store ScreenStore) *ScreenHandler {
	return &ScreenHandler{store: store}
}

// RegisterRoutes registers screen endpoints on the given Chi router.
func (h *ScreenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

type screenRequest struct {
	Name string `json:"name"`
}

type screenResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func dbScreenToResponse(s database.PreparationScreen) screenResponse {
	return screenResponse{ID: s.ID, Name: s.Name, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

// List handles GET /preparation-screens.
func (h *ScreenHandler) List(w http.ResponseWriter, r *http.Request) {
	screens, err := h.store.ListPreparationScreens(r.Context())
	if err != nil {
		log.Printf("ERROR: list preparation screens: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]screenResponse, len(screens))
	for i, s := range screens {
		resp[i] = dbScreenToResponse(s)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /preparation-screens/{id}.
func (h *ScreenHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid screen ID"})
		return
	}

	screen, err := h.store.GetPreparationScreen(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "screen not found"})
			return
		}
		log.Printf("ERROR: get preparation screen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbScreenToResponse(screen))
}

// Create handles POST /preparation-screens.
func (h *ScreenHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	screen, err := h.store.CreatePreparationScreen(r.Context(), req.Name)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "screen name already in use"})
			return
		}
		log.Printf("ERROR: create preparation screen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, dbScreenToResponse(screen))
}

// Update handles PUT /preparation-screens/{id}.
func (h *ScreenHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid screen ID"})
		return
	}

	var req screenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	screen, err := h.store.UpdatePreparationScreen(r.Context(), database.UpdatePreparationScreenParams{
		ID:   id,
		Name: req.Name,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "screen not found"})
			return
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "screen name already in use"})
			return
		}
		log.Printf("ERROR: update preparation screen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, dbScreenToResponse(screen))
}

// Delete handles DELETE /preparation-screens/{id}. Soft delete: historical
// screen statuses keep their reference.
func (h *ScreenHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid screen ID"})
		return
	}

	if _, err := h.store.SoftDeletePreparationScreen(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "screen not found"})
			return
		}
		log.Printf("ERROR: delete preparation screen: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
