package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"edushare/internal/auth"
	"edushare/internal/domain"
	"edushare/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ItemHandler struct {
	itemService *service.ItemService
}

func NewItemHandler(itemService *service.ItemService) *ItemHandler {
	return &ItemHandler{itemService: itemService}
}

// writeError сопоставляет виды ошибок ядра с HTTP-статусами.
// Единственное место такого сопоставления.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, domain.ErrCycle):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrAccessDenied):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		log.Printf("internal error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

func parseID(r *http.Request, param string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id: %w", domain.ErrValidation)
	}
	return id, nil
}

type createFolderRequest struct {
	Name     string     `json:"name"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

func (h *ItemHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.itemService.CreateFolder(r.Context(), req.Name, req.ParentID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

func (h *ItemHandler) GetRoot(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	items, err := h.itemService.Children(r.Context(), uuid.Nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) GetChildren(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	items, err := h.itemService.Children(r.Context(), folderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	up, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.itemService.UploadFile(r.Context(), *up, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

// readUpload разбирает multipart-форму с файлом и необязательным folder_id.
func readUpload(r *http.Request) (*domain.FileUpload, error) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", domain.ErrValidation)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file field is required: %w", domain.ErrValidation)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var parentID *uuid.UUID
	if raw := r.FormValue("folder_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid folder_id: %w", domain.ErrValidation)
		}
		parentID = &id
	}

	return &domain.FileUpload{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		ParentID: parentID,
		Data:     data,
	}, nil
}

func (h *ItemHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	item, obj, err := h.itemService.Download(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	serveObject(w, item, obj)
}

func serveObject(w http.ResponseWriter, item *domain.Item, obj interface {
	io.Reader
	ContentLength() int64
}) {
	contentType := "application/octet-stream"
	if item.MIMEType != nil && *item.MIMEType != "" {
		contentType = *item.MIMEType
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.Name))
	if obj.ContentLength() > 0 {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", obj.ContentLength()))
	}

	if _, err := io.Copy(w, obj); err != nil {
		log.Printf("error streaming file %s: %v", item.ID, err)
	}
}

type renameRequest struct {
	NewName string `json:"new_name"`
}

func (h *ItemHandler) RenameItem(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	item, err := h.itemService.Rename(r.Context(), itemID, req.NewName, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

type moveRequest struct {
	IDs  []uuid.UUID `json:"ids"`
	Dest *uuid.UUID  `json:"dest,omitempty"` // null — в корень
}

func (d *moveRequest) destID() uuid.UUID {
	if d.Dest == nil {
		return uuid.Nil
	}
	return *d.Dest
}

func (h *ItemHandler) MoveItems(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.itemService.Move(r.Context(), req.IDs, req.destID(), userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type idsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

func (h *ItemHandler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.itemService.Delete(r.Context(), req.IDs, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *ItemHandler) RestoreItems(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.itemService.Restore(r.Context(), req.IDs, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetPath отдаёт хлебные крошки от корня до элемента.
func (h *ItemHandler) GetPath(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.UserID(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	itemID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	crumbs, err := h.itemService.Path(r.Context(), itemID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, crumbs)
}
