package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"edushare/internal/auth"
	"edushare/internal/domain"
	"edushare/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type ShareHandler struct {
	shareService *service.ShareService
	itemService  *service.ItemService
}

func NewShareHandler(shareService *service.ShareService, itemService *service.ItemService) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		itemService:  itemService,
	}
}

type createShareRequest struct {
	ItemID         uuid.UUID   `json:"item_id"`
	Role           domain.Role `json:"role"`
	ExpiresInHours *int        `json:"expires_in_hours,omitempty"`
}

func (h *ShareHandler) CreateShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var expiresIn *time.Duration
	if req.ExpiresInHours != nil {
		d := time.Duration(*req.ExpiresInHours) * time.Hour
		expiresIn = &d
	}

	link, err := h.shareService.CreateShare(r.Context(), req.ItemID, req.Role, expiresIn, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, link)
}

func (h *ShareHandler) RevokeShare(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := chi.URLParam(r, "token")
	if err := h.shareService.Revoke(r.Context(), token, userID); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// GetShareMeta отдаёт роль и корневой элемент ссылки. Это первый запрос
// портала при открытии по токену: от ответа зависит режим навигации.
func (h *ShareHandler) GetShareMeta(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, root, err := h.shareService.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	response := struct {
		Role domain.Role  `json:"role"`
		Root *domain.Item `json:"root"`
	}{
		Role: link.Role,
		Root: root,
	}

	writeJSON(w, http.StatusOK, response)
}

// sharedFolderID определяет папку для операции листинга/создания:
// явный folder_id из запроса либо корень ссылки.
func (h *ShareHandler) sharedFolderID(r *http.Request, link *domain.ShareLink) (uuid.UUID, error) {
	raw := r.URL.Query().Get("folder_id")
	if raw == "" {
		return link.RootItemID, nil
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid folder_id: %w", domain.ErrValidation)
	}
	return id, nil
}

func (h *ShareHandler) SharedChildren(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, _, err := h.shareService.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	folderID, err := h.sharedFolderID(r, link)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.shareService.Authorize(r.Context(), token, service.OperationView, folderID); err != nil {
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

func (h *ShareHandler) SharedDownload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	fileID, err := parseID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.shareService.Authorize(r.Context(), token, service.OperationDownload, fileID); err != nil {
		writeError(w, err)
		return
	}

	item, obj, err := h.itemService.Download(r.Context(), fileID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Close()

	w.Header().Set("Cache-Control", "no-store")
	serveObject(w, item, obj)
}

func (h *ShareHandler) SharedCreateFolder(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	link, _, err := h.shareService.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	parentID := link.RootItemID
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	if _, err := h.shareService.Authorize(r.Context(), token, service.OperationCreate, parentID); err != nil {
		writeError(w, err)
		return
	}

	folder, err := h.itemService.CreateFolder(r.Context(), req.Name, &parentID, shareActor(link))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

func (h *ShareHandler) SharedUpload(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	link, _, err := h.shareService.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	up, err := readUpload(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if up.ParentID == nil {
		id := link.RootItemID
		up.ParentID = &id
	}

	if _, err := h.shareService.Authorize(r.Context(), token, service.OperationUpload, *up.ParentID); err != nil {
		writeError(w, err)
		return
	}

	item, err := h.itemService.UploadFile(r.Context(), *up, shareActor(link))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, item)
}

func (h *ShareHandler) SharedRename(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

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

	link, err := h.shareService.Authorize(r.Context(), token, service.OperationRename, itemID)
	if err != nil {
		writeError(w, err)
		return
	}

	item, err := h.itemService.Rename(r.Context(), itemID, req.NewName, shareActor(link))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *ShareHandler) SharedMove(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	link, err := h.shareService.AuthorizeMove(r.Context(), token, req.IDs, req.destID())
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.itemService.Move(r.Context(), req.IDs, req.destID(), shareActor(link)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *ShareHandler) SharedDelete(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req idsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	// Запрет на любой элемент пачки отклоняет пачку целиком
	var link *domain.ShareLink
	for _, id := range req.IDs {
		l, err := h.shareService.Authorize(r.Context(), token, service.OperationDelete, id)
		if err != nil {
			writeError(w, err)
			return
		}
		link = l
	}
	if link == nil {
		writeError(w, fmt.Errorf("no items to delete: %w", domain.ErrValidation))
		return
	}

	if err := h.itemService.Delete(r.Context(), req.IDs, shareActor(link)); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

// shareActor — идентификатор для штампов updated_by при действиях
// анонимного получателя ссылки.
func shareActor(link *domain.ShareLink) string {
	return "share:" + link.ID.String()
}
