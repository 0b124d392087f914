package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"codemart/internal/catalog"
	"codemart/internal/logger"
	"codemart/internal/models"
	"codemart/internal/storage"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Catalog  *catalog.Service
	Uploader storage.Uploader
	Logger   *logger.Logger
}

func NewHandler(svc *catalog.Service, uploader storage.Uploader, log *logger.Logger) *Handler {
	return &Handler{Catalog: svc, Uploader: uploader, Logger: log}
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := catalog.BrowseQuery{
		Category: r.URL.Query().Get("category"),
		Search:   r.URL.Query().Get("search"),
		Sort:     r.URL.Query().Get("sort"),
	}
	if v := r.URL.Query().Get("min_price"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			q.MinPrice = &parsed
		}
	}
	if v := r.URL.Query().Get("max_price"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			q.MaxPrice = &parsed
		}
	}
	if v := r.URL.Query().Get("tags"); v != "" {
		q.Tags = strings.Split(v, ",")
	}

	products, err := h.Catalog.Browse(r.Context(), q)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListProducts: %v", err))
		http.Error(w, "Failed to list products", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(products); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListProducts: failed to encode response: %v", err))
	}
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	product, err := h.Catalog.GetPublished(r.Context(), productID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetProduct: %v", err))
		http.Error(w, "Failed to get product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(product); err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetProduct: failed to encode response: %v", err))
	}
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var upsert models.ProductUpsert
	if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if upsert.Price < 0 {
		http.Error(w, "Price must not be negative", http.StatusBadRequest)
		return
	}

	product, err := h.Catalog.Create(r.Context(), upsert)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateProduct: %v", err))
		http.Error(w, "Failed to create product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(product); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateProduct: failed to encode response: %v", err))
	}
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var upsert models.ProductUpsert
	if err := json.NewDecoder(r.Body).Decode(&upsert); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if upsert.Price < 0 {
		http.Error(w, "Price must not be negative", http.StatusBadRequest)
		return
	}

	product, err := h.Catalog.Update(r.Context(), productID, upsert)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("UpdateProduct: %v", err))
		http.Error(w, "Failed to update product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(product); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateProduct: failed to encode response: %v", err))
	}
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	if err := h.Catalog.Delete(r.Context(), productID); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("DeleteProduct: %v", err))
		http.Error(w, "Failed to delete product", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"message":"Product deleted successfully"}`))
}

// UploadArtifact stores the product ZIP archive and records its path.
// Only ZIP archives are accepted.
func (h *Handler) UploadArtifact(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "Missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".zip") {
		http.Error(w, "Only ZIP files allowed", http.StatusBadRequest)
		return
	}

	filePath := fmt.Sprintf("products/%s/%s", productID, header.Filename)
	if err := h.Uploader.Upload(r.Context(), filePath, "application/zip", file); err != nil {
		h.Logger.Error("API", fmt.Sprintf("UploadArtifact: upload failed: %v", err))
		http.Error(w, "File upload failed", http.StatusInternalServerError)
		return
	}

	if err := h.Catalog.DB.SetFilePath(r.Context(), productID, filePath); err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			http.Error(w, "Product not found", http.StatusNotFound)
			return
		}
		h.Logger.Error("API", fmt.Sprintf("UploadArtifact: failed to record file path: %v", err))
		http.Error(w, "Failed to record uploaded file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message":   "File uploaded successfully",
		"file_path": filePath,
	})
}
