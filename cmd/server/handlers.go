package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/brunobiangulo/kgraph"
)

type handler struct {
	engine    kgraph.Engine
	uploadDir string
}

func newHandler(e kgraph.Engine, uploadDir string) *handler {
	return &handler{engine: e, uploadDir: uploadDir}
}

// userID extracts the caller's identity. Authentication (if enabled) is
// handled by authMiddleware; this only reads who the already-authenticated
// caller claims to be.
func userID(r *http.Request) string {
	if id := r.Header.Get("X-User-Id"); id != "" {
		return id
	}
	return "anonymous"
}

// POST /upload — stages one or more files under the engine's upload
// directory and returns the file_ids a subsequent /submit can reference.
func (h *handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(100 << 20); err != nil { // 100MB max
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files attached")
		return
	}

	var fileIDs []string
	for _, fh := range files {
		safeName := filepath.Base(fh.Filename)
		src, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to open uploaded file")
			return
		}

		dst, err := os.Create(filepath.Join(h.uploadDir, safeName))
		if err != nil {
			src.Close()
			writeError(w, http.StatusInternalServerError, "failed to stage file")
			slog.Error("staging uploaded file", "error", err)
			return
		}
		_, copyErr := io.Copy(dst, src)
		src.Close()
		dst.Close()
		if copyErr != nil {
			writeError(w, http.StatusInternalServerError, "failed to save file")
			slog.Error("saving uploaded file", "error", copyErr)
			return
		}
		fileIDs = append(fileIDs, safeName)
	}

	writeJSON(w, http.StatusOK, map[string]any{"file_ids": fileIDs})
}

// POST /submit
func (h *handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req kgraph.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.FileIDs) == 0 {
		writeError(w, http.StatusBadRequest, "file_ids is required")
		return
	}

	taskID, err := h.engine.Submit(r.Context(), userID(r), req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "submission failed")
		slog.Error("submit error", "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID})
}

// GET /tasks/{id}
func (h *handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	p, err := h.engine.Progress(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"task_id": taskID,
			"status":  "not_found",
		})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// POST /query
func (h *handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req kgraph.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.KGID == "" {
		writeError(w, http.StatusBadRequest, "kg_id is required")
		return
	}

	result, err := h.engine.Query(r.Context(), userID(r), req)
	if err != nil {
		if err == kgraph.ErrGraphNotFound {
			writeError(w, http.StatusNotFound, "knowledge graph not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "query failed")
		slog.Error("query error", "kg_id", req.KGID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /graphs/{id}/visualize
func (h *handler) handleVisualize(w http.ResponseWriter, r *http.Request) {
	kgID := r.PathValue("id")
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}

	result, err := h.engine.Visualize(r.Context(), userID(r), kgID, limit)
	if err != nil {
		if err == kgraph.ErrGraphNotFound {
			writeError(w, http.StatusNotFound, "knowledge graph not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "visualize failed")
		slog.Error("visualize error", "kg_id", kgID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// DELETE /graphs/{id}
func (h *handler) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	kgID := r.PathValue("id")
	if err := h.engine.Delete(r.Context(), userID(r), kgID); err != nil {
		if err == kgraph.ErrGraphNotFound {
			writeError(w, http.StatusNotFound, "knowledge graph not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "delete failed")
		slog.Error("delete error", "kg_id", kgID, "error", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
