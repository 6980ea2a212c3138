package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/niravbeni/inside-ideo/internal/analyze"
	"github.com/niravbeni/inside-ideo/internal/enrich"
	"github.com/niravbeni/inside-ideo/internal/extract"
)

// registerRoutes sets up all HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /process", s.handleProcess)
	mux.HandleFunc("GET /images", s.handleImages)
	mux.HandleFunc("GET /pages", s.handlePages)
	mux.HandleFunc("GET /schema/default", s.handleDefaultSchema)
	mux.HandleFunc("GET /prompt/default", s.handleDefaultPrompt)
}

// handleHealth returns basic server health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleProcess accepts multipart PDF uploads plus optional prompt and
// schema form fields, runs the pipeline, and returns the combined result.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart form: %v", err))
		return
	}

	uploads := r.MultipartForm.File["files"]
	if len(uploads) == 0 {
		writeError(w, http.StatusBadRequest, "no files uploaded")
		return
	}

	var docs []extract.Document
	for _, fh := range uploads {
		if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", fh.Filename))
			return
		}

		id := uuid.New().String()
		path := s.home.UploadPath(id + "_" + fh.Filename)
		if err := saveUpload(fh, path); err != nil {
			s.logger.Error("failed to save upload", "file", fh.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save upload")
			return
		}
		docs = append(docs, extract.Document{ID: id, Path: path, Name: fh.Filename})
	}

	var schema json.RawMessage
	if raw := r.FormValue("schema"); raw != "" {
		if !json.Valid([]byte(raw)) {
			writeError(w, http.StatusBadRequest, "schema is not valid JSON")
			return
		}
		schema = json.RawMessage(raw)
	}

	result, err := s.runner.Run(r.Context(), docs, r.FormValue("prompt"), schema)
	if err != nil {
		s.logger.Error("pipeline run failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.persistArtifacts(result.Images, result.Pages)

	writeJSON(w, http.StatusOK, map[string]any{
		"structured_data": result.Analysis,
		"images":          result.Images,
		"pages":           result.Pages,
	})
}

// persistArtifacts writes accepted assets and page renders to the home
// directory so /images and /pages can serve them later. Write failures are
// logged, not fatal: the response already carries the data.
func (s *Server) persistArtifacts(images []enrich.EnrichedAsset, pages []extract.PageRender) {
	for _, img := range images {
		path := s.home.ImagePath(img.ID)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			s.logger.Warn("failed to persist image", "path", path, "error", err)
		}
	}
	for _, p := range pages {
		path := s.home.PagePath(p.Doc, p.Page)
		if err := os.WriteFile(path, p.Data, 0o644); err != nil {
			s.logger.Warn("failed to persist page render", "path", path, "error", err)
		}
	}
}

// handleImages lists persisted asset images.
func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	type imageInfo struct {
		Filename string `json:"filename"`
		Path     string `json:"path"`
		Size     int64  `json:"size"`
	}

	images := []imageInfo{}
	entries, err := os.ReadDir(s.home.ImagesDir())
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, e := range entries {
		if e.IsDir() || !isImageFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, imageInfo{
			Filename: e.Name(),
			Path:     filepath.Join(s.home.ImagesDir(), e.Name()),
			Size:     info.Size(),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

// handlePages lists persisted page renders, sorted by page number, with the
// PNG payload inlined as a base64 data URL.
func (s *Server) handlePages(w http.ResponseWriter, r *http.Request) {
	type pageInfo struct {
		Filename  string `json:"filename"`
		Path      string `json:"path"`
		Page      int    `json:"page"`
		Size      int64  `json:"size"`
		ImageData string `json:"image_data,omitempty"`
		Error     string `json:"error,omitempty"`
	}

	pages := []pageInfo{}
	entries, err := os.ReadDir(s.home.PagesDir())
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		p := pageInfo{
			Filename: e.Name(),
			Path:     filepath.Join(s.home.PagesDir(), e.Name()),
			Page:     pageNumberFromFilename(e.Name()),
			Size:     info.Size(),
		}
		data, err := os.ReadFile(p.Path)
		if err != nil {
			p.Error = err.Error()
		} else {
			p.ImageData = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
		}
		pages = append(pages, p)
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Page < pages[j].Page })
	writeJSON(w, http.StatusOK, map[string]any{"pages": pages})
}

// handleDefaultSchema returns the schema used when a request omits one.
func (s *Server) handleDefaultSchema(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(analyze.DefaultSchema)
}

// handleDefaultPrompt returns the prompt used when a request omits one.
func (s *Server) handleDefaultPrompt(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"prompt": analyze.DefaultPrompt})
}

// pageNumberFromFilename extracts the page number from names like
// "deck.pdf_page_0003.png". Returns 0 when the name does not match.
func pageNumberFromFilename(name string) int {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	idx := strings.LastIndex(base, "_page_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(base[idx+len("_page_"):])
	if err != nil {
		return 0
	}
	return n
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// saveUpload copies one uploaded file to disk.
func saveUpload(fh *multipart.FileHeader, path string) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
