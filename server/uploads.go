package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"pilot-bridge/updater"
)

// uploadFile удаляет временный файл прошивки после завершения загрузки
type uploadFile struct {
	file *os.File
}

func (u *uploadFile) OnRequestProgress(percent int) {}

func (u *uploadFile) OnRequestComplete(status updater.Status, code int) {
	u.file.Close()
	if err := os.Remove(u.file.Name()); err != nil {
		logger.Printf("Failed to remove %s: %v", u.file.Name(), err)
	}
}

type updateResponse struct {
	ID       uuid.UUID      `json:"id"`
	Size     int64          `json:"size"`
	Status   updater.Status `json:"status"`
	Progress int            `json:"progress"`
	HTTPCode int            `json:"httpCode"`
}

func responseOf(req *updater.Request) updateResponse {
	return updateResponse{
		ID:       req.ID,
		Size:     req.Size,
		Status:   req.Status(),
		Progress: req.Progress(),
		HTTPCode: req.HTTPCode(),
	}
}

// startUpdate сохраняет прошивку во временный файл и загружает ее на дрон
func (s *Server) startUpdate(w http.ResponseWriter, r *http.Request) {
	if s.updates == nil {
		writeError(w, http.StatusNotFound, "updater disabled")
		return
	}
	defer r.Body.Close()

	file, err := os.CreateTemp(s.config.UploadDir, "firmware-*.bin")
	if err != nil {
		logger.Printf("Failed to create temporary file: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to store firmware")
		return
	}
	size, err := io.Copy(file, r.Body)
	if err == nil {
		_, err = file.Seek(0, io.SeekStart)
	}
	if err != nil || size == 0 {
		file.Close()
		os.Remove(file.Name())
		writeError(w, http.StatusBadRequest, "empty or unreadable firmware body")
		return
	}

	req := s.updates.Upload(context.Background(), file, size, &uploadFile{file: file})
	s.uploadsMu.Lock()
	s.uploads[req.ID] = req
	s.uploadsMu.Unlock()
	go s.forgetUpload(req)

	logger.Printf("Firmware upload %s started: %d bytes", req.ID, size)
	writeJSON(w, http.StatusAccepted, responseOf(req))
}

// forgetUpload удаляет завершенную загрузку через UploadRetention
func (s *Server) forgetUpload(req *updater.Request) {
	<-req.Done()
	time.AfterFunc(s.config.UploadRetention, func() {
		s.uploadsMu.Lock()
		delete(s.uploads, req.ID)
		s.uploadsMu.Unlock()
	})
}

func (s *Server) lookupUpdate(w http.ResponseWriter, r *http.Request) (*updater.Request, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid upload id")
		return nil, false
	}
	s.uploadsMu.Lock()
	req, ok := s.uploads[id]
	s.uploadsMu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "upload not found")
		return nil, false
	}
	return req, true
}

func (s *Server) getUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.lookupUpdate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, responseOf(req))
}

// cancelUpdate отменяет загрузку и ждет ее результата
func (s *Server) cancelUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.lookupUpdate(w, r)
	if !ok {
		return
	}
	req.Cancel()
	select {
	case <-req.Done():
	case <-r.Context().Done():
		return
	}
	writeJSON(w, http.StatusOK, responseOf(req))
}
