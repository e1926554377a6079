package server

import (
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/internal/preview"
)

// maxBody caps JSON request bodies.
const maxBody = 1 << 16

// maxFrameSize caps requested PNG dimensions.
const maxFrameSize = 4096

type createRequest struct {
	URL         string  `json:"url"`
	Height      string  `json:"height"`
	Wireframe   bool    `json:"wireframe"`
	ShowGrid    *bool   `json:"showGrid"`
	ShowBounds  bool    `json:"showBounds"`
	Dark        bool    `json:"dark"`
	FollowTheme bool    `json:"followTheme"`
	Background  string  `json:"background"`
	FOV         float64 `json:"fov"`
	Preset      *int    `json:"preset"`
}

type createResponse struct {
	ID   string       `json:"id"`
	View preview.View `json:"view"`
}

// patchRequest changes toggles. Absent fields are left alone.
type patchRequest struct {
	URL         *string  `json:"url"`
	Wireframe   *bool    `json:"wireframe"`
	ShowGrid    *bool    `json:"showGrid"`
	ShowBounds  *bool    `json:"showBounds"`
	Dark        *bool    `json:"dark"`
	Collapsed   *bool    `json:"collapsed"`
	Preset      *int     `json:"preset"`
	CellSize    *float64 `json:"cellSize"`
	SectionSize *float64 `json:"sectionSize"`
}

// cameraRequest is orbit input. Rotate is radians, pan is fractions of
// the view height, zoom multiplies the distance.
type cameraRequest struct {
	Rotate *[2]float64 `json:"rotate,omitempty"`
	Pan    *[2]float64 `json:"pan,omitempty"`
	Zoom   float64     `json:"zoom,omitempty"`
}

type themeBody struct {
	Dark bool `json:"dark"`
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"sessions": s.Sessions()})
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, debug.Presets)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, themeBody{Dark: s.theme.Dark()})
}

func (s *Server) handlePutTheme(w http.ResponseWriter, r *http.Request) {
	var body themeBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.theme.Set(body.Dark)
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, errors.New("url is required"))
		return
	}
	if req.Height != "" {
		if _, err := preview.ParseHeight(req.Height); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	id, err := newSessionID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	sess := newSession(id, s.log)

	props := preview.DefaultProps(req.URL)
	props.Height = s.opts.Height
	if req.Height != "" {
		props.Height = req.Height
	}
	props.Wireframe = req.Wireframe
	props.ShowGrid = s.opts.Grid
	if req.ShowGrid != nil {
		props.ShowGrid = *req.ShowGrid
	}
	props.ShowBounds = req.ShowBounds
	props.Dark = req.Dark
	if req.Background != "" {
		props.Background = req.Background
	}
	props.FOV = s.opts.FOV
	if req.FOV > 0 {
		props.FOV = req.FOV
	}
	props.OnSceneMetrics = sess.publish

	sess.panel = preview.NewPanel(s.loader, props,
		preview.WithLogger(sess.log),
		preview.WithFPS(s.opts.FPS),
		preview.WithDamping(s.opts.Damping))

	preset := s.opts.Preset
	if req.Preset != nil {
		preset = *req.Preset
	}
	if err := sess.panel.SelectPreset(preset); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.add(sess); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	if req.FollowTheme {
		sess.panel.FollowTheme(s.theme)
	}
	sess.panel.Mount()
	sess.log.Info("session opened", zap.String("url", req.URL))

	writeJSON(w, http.StatusCreated, createResponse{ID: id, View: sess.panel.Snapshot()})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("wait") != "" {
		// Load failures surface in the view itself.
		if err := sess.panel.Wait(r.Context()); errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
	}
	writeJSON(w, http.StatusOK, sess.panel.Snapshot())
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req patchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	p := sess.panel
	if req.Preset != nil {
		if err := p.SelectPreset(*req.Preset); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if req.URL != nil {
		if *req.URL == "" {
			writeError(w, http.StatusBadRequest, errors.New("url must not be empty"))
			return
		}
		p.SetURL(*req.URL)
	}
	if req.Wireframe != nil {
		p.SetWireframe(*req.Wireframe)
	}
	if req.ShowGrid != nil {
		p.SetShowGrid(*req.ShowGrid)
	}
	if req.ShowBounds != nil {
		p.SetShowBounds(*req.ShowBounds)
	}
	if req.Dark != nil {
		p.SetDark(*req.Dark)
	}
	if req.Collapsed != nil {
		p.SetCollapsed(*req.Collapsed)
	}
	if req.CellSize != nil || req.SectionSize != nil {
		var cell, section float64
		if req.CellSize != nil {
			cell = *req.CellSize
		}
		if req.SectionSize != nil {
			section = *req.SectionSize
		}
		if cell < 0 || section < 0 {
			writeError(w, http.StatusBadRequest, errors.New("grid sizes must not be negative"))
			return
		}
		p.SetGridSize(cell, section)
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.remove(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, ErrSessionNotFound)
		return
	}
	sess.close()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.panel.Retry(); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sess.panel.Snapshot())
}

func (s *Server) handleCamera(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var req cameraRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	applyCamera(sess.panel, req)
	w.WriteHeader(http.StatusNoContent)
}

func applyCamera(p *preview.Panel, req cameraRequest) {
	if req.Rotate != nil {
		p.Rotate(req.Rotate[0], req.Rotate[1])
	}
	if req.Pan != nil {
		p.Pan(req.Pan[0], req.Pan[1])
	}
	if req.Zoom > 0 {
		p.Zoom(req.Zoom)
	}
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if s.renderer == nil {
		writeError(w, http.StatusNotImplemented, errors.New("rendering disabled"))
		return
	}

	cfg := s.renderer.Config()
	width, err := dimension(r, "w", cfg.Width)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	height, err := dimension(r, "h", cfg.Height)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	// Frames are stills, so let damped motion finish first.
	for i := 0; i < 2*s.opts.FPS; i++ {
		if !sess.panel.Tick() {
			break
		}
	}

	start := time.Now()
	img, err := sess.panel.Render(s.renderer, width, height)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	sess.log.Debug("frame rendered",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Duration("took", time.Since(start)))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		sess.log.Warn("writing frame", zap.Error(err))
	}
}

func dimension(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 || n > maxFrameSize {
		return 0, errors.New("invalid " + key + " " + strconv.Quote(v))
	}
	return n, nil
}

// session resolves the {id} path value, writing a 404 if unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session, bool) {
	sess, err := s.lookup(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return sess, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, preview.ErrNotFailed),
		errors.Is(err, preview.ErrPanelUnmounted),
		errors.Is(err, preview.ErrUnavailable):
		return http.StatusConflict
	case errors.Is(err, preview.ErrInvalidPreset):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
