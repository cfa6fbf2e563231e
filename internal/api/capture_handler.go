package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/pixashot-gateway/internal/capture"
	"github.com/JakeFAU/pixashot-gateway/internal/metrics"
	"github.com/JakeFAU/pixashot-gateway/internal/upstream"
)

const (
	genericErrorMessage = "An error occurred while processing your request"

	maxInputBodyBytes = 1 << 20
	relayChunkBytes   = 32 * 1024
)

var errInvalidBody = errors.New("invalid request body")

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With(zap.String("request_id", requestIDFrom(r.Context())))

	input, err := collectInput(w, r)
	if err != nil {
		if errors.Is(err, errInvalidBody) {
			logger.Debug("rejected capture body", zap.Error(err))
			s.writeError(w, http.StatusBadRequest, errInvalidBody.Error())
			return
		}
		s.localFailure(w, logger, err)
		return
	}

	req, err := capture.Parse(input)
	if err != nil {
		var verr *capture.ValidationError
		if errors.As(err, &verr) {
			for _, field := range verr.Fields() {
				metrics.ObserveValidationFailure(field)
			}
			s.writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		s.localFailure(w, logger, err)
		return
	}

	resp, err := s.capturer.Capture(r.Context(), req)
	if err != nil {
		s.localFailure(w, logger.With(zap.String("url", req.URL)), err)
		return
	}

	if resp.StatusCode != http.StatusOK {
		upErr, err := upstream.ReadError(resp)
		if err != nil {
			s.localFailure(w, logger.With(zap.String("url", req.URL)), err)
			return
		}
		logger.Info("renderer rejected capture",
			zap.String("url", req.URL),
			zap.Int("status", upErr.Status),
			zap.String("message", upErr.Message),
		)
		if !bodyAllowed(upErr.Status) {
			w.WriteHeader(upErr.Status)
			return
		}
		s.writeError(w, upErr.Status, upErr.Message)
		return
	}

	s.relayImage(w, logger, req, resp)
}

// relayImage streams a successful renderer response to the caller. Once the
// headers are written a copy failure can only be logged.
func (s *Server) relayImage(w http.ResponseWriter, logger *zap.Logger, req capture.Request, resp *http.Response) {
	defer resp.Body.Close() //nolint:errcheck // read-only body

	h := w.Header()
	h.Set("Content-Type", req.ContentType())
	h.Set("Cache-Control", s.cacheControl)
	h.Set("X-Content-Type-Options", "nosniff")
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		h.Set("Content-Length", cl)
	}
	w.WriteHeader(http.StatusOK)

	n, err := copyBody(w, resp.Body)
	metrics.ObserveRelayedBytes(req.ImageFormat(), n)
	if err != nil {
		logger.Warn("image relay interrupted",
			zap.String("url", req.URL),
			zap.Int64("bytes", n),
			zap.Error(err),
		)
	}
}

// bodyAllowed reports whether a response with status may carry a body.
func bodyAllowed(status int) bool {
	switch {
	case status >= 100 && status < 200:
		return false
	case status == http.StatusNoContent, status == http.StatusNotModified:
		return false
	}
	return true
}

func (s *Server) localFailure(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Error("screenshot capture error", zap.Error(err))
	s.writeError(w, http.StatusInternalServerError, genericErrorMessage)
}

// copyBody copies src to w in fixed-size chunks, flushing after each one so
// large images are never held in memory.
func copyBody(w http.ResponseWriter, src io.Reader) (int64, error) {
	flusher, _ := w.(http.Flusher)
	buf := make([]byte, relayChunkBytes)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, fmt.Errorf("write image chunk: %w", werr)
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, fmt.Errorf("read image chunk: %w", rerr)
		}
	}
}

// collectInput merges query parameters with a JSON or form-encoded body.
// Body keys win. For repeated query keys the last value is used.
func collectInput(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	input := make(map[string]any)
	mergeValues(input, r.URL.Query())

	if r.Body == nil || r.Body == http.NoBody {
		return input, nil
	}
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return input, nil
	}

	body := http.MaxBytesReader(w, r.Body, maxInputBodyBytes)
	switch mediaType {
	case "application/json":
		var fields map[string]any
		dec := json.NewDecoder(body)
		dec.UseNumber()
		if err := dec.Decode(&fields); err != nil {
			if errors.Is(err, io.EOF) {
				return input, nil
			}
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		for k, v := range fields {
			input[k] = v
		}
	case "application/x-www-form-urlencoded":
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errInvalidBody, err)
		}
		mergeValues(input, form)
	}
	return input, nil
}

func mergeValues(dst map[string]any, src url.Values) {
	for k, vs := range src {
		if len(vs) > 0 {
			dst[k] = vs[len(vs)-1]
		}
	}
}
