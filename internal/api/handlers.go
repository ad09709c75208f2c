package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/grumpyguvner/mailkeys/internal/errors"
	"github.com/grumpyguvner/mailkeys/internal/keys"
	"github.com/grumpyguvner/mailkeys/internal/middleware"
	"go.uber.org/zap"
)

// maxBatchBody bounds the JSON body of a batch store
const maxBatchBody = 1 << 20

type listKeysResponse struct {
	Repository string   `json:"repository"`
	Keys       []string `json:"keys"`
}

type storeKeysRequest struct {
	Keys []string `json:"keys"`
}

// pathValues returns the decoded route variables named by names
func (s *Server) pathValues(r *http.Request, names ...string) ([]string, error) {
	vars := mux.Vars(r)
	out := make([]string, 0, len(names))
	for _, name := range names {
		v, err := url.PathUnescape(vars[name])
		if err != nil {
			return nil, errors.InvalidArgument(fmt.Sprintf("%s is not valid percent-encoding", name), map[string]string{"field": name})
		}
		switch name {
		case "repository":
			err = s.validator.ValidateRepository(v)
		case "key":
			err = s.validator.ValidateKey(v)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Server) handleStoreKey(w http.ResponseWriter, r *http.Request) {
	vals, err := s.pathValues(r, "repository", "key")
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	if err := s.store.Store(r.Context(), vals[0], vals[1]); err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveKey(w http.ResponseWriter, r *http.Request) {
	vals, err := s.pathValues(r, "repository", "key")
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	if err := s.store.Remove(r.Context(), vals[0], vals[1]); err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListKeys(w http.ResponseWriter, r *http.Request) {
	vals, err := s.pathValues(r, "repository")
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	list, err := keys.Collect(s.store.List(r.Context(), vals[0]))
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, listKeysResponse{Repository: vals[0], Keys: list})
}

func (s *Server) handleStoreKeys(w http.ResponseWriter, r *http.Request) {
	vals, err := s.pathValues(r, "repository")
	if err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	var req storeKeysRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBody)).Decode(&req); err != nil {
		middleware.HandleError(w, r, errors.InvalidArgument("request body must be a JSON object with a keys array", nil))
		return
	}
	if err := s.validator.ValidateBatch(req.Keys); err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	if err := s.async.StoreAll(r.Context(), vals[0], req.Keys); err != nil {
		middleware.HandleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"backend":         s.config.Backend,
		"uptime":          time.Since(s.startTime).Seconds(),
		"active_requests": s.activeRequests.Load(),
		"shutting_down":   s.shutdownStarted.Load(),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response",
			zap.Error(err),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
}
