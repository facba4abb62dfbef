package daemon

import (
	"net/http"
	"strconv"
	"strings"

	"flowline/internal/api"
	"flowline/internal/flow"
	"flowline/internal/queue"
)

// parseSubpath splits a path remainder like "15/next-task" into the leading
// id and the rest.
func parseSubpath(path string) (int64, string, bool) {
	head, rest, _ := strings.Cut(path, "/")
	id, err := strconv.ParseInt(head, 10, 64)
	if err != nil || id <= 0 {
		return 0, "", false
	}
	return id, rest, true
}

func (s *apiServer) handleQueues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var projectID int64
		if raw := strings.TrimSpace(r.URL.Query().Get("project")); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				s.writeError(w, http.StatusBadRequest, "invalid project id")
				return
			}
			projectID = parsed
		}
		queues, err := s.svc.ListQueues(r.Context(), projectID)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		activity, err := s.svc.QueueActivity(r.Context(), projectID)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueListResponse{Queues: api.FromQueuesWithActivity(queues, activity)})
	case http.MethodPost:
		var req api.CreateQueueRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q, err := s.svc.CreateQueue(r.Context(), req.ProjectID, req.Name, req.Description, req.MaxParallelItems)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.QueueResponse{Queue: api.FromQueue(q)})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueSubtree(w http.ResponseWriter, r *http.Request) {
	queueID, rest, ok := parseSubpath(strings.TrimPrefix(r.URL.Path, "/api/queues/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "queue not found")
		return
	}

	switch rest {
	case "":
		s.handleQueueByID(w, r, queueID)
	case "next-task":
		s.handleNextTask(w, r, queueID)
	case "pause":
		s.handleSetActive(w, r, queueID, false)
	case "resume":
		s.handleSetActive(w, r, queueID, true)
	case "stats":
		s.handleQueueStats(w, r, queueID)
	case "items":
		s.handleQueueItems(w, r, queueID)
	case "timeline":
		s.handleQueueTimeline(w, r, queueID)
	case "retry":
		s.handleQueueRetry(w, r, queueID)
	case "clear":
		s.handleQueueClear(w, r, queueID)
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleQueueByID(w http.ResponseWriter, r *http.Request, queueID int64) {
	switch r.Method {
	case http.MethodGet:
		q, err := s.svc.GetQueue(r.Context(), queueID)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.QueueResponse{Queue: api.FromQueue(q)})
	case http.MethodPatch:
		var req api.UpdateQueueRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q, err := s.svc.UpdateQueue(r.Context(), queueID, flow.QueueUpdate{
			Name:             req.Name,
			Description:      req.Description,
			MaxParallelItems: req.MaxParallelItems,
		})
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		if req.IsActive != nil {
			if *req.IsActive {
				q, err = s.svc.Resume(r.Context(), queueID)
			} else {
				q, err = s.svc.Pause(r.Context(), queueID)
			}
			if err != nil {
				s.writeFlowError(w, err)
				return
			}
		}
		s.writeJSON(w, http.StatusOK, api.QueueResponse{Queue: api.FromQueue(q)})
	case http.MethodDelete:
		if err := s.svc.DeleteQueue(r.Context(), queueID); err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, nil)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleNextTask(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.NextTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.NextTask(r.Context(), queueID, req.AgentID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	// Nothing claimable is a normal answer, not an error.
	resp := api.NextTaskResponse{}
	if item != nil {
		dto := api.FromQueueItem(item)
		resp.Item = &dto
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSetActive(w http.ResponseWriter, r *http.Request, queueID int64, active bool) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var (
		q   *queue.Queue
		err error
	)
	if active {
		q, err = s.svc.Resume(r.Context(), queueID)
	} else {
		q, err = s.svc.Pause(r.Context(), queueID)
	}
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.QueueResponse{Queue: api.FromQueue(q)})
}

func (s *apiServer) handleQueueStats(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.svc.Stats(r.Context(), queueID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromStats(stats))
}

func (s *apiServer) handleQueueItems(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		status, ok := queue.ParseStatus(trimmed)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "invalid status filter: "+trimmed)
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.svc.Items(r.Context(), queueID, statuses...)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: api.FromQueueItems(items)})
}

func (s *apiServer) handleQueueTimeline(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	events, err := s.svc.Timeline(r.Context(), queueID, limit)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TimelineResponse{Events: api.FromFlowEvents(events)})
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	retried, err := s.svc.RetryFailed(r.Context(), queueID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RetryResponse{Retried: retried})
}

func (s *apiServer) handleQueueClear(w http.ResponseWriter, r *http.Request, queueID int64) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	cleared, err := s.svc.ClearTerminal(r.Context(), queueID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: cleared})
}
