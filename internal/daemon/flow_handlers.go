package daemon

import (
	"net/http"
	"strings"

	"flowline/internal/api"
	"flowline/internal/flow"
	"flowline/internal/queue"
)

func (s *apiServer) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CreateTicketRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ticket, err := s.svc.CreateTicket(r.Context(), req.ProjectID, req.Title)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TicketResponse{Ticket: api.FromTicket(ticket)})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	task, err := s.svc.CreateTask(r.Context(), req.TicketID, req.Title)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.TaskResponse{Task: api.FromTask(task)})
}

func (s *apiServer) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := parseSubpath(strings.TrimPrefix(r.URL.Path, "/api/tickets/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "ticket not found")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		ticket, err := s.svc.GetTicket(r.Context(), id)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TicketResponse{Ticket: api.FromTicket(ticket)})
	case "enqueue":
		s.handleEnqueue(w, r, queue.TicketRef(id))
	case "dequeue":
		s.handleDequeue(w, r, queue.TicketRef(id))
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleTaskSubtree(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := parseSubpath(strings.TrimPrefix(r.URL.Path, "/api/tasks/"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		task, err := s.svc.GetTask(r.Context(), id)
		if err != nil {
			s.writeFlowError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: api.FromTask(task)})
	case "enqueue":
		s.handleEnqueue(w, r, queue.TaskRef(id))
	case "dequeue":
		s.handleDequeue(w, r, queue.TaskRef(id))
	default:
		s.writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request, ref queue.ItemRef) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body api.EnqueueBody
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.Enqueue(r.Context(), body.QueueID, ref, body.Options())
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.ItemResponse{Item: api.FromQueueItem(item)})
}

// handleDequeue removes the reference from its queue. The administrative
// force override stays CLI-only.
func (s *apiServer) handleDequeue(w http.ResponseWriter, r *http.Request, ref queue.ItemRef) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	item, err := s.svc.Dequeue(r.Context(), ref, false)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.MoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.Move(r.Context(), req.Ref(), req.Target())
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	resp := api.MoveResponse{}
	if item != nil {
		dto := api.FromQueueItem(item)
		resp.Item = &dto
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleBulkMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.BulkMoveRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	refs := make([]queue.ItemRef, 0, len(req.Items))
	for _, item := range req.Items {
		refs = append(refs, item.Ref())
	}
	outcomes, err := s.svc.BulkMove(r.Context(), refs, req.Target())
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	results, moved := api.FromMoveOutcomes(outcomes)
	s.writeJSON(w, http.StatusOK, api.BulkMoveResponse{Results: results, Moved: moved})
}

func (s *apiServer) handleBatchEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.BatchEnqueueRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries := make([]flow.EnqueueRequest, 0, len(req.Items))
	for _, item := range req.Items {
		entries = append(entries, flow.EnqueueRequest{
			Ref: queue.ItemRef{Type: queue.ItemType(item.ItemType), ID: item.ItemID},
			Opts: queue.EnqueueOptions{
				Priority:              item.Priority,
				MaxAttempts:           item.MaxAttempts,
				EstimatedProcessingMS: item.EstimatedProcessingMS,
				MetadataJSON:          string(item.Metadata),
			},
		})
	}
	outcomes, err := s.svc.BatchEnqueue(r.Context(), req.QueueID, entries)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	results, enqueued := api.FromEnqueueOutcomes(outcomes)
	s.writeJSON(w, http.StatusOK, api.BatchEnqueueResponse{Results: results, Enqueued: enqueued})
}

func (s *apiServer) handleReorder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := s.svc.Reorder(r.Context(), req.QueueID, req.OrderedItemIDs)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemListResponse{Items: api.FromQueueItems(items)})
}

func (s *apiServer) handleProcessStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ProcessStartRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.ProcessStart(r.Context(), req.Ref(), req.AgentID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleProcessComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ProcessCompleteRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.ProcessComplete(r.Context(), req.Ref(), req.CompletionNotes)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleProcessFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.ProcessFailRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	item, err := s.svc.ProcessFail(r.Context(), req.Ref(), req.ErrorMessage)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ItemResponse{Item: api.FromQueueItem(item)})
}

func (s *apiServer) handleProjectSubtree(w http.ResponseWriter, r *http.Request) {
	projectID, rest, ok := parseSubpath(strings.TrimPrefix(r.URL.Path, "/api/projects/"))
	if !ok || rest != "flow/unqueued" {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	unqueued, err := s.svc.Unqueued(r.Context(), projectID)
	if err != nil {
		s.writeFlowError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UnqueuedResponse{
		Tickets: api.FromTickets(unqueued.Tickets),
		Tasks:   api.FromTasks(unqueued.Tasks),
	})
}
