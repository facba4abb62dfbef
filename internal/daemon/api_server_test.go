package daemon

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"flowline/internal/api"
	"flowline/internal/flow"
	"flowline/internal/logging"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func newTestAPI(t *testing.T, opts ...testsupport.ConfigOption) (*httptest.Server, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	svc := flow.NewService(cfg, store, nil)
	d, err := New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ts := httptest.NewServer(d.api.server.Handler)
	t.Cleanup(ts.Close)
	return ts, store
}

func doRequest(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestQueueRoutesRoundTrip(t *testing.T) {
	ts, store := newTestAPI(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/queues", api.CreateQueueRequest{
		ProjectID:        1,
		Name:             "main",
		Description:      "primary work",
		MaxParallelItems: 2,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created api.QueueResponse
	decodeBody(t, resp, &created)
	if created.Queue.Name != "main" || !created.Queue.IsActive {
		t.Fatalf("unexpected queue: %+v", created.Queue)
	}
	queueURL := ts.URL + "/api/queues/" + itoa(created.Queue.ID)

	resp = doRequest(t, http.MethodGet, queueURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on fetch, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	limit := 5
	inactive := false
	resp = doRequest(t, http.MethodPatch, queueURL, api.UpdateQueueRequest{
		MaxParallelItems: &limit,
		IsActive:         &inactive,
	})
	var updated api.QueueResponse
	decodeBody(t, resp, &updated)
	if updated.Queue.MaxParallelItems != 5 || updated.Queue.IsActive {
		t.Fatalf("patch did not apply: %+v", updated.Queue)
	}

	ticket := testsupport.NewTicket(t, store, 1, "waiting work")
	testsupport.Enqueue(t, store, created.Queue.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/queues?project=1", nil)
	var listed api.QueueListResponse
	decodeBody(t, resp, &listed)
	if len(listed.Queues) != 1 {
		t.Fatalf("expected 1 queue for project 1, got %d", len(listed.Queues))
	}
	summary := listed.Queues[0].Summary
	if summary == nil || summary.Queued != 1 || summary.InProgress != 0 {
		t.Fatalf("expected listing to carry activity counts, got %+v", summary)
	}
	resp = doRequest(t, http.MethodGet, ts.URL+"/api/queues?project=2", nil)
	decodeBody(t, resp, &listed)
	if len(listed.Queues) != 0 {
		t.Fatalf("expected no queues for project 2, got %d", len(listed.Queues))
	}

	resp = doRequest(t, http.MethodDelete, queueURL, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = doRequest(t, http.MethodGet, queueURL, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestNextTaskRouteClaimsUntilEmpty(t *testing.T) {
	ts, store := newTestAPI(t)

	q := testsupport.NewQueue(t, store, 1, "main", 2)
	ticket := testsupport.NewTicket(t, store, 1, "work")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})
	nextURL := ts.URL + "/api/queues/" + itoa(q.ID) + "/next-task"

	resp := doRequest(t, http.MethodPost, nextURL, api.NextTaskRequest{AgentID: "agent-1"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var claimed api.NextTaskResponse
	decodeBody(t, resp, &claimed)
	if claimed.Item == nil || claimed.Item.Status != "in_progress" || claimed.Item.Attempts != 1 {
		t.Fatalf("unexpected claim: %+v", claimed.Item)
	}

	resp = doRequest(t, http.MethodPost, nextURL, api.NextTaskRequest{AgentID: "agent-1"})
	var empty api.NextTaskResponse
	decodeBody(t, resp, &empty)
	if empty.Item != nil {
		t.Fatalf("drained queue should answer null, got %+v", empty.Item)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/queues/999/next-task", api.NextTaskRequest{AgentID: "agent-1"})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing queue, got %d", resp.StatusCode)
	}
	var apiErr api.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "not_found" {
		t.Fatalf("expected code not_found, got %q", apiErr.Code)
	}
}

func TestErrorCodesOverHTTP(t *testing.T) {
	ts, store := newTestAPI(t)

	q := testsupport.NewQueue(t, store, 1, "main", 1)
	other := testsupport.NewQueue(t, store, 1, "other", 1)
	ticket := testsupport.NewTicket(t, store, 1, "work")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	// Enqueueing the same ticket anywhere else conflicts.
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/tickets/"+itoa(ticket.ID)+"/enqueue",
		api.EnqueueBody{QueueID: other.ID})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	var apiErr api.ErrorResponse
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "already_queued" {
		t.Fatalf("expected already_queued, got %q", apiErr.Code)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/queues/"+itoa(q.ID)+"/pause", nil)
	resp.Body.Close()
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/queues/"+itoa(q.ID)+"/next-task",
		api.NextTaskRequest{AgentID: "agent-1"})
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 on paused queue, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "queue_paused" {
		t.Fatalf("expected queue_paused, got %q", apiErr.Code)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/process/complete",
		api.ProcessCompleteRequest{ItemType: "ticket", ItemID: ticket.ID})
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Fatalf("expected 412 for unclaimed item, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "not_in_progress" {
		t.Fatalf("expected not_in_progress, got %q", apiErr.Code)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/reorder", api.ReorderRequest{
		QueueID:        q.ID,
		OrderedItemIDs: []int64{12345},
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for bad reorder set, got %d", resp.StatusCode)
	}
	decodeBody(t, resp, &apiErr)
	if apiErr.Code != "invalid_reorder_set" {
		t.Fatalf("expected invalid_reorder_set, got %q", apiErr.Code)
	}

	// Malformed body reports 400 before touching the domain.
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/queues", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	badResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if badResp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", badResp.StatusCode)
	}
	badResp.Body.Close()

	resp = doRequest(t, http.MethodDelete, ts.URL+"/api/flow/move", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAuthTokenGuardsAPI(t *testing.T) {
	ts, _ := newTestAPI(t, testsupport.WithAPIToken("sekrit"))

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	req.Header.Set("Authorization", "Bearer sekrit")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCorrelationMiddlewareStampsRequests(t *testing.T) {
	var seen []string
	handler := correlationMiddleware(func(w http.ResponseWriter, r *http.Request) {
		id, ok := logging.CorrelationIDFromContext(r.Context())
		if !ok {
			t.Fatal("expected correlation id on request context")
		}
		seen = append(seen, id)
		w.WriteHeader(http.StatusNoContent)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
	if seen[0] == seen[1] {
		t.Fatalf("expected distinct correlation ids per request, got %v", seen)
	}
}

func TestLifecycleOverProcessRoutes(t *testing.T) {
	ts, store := newTestAPI(t, testsupport.WithMaxAttempts(2))

	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "flaky")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})
	nextURL := ts.URL + "/api/queues/" + itoa(q.ID) + "/next-task"

	resp := doRequest(t, http.MethodPost, nextURL, api.NextTaskRequest{AgentID: "agent-1"})
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/process/start", api.ProcessStartRequest{
		ItemType: "ticket", ItemID: ticket.ID, AgentID: "agent-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("process start: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/process/fail", api.ProcessFailRequest{
		ItemType: "ticket", ItemID: ticket.ID, ErrorMessage: "first failure",
	})
	var failed api.ItemResponse
	decodeBody(t, resp, &failed)
	if failed.Item.Status != "queued" || failed.Item.Attempts != 1 {
		t.Fatalf("expected requeue keeping attempts, got %+v", failed.Item)
	}

	resp = doRequest(t, http.MethodPost, nextURL, api.NextTaskRequest{AgentID: "agent-2"})
	resp.Body.Close()
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/process/fail", api.ProcessFailRequest{
		ItemType: "ticket", ItemID: ticket.ID, ErrorMessage: "second failure",
	})
	decodeBody(t, resp, &failed)
	if failed.Item.Status != "failed" {
		t.Fatalf("expected terminal failure at budget, got %+v", failed.Item)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/queues/"+itoa(q.ID)+"/retry", nil)
	var retried api.RetryResponse
	decodeBody(t, resp, &retried)
	if retried.Retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried.Retried)
	}

	resp = doRequest(t, http.MethodPost, nextURL, api.NextTaskRequest{AgentID: "agent-3"})
	var reclaimed api.NextTaskResponse
	decodeBody(t, resp, &reclaimed)
	if reclaimed.Item == nil || reclaimed.Item.Attempts != 1 {
		t.Fatalf("retried item should claim with a fresh budget, got %+v", reclaimed.Item)
	}
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/process/complete", api.ProcessCompleteRequest{
		ItemType: "ticket", ItemID: ticket.ID, CompletionNotes: "done",
	})
	var completed api.ItemResponse
	decodeBody(t, resp, &completed)
	if completed.Item.Status != "completed" {
		t.Fatalf("expected completion, got %+v", completed.Item)
	}
}

func TestBatchEnqueueAndReorderRoutes(t *testing.T) {
	ts, store := newTestAPI(t)

	q := testsupport.NewQueue(t, store, 1, "main", 3)
	ids := make([]int64, 3)
	for i := range ids {
		ids[i] = testsupport.NewTicket(t, store, 1, "t").ID
	}
	loose := testsupport.NewTicket(t, store, 1, "loose")

	entries := []api.BatchEnqueueEntry{
		{ItemType: "ticket", ItemID: ids[0]},
		{ItemType: "ticket", ItemID: ids[1]},
		{ItemType: "ticket", ItemID: ids[2]},
		{ItemType: "ticket", ItemID: 9999},
	}
	resp := doRequest(t, http.MethodPost, ts.URL+"/api/flow/batch-enqueue", api.BatchEnqueueRequest{
		QueueID: q.ID,
		Items:   entries,
	})
	var batch api.BatchEnqueueResponse
	decodeBody(t, resp, &batch)
	if batch.Enqueued != 3 {
		t.Fatalf("expected 3 enqueued, got %d", batch.Enqueued)
	}
	if batch.Results[3].Outcome != api.OutcomeNotFound {
		t.Fatalf("expected not_found for unknown ticket, got %+v", batch.Results[3])
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/queues/"+itoa(q.ID)+"/items?status=queued", nil)
	var items api.ItemListResponse
	decodeBody(t, resp, &items)
	if len(items.Items) != 3 {
		t.Fatalf("expected 3 queued items, got %d", len(items.Items))
	}

	reordered := []int64{items.Items[2].ID, items.Items[0].ID, items.Items[1].ID}
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/reorder", api.ReorderRequest{
		QueueID:        q.ID,
		OrderedItemIDs: reordered,
	})
	var afterReorder api.ItemListResponse
	decodeBody(t, resp, &afterReorder)
	for i, want := range reordered {
		if afterReorder.Items[i].ID != want {
			t.Fatalf("position %d: expected item %d, got %d", i, want, afterReorder.Items[i].ID)
		}
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/queues/"+itoa(q.ID)+"/items?status=bogus", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/projects/1/flow/unqueued", nil)
	var unqueued api.UnqueuedResponse
	decodeBody(t, resp, &unqueued)
	if len(unqueued.Tickets) != 1 || unqueued.Tickets[0].ID != loose.ID {
		t.Fatalf("expected only the loose ticket unqueued, got %+v", unqueued.Tickets)
	}
}

func TestMoveRoutesTransferAndDequeue(t *testing.T) {
	ts, store := newTestAPI(t)

	src := testsupport.NewQueue(t, store, 1, "src", 2)
	dst := testsupport.NewQueue(t, store, 1, "dst", 2)
	ticket := testsupport.NewTicket(t, store, 1, "mobile")
	testsupport.Enqueue(t, store, src.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/flow/move", api.MoveRequest{
		ItemType: "ticket", ItemID: ticket.ID, TargetQueueID: &dst.ID,
	})
	var moved api.MoveResponse
	decodeBody(t, resp, &moved)
	if moved.Item == nil || moved.Item.QueueID != dst.ID {
		t.Fatalf("expected move to dst, got %+v", moved.Item)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/move", api.MoveRequest{
		ItemType: "ticket", ItemID: ticket.ID, TargetQueueID: nil,
	})
	decodeBody(t, resp, &moved)
	if moved.Item != nil {
		t.Fatalf("null target should dequeue, got %+v", moved.Item)
	}

	resp = doRequest(t, http.MethodPost, ts.URL+"/api/tickets/"+itoa(ticket.ID)+"/dequeue", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 dequeuing an unqueued ticket, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Bulk move lands fresh and already-queued entries alike on the target.
	second := testsupport.NewTicket(t, store, 1, "second")
	testsupport.Enqueue(t, store, src.ID, queue.TicketRef(second.ID), queue.EnqueueOptions{})
	resp = doRequest(t, http.MethodPost, ts.URL+"/api/flow/bulk-move", api.BulkMoveRequest{
		Items: []api.ItemRefPayload{
			{ItemType: "ticket", ItemID: ticket.ID},
			{ItemType: "ticket", ItemID: second.ID},
		},
		TargetQueueID: &dst.ID,
	})
	var bulk api.BulkMoveResponse
	decodeBody(t, resp, &bulk)
	if bulk.Moved != 2 {
		t.Fatalf("expected 2 moved, got %d: %+v", bulk.Moved, bulk.Results)
	}
}

func TestStatusAndHealthRoutes(t *testing.T) {
	ts, store := newTestAPI(t)

	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "work")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/status", nil)
	var status api.DaemonStatus
	decodeBody(t, resp, &status)
	if status.PID <= 0 || status.DatabasePath == "" {
		t.Fatalf("unexpected status payload: %+v", status)
	}
	if status.Totals.Queued != 1 || status.Totals.Queues != 1 {
		t.Fatalf("unexpected totals: %+v", status.Totals)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/health", nil)
	var health api.HealthReport
	decodeBody(t, resp, &health)
	if !health.DatabaseExists || !health.TablesPresent || !health.IntegrityCheck {
		t.Fatalf("unexpected health payload: %+v", health)
	}
	if health.TotalItems != 1 {
		t.Fatalf("expected 1 item in health totals, got %d", health.TotalItems)
	}
}
