package pipeline

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pdf-layout-server/internal/domain"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultEnqueueTimeout = 30 * time.Second

// createPageConcurrency bounds parallel page-record creation during fan-out.
const createPageConcurrency = 8

// Coordinator owns document processing jobs: it fans a document out into
// page tasks, aggregates per-page outcomes into the document status, and
// emits status events at transition boundaries. At most one job is active
// per document at any time.
type Coordinator struct {
	store  domain.DocumentStore
	sched  *Scheduler
	bcast  *Broadcaster
	logger domain.Logger

	enqueueTimeout time.Duration

	mu     sync.Mutex
	active map[string]*jobRun
}

// NewCoordinator creates a coordinator dispatching onto the given scheduler.
func NewCoordinator(
	store domain.DocumentStore,
	sched *Scheduler,
	bcast *Broadcaster,
	enqueueTimeout time.Duration,
	logger domain.Logger,
) *Coordinator {
	if enqueueTimeout <= 0 {
		enqueueTimeout = defaultEnqueueTimeout
	}
	return &Coordinator{
		store:          store,
		sched:          sched,
		bcast:          bcast,
		logger:         logger,
		enqueueTimeout: enqueueTimeout,
		active:         make(map[string]*jobRun),
	}
}

// jobRun is the single-writer state of one active job. Its mutex serializes
// all state transitions for the document, so concurrent documents never
// contend with each other.
type jobRun struct {
	c      *Coordinator
	job    *domain.ProcessingJob
	doc    *domain.Document
	cancel context.CancelFunc

	mu       sync.Mutex
	outcomes map[int]*domain.PageOutcome
	indexed  int
	failed   int
	finished bool
}

// StartJob begins processing a document. It returns ErrJobAlreadyRunning
// when the document already has an active job, and ErrQueueTimeout when the
// scheduler queue stays full past the enqueue timeout. Dispatch-level
// failures (zero pages, storage errors during fan-out) do not surface as
// errors; the returned job is already Failed with the detail.
func (c *Coordinator) StartJob(ctx context.Context, doc *domain.Document) (*domain.ProcessingJob, error) {
	c.mu.Lock()
	if _, ok := c.active[doc.ID]; ok {
		c.mu.Unlock()
		return nil, domain.ErrJobAlreadyRunning
	}
	runCtx, cancel := context.WithCancel(context.Background())
	job := &domain.ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Status:     domain.JobStatusQueued,
		StartedAt:  time.Now(),
	}
	run := &jobRun{
		c:        c,
		job:      job,
		doc:      doc,
		cancel:   cancel,
		outcomes: make(map[int]*domain.PageOutcome),
	}
	c.active[doc.ID] = run
	c.mu.Unlock()

	c.emitJob(run, "", domain.JobStatusQueued, "")
	c.logger.Info("processing job queued", "job_id", job.ID, "document_id", doc.ID, "pages", doc.PageCount)

	if doc.PageCount <= 0 {
		c.failDispatch(run, &domain.DispatchError{Reason: "document has no pages"})
		return job, nil
	}

	pages := make([]*domain.Page, doc.PageCount)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(createPageConcurrency)
	for i := 0; i < doc.PageCount; i++ {
		eg.Go(func() error {
			p := &domain.Page{
				ID:         uuid.NewString(),
				DocumentID: doc.ID,
				Index:      i,
				Status:     domain.PageStatusPending,
				UpdatedAt:  time.Now(),
			}
			if err := c.store.CreatePage(egCtx, p); err != nil {
				return err
			}
			pages[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		c.failDispatch(run, &domain.DispatchError{Reason: "failed to create page records: " + err.Error()})
		return job, nil
	}

	job.Status = domain.JobStatusRunning
	c.emitJob(run, domain.JobStatusQueued, domain.JobStatusRunning, "")
	oldDocStatus := doc.Status
	doc.Status = domain.DocumentStatusProcessing
	if err := c.store.UpdateDocumentStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		c.logger.Error("failed to persist document status", err, "document_id", doc.ID)
	}
	c.emitDocument(run, oldDocStatus, domain.DocumentStatusProcessing, "")

	for i, p := range pages {
		task := PageTask{Ctx: runCtx, JobID: job.ID, Document: doc, Page: p, Reporter: run}
		if err := c.sched.Enqueue(ctx, task, c.enqueueTimeout); err != nil {
			// Cancel the pages already dispatched and fail the rest so the
			// job still reaches a terminal state.
			run.cancel()
			detail := domain.FailureDetail(err)
			for _, rest := range pages[i:] {
				from := rest.Status
				rest.Status = domain.PageStatusFailed
				rest.Error = detail
				if perr := c.store.UpdatePageStatus(context.Background(), doc.ID, rest.Index, domain.PageStatusFailed, detail); perr != nil {
					c.logger.Error("failed to persist page failure", perr, "document_id", doc.ID, "page_index", rest.Index)
				}
				run.PageTransition(PageTask{JobID: job.ID, Document: doc, Page: rest}, from, domain.PageStatusFailed, detail)
			}
			if errors.Is(err, domain.ErrQueueTimeout) {
				return job, domain.ErrQueueTimeout
			}
			return job, err
		}
	}

	return job, nil
}

// Cancel signals the document's active job to stop. In-flight page workers
// stop at their next stage checkpoint; queued pages fail with Cancelled.
func (c *Coordinator) Cancel(documentID string) error {
	c.mu.Lock()
	run, ok := c.active[documentID]
	c.mu.Unlock()
	if !ok {
		return domain.ErrNoActiveJob
	}
	c.logger.Info("cancelling processing job", "job_id", run.job.ID, "document_id", documentID)
	run.cancel()
	return nil
}

// ActiveJob returns a snapshot of the document's active job, if any.
func (c *Coordinator) ActiveJob(documentID string) (*domain.ProcessingJob, bool) {
	c.mu.Lock()
	run, ok := c.active[documentID]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	run.mu.Lock()
	defer run.mu.Unlock()
	snapshot := *run.job
	snapshot.Outcomes = append([]domain.PageOutcome(nil), run.job.Outcomes...)
	return &snapshot, true
}

// PageTransition implements TransitionReporter. Called synchronously by
// workers; page events are forwarded as-is, terminal states are folded into
// the aggregate and the job finalized once every page is terminal.
func (r *jobRun) PageTransition(task PageTask, from, to domain.PageStatus, detail *domain.PageError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished {
		return
	}

	r.c.emitPage(r, task.Page.Index, from, to, detail)

	if !to.Terminal() {
		return
	}
	if _, seen := r.outcomes[task.Page.Index]; seen {
		return
	}
	r.outcomes[task.Page.Index] = &domain.PageOutcome{PageIndex: task.Page.Index, Status: to, Error: detail}
	if to == domain.PageStatusIndexed {
		r.indexed++
	} else {
		r.failed++
	}
	if r.indexed+r.failed == r.doc.PageCount {
		r.finalize()
	}
}

// finalize computes the terminal job and document status. Caller holds r.mu.
func (r *jobRun) finalize() {
	r.finished = true

	docStatus := domain.AggregateDocumentStatus(r.indexed, r.failed, r.doc.PageCount)
	var jobStatus domain.JobStatus
	switch docStatus {
	case domain.DocumentStatusCompleted:
		jobStatus = domain.JobStatusCompleted
	case domain.DocumentStatusFailed:
		jobStatus = domain.JobStatusFailed
	default:
		jobStatus = domain.JobStatusPartiallyFailed
	}

	outcomes := make([]domain.PageOutcome, 0, len(r.outcomes))
	for _, o := range r.outcomes {
		outcomes = append(outcomes, *o)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].PageIndex < outcomes[j].PageIndex })
	r.job.Outcomes = outcomes

	now := time.Now()
	r.job.FinishedAt = &now

	// The job context may already be cancelled; persistence of the final
	// status must still happen.
	if err := r.c.store.UpdateDocumentStatus(context.Background(), r.doc.ID, docStatus); err != nil {
		r.c.logger.Error("failed to persist final document status", err, "document_id", r.doc.ID)
	}
	oldDocStatus := r.doc.Status
	r.doc.Status = docStatus
	r.c.emitDocument(r, oldDocStatus, docStatus, "")

	oldJobStatus := r.job.Status
	r.job.Status = jobStatus
	r.c.emitJob(r, oldJobStatus, jobStatus, "")

	r.c.logger.Info("processing job finished",
		"job_id", r.job.ID, "document_id", r.doc.ID, "status", jobStatus,
		"indexed", r.indexed, "failed", r.failed)

	r.cancel()
	r.c.removeActive(r.doc.ID)
}

// failDispatch moves a job straight from Queued to Failed when fan-out is
// impossible.
func (c *Coordinator) failDispatch(run *jobRun, derr *domain.DispatchError) {
	run.mu.Lock()
	defer run.mu.Unlock()
	run.finished = true

	now := time.Now()
	run.job.FinishedAt = &now

	if err := c.store.UpdateDocumentStatus(context.Background(), run.doc.ID, domain.DocumentStatusFailed); err != nil {
		c.logger.Error("failed to persist document status", err, "document_id", run.doc.ID)
	}
	oldDocStatus := run.doc.Status
	run.doc.Status = domain.DocumentStatusFailed
	c.emitDocument(run, oldDocStatus, domain.DocumentStatusFailed, derr.Error())

	oldJobStatus := run.job.Status
	run.job.Status = domain.JobStatusFailed
	c.emitJob(run, oldJobStatus, domain.JobStatusFailed, derr.Error())

	c.logger.Warn("job dispatch failed", "job_id", run.job.ID, "document_id", run.doc.ID, "reason", derr.Reason)

	run.cancel()
	c.removeActive(run.doc.ID)
}

func (c *Coordinator) removeActive(documentID string) {
	c.mu.Lock()
	delete(c.active, documentID)
	c.mu.Unlock()
}

func (c *Coordinator) emitPage(run *jobRun, pageIndex int, from, to domain.PageStatus, detail *domain.PageError) {
	var errDetail string
	if detail != nil {
		errDetail = detail.Message
	}
	c.emit(run, domain.SubjectPage, pageIndex, string(from), string(to), errDetail)
}

func (c *Coordinator) emitDocument(run *jobRun, from, to domain.DocumentStatus, errDetail string) {
	c.emit(run, domain.SubjectDocument, domain.DocumentSubject, string(from), string(to), errDetail)
}

func (c *Coordinator) emitJob(run *jobRun, from, to domain.JobStatus, errDetail string) {
	c.emit(run, domain.SubjectJob, domain.DocumentSubject, string(from), string(to), errDetail)
}

func (c *Coordinator) emit(run *jobRun, subject domain.EventSubject, pageIndex int, from, to, errDetail string) {
	c.bcast.Publish(domain.StatusEvent{
		Subject:    subject,
		JobID:      run.job.ID,
		DocumentID: run.doc.ID,
		PageIndex:  pageIndex,
		OldStatus:  from,
		NewStatus:  to,
		Error:      errDetail,
		Timestamp:  time.Now(),
	})
}
