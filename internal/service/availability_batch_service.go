package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/Flexitaim/api-flexitaim/internal/dto"
	"github.com/Flexitaim/api-flexitaim/internal/models"
	"github.com/Flexitaim/api-flexitaim/internal/scheduling"
	appErrors "github.com/Flexitaim/api-flexitaim/pkg/errors"
)

// errBatchRejected aborts a strict batch transaction after per-item failures.
var errBatchRejected = errors.New("batch rejected")

type batchKind string

const (
	batchKindCreate batchKind = "create"
	batchKindUpdate batchKind = "update"
)

// batchCandidate is one item travelling through the batch pipeline.
type batchCandidate struct {
	index       int
	id          string
	input       *dto.CreateAvailabilityRequest
	window      models.AvailabilityWindow
	previous    string
	renormalize bool
	failed      bool
}

// AvailabilityBatchService applies many window writes in one transaction.
type AvailabilityBatchService struct {
	windows   availabilityRepository
	resources resourceLocker
	tx        *txRunner
	cache     *CacheService
	metrics   *MetricsService
	clock     scheduling.Clock
	loc       *time.Location
	maxItems  int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAvailabilityBatchService constructs the batch processor.
func NewAvailabilityBatchService(
	windows availabilityRepository,
	resources resourceLocker,
	tx txProvider,
	cache *CacheService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulingConfig,
) *AvailabilityBatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &AvailabilityBatchService{
		windows:   windows,
		resources: resources,
		tx:        newTxRunner(tx, cfg.Tx, cfg.Metrics, logger),
		cache:     cache,
		metrics:   cfg.Metrics,
		clock:     cfg.Clock,
		loc:       cfg.Location,
		maxItems:  cfg.BatchMaxItems,
		validator: registerSchedulingValidations(validate),
		logger:    logger,
	}
}

// BatchCreate creates windows in input order. Strict batches write all or
// nothing; lenient batches write every item that passed.
func (s *AvailabilityBatchService) BatchCreate(ctx context.Context, items []dto.CreateAvailabilityRequest, mode dto.BatchMode) (*dto.WindowBatchResult, error) {
	mode, err := s.checkBatch(len(items), mode)
	if err != nil {
		return nil, err
	}

	var result *dto.WindowBatchResult
	var touched []string
	err = s.tx.run(ctx, "availability.batch_create", func(tx *sqlx.Tx) error {
		result = newBatchResult(mode)
		candidates := make([]*batchCandidate, len(items))
		for i := range items {
			input := items[i]
			c := &batchCandidate{index: i, input: &input, renormalize: true}
			candidates[i] = c
			if err := s.validator.Struct(input); err != nil {
				s.reject(result, c, appErrors.ErrValidation.Code, "invalid availability payload: "+err.Error(), nil)
				continue
			}
			window, err := windowFromRequest(input)
			if err != nil {
				s.reject(result, c, appErrors.ErrValidation.Code, appErrors.FromError(err).Message, nil)
				continue
			}
			c.window = *window
		}
		touched, err = s.process(ctx, tx, batchKindCreate, mode, candidates, resourceIDsOf(items), result)
		return err
	})
	return s.finish(ctx, batchKindCreate, mode, result, touched, err)
}

// BatchUpdate patches windows in input order with the same pipeline as BatchCreate.
func (s *AvailabilityBatchService) BatchUpdate(ctx context.Context, items []dto.BatchUpdateAvailabilityItem, mode dto.BatchMode) (*dto.WindowBatchResult, error) {
	mode, err := s.checkBatch(len(items), mode)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ID != "" {
			ids = append(ids, item.ID)
		}
	}

	var result *dto.WindowBatchResult
	var touched []string
	err = s.tx.run(ctx, "availability.batch_update", func(tx *sqlx.Tx) error {
		result = newBatchResult(mode)
		existing, err := s.windows.FindActiveByIDs(ctx, tx, uniqueStrings(ids))
		if err != nil {
			return err
		}

		candidates := make([]*batchCandidate, len(items))
		seen := make(map[string]int, len(items))
		var resourceIDs []string
		for i, item := range items {
			c := &batchCandidate{index: i, id: item.ID}
			candidates[i] = c
			if err := s.validator.Struct(item); err != nil {
				s.reject(result, c, appErrors.ErrValidation.Code, "invalid availability payload: "+err.Error(), nil)
				continue
			}
			if first, dup := seen[item.ID]; dup {
				s.reject(result, c, appErrors.ErrValidation.Code, "availability window appears more than once in the batch", &dto.BatchConflictRef{Index: intPtr(first)})
				continue
			}
			seen[item.ID] = i

			current, ok := existing[item.ID]
			if !ok {
				s.reject(result, c, appErrors.ErrNotFound.Code, "availability window not found", nil)
				continue
			}
			next, renormalize, err := applyWindowPatch(current, item.UpdateAvailabilityRequest)
			if err != nil {
				s.reject(result, c, appErrors.ErrValidation.Code, appErrors.FromError(err).Message, nil)
				continue
			}
			c.window = next
			c.previous = current.ResourceID
			c.renormalize = renormalize
			resourceIDs = append(resourceIDs, next.ResourceID)
		}
		touched, err = s.process(ctx, tx, batchKindUpdate, mode, candidates, resourceIDs, result)
		return err
	})
	return s.finish(ctx, batchKindUpdate, mode, result, touched, err)
}

func (s *AvailabilityBatchService) checkBatch(size int, mode dto.BatchMode) (dto.BatchMode, error) {
	parsed, ok := dto.ParseBatchMode(string(mode))
	if !ok {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown batch mode %q", mode))
	}
	if size == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "batch must contain at least one item")
	}
	if size > s.maxItems {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch exceeds the maximum of %d items", s.maxItems))
	}
	return parsed, nil
}

// process runs resource resolution, normalisation, stored-overlap and
// in-batch overlap checks, then writes the surviving candidates.
func (s *AvailabilityBatchService) process(
	ctx context.Context,
	tx *sqlx.Tx,
	kind batchKind,
	mode dto.BatchMode,
	candidates []*batchCandidate,
	resourceIDs []string,
	result *dto.WindowBatchResult,
) ([]string, error) {
	resourceIDs = uniqueStrings(resourceIDs)
	active, err := s.resources.LockActiveIDs(ctx, tx, resourceIDs)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, id := range resourceIDs {
		if !active[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 && mode == dto.BatchModeStrict {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "batch references resources that do not exist or are inactive").
			WithDetails(map[string][]string{"missing_resource_ids": missing})
	}

	stored, err := s.windows.ListActiveByResources(ctx, tx, activeIDs(resourceIDs, active))
	if err != nil {
		return nil, err
	}

	var accepted []*batchCandidate
	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.failed {
			continue
		}
		if !active[c.window.ResourceID] {
			s.reject(result, c, appErrors.ErrNotFound.Code, "resource not found", nil)
			continue
		}
		if c.renormalize {
			start, ok := scheduling.NormalizeStart(c.window.StartDate, c.window.EndDate, c.window.DayOfWeek, c.window.StartTime, s.clock.Now(), s.loc)
			if !ok {
				s.reject(result, c, appErrors.ErrConflict.Code, "no valid occurrence in range for the selected day and time", nil)
				continue
			}
			c.window.StartDate = start
		}
		if hit := firstWindowOverlap(c.window, stored); hit != nil {
			s.reject(result, c, appErrors.ErrConflict.Code, "availability window overlaps an existing window", &dto.BatchConflictRef{ID: hit.ID})
			continue
		}
		if earlier := firstCandidateOverlap(c, accepted); earlier != nil {
			s.reject(result, c, appErrors.ErrConflict.Code, "availability window overlaps an earlier item of the batch", &dto.BatchConflictRef{Index: intPtr(earlier.index)})
			continue
		}
		accepted = append(accepted, c)
	}

	if len(result.Errors) > 0 && mode == dto.BatchModeStrict {
		return nil, errBatchRejected
	}

	touched := make([]string, 0, len(accepted)*2)
	for _, c := range accepted {
		window := c.window
		if kind == batchKindCreate {
			err = s.windows.Create(ctx, tx, &window)
		} else {
			err = s.windows.Update(ctx, tx, &window)
		}
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, window)
		touched = append(touched, window.ResourceID, c.previous)
	}
	setBatchCount(result, kind, len(result.Items))
	return touched, nil
}

func (s *AvailabilityBatchService) finish(ctx context.Context, kind batchKind, mode dto.BatchMode, result *dto.WindowBatchResult, touched []string, err error) (*dto.WindowBatchResult, error) {
	if err != nil && !errors.Is(err, errBatchRejected) {
		return nil, storeError(err, fmt.Sprintf("failed to %s availability windows", kind))
	}

	switch {
	case err != nil:
		result.Outcome = dto.BatchOutcomeRolledBack
		result.Items = []models.AvailabilityWindow{}
		setBatchCount(result, kind, 0)
	case len(result.Errors) > 0:
		result.Outcome = dto.BatchOutcomePartial
	default:
		result.Outcome = dto.BatchOutcomeCommitted
	}
	sort.SliceStable(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })
	result.FailedCount = len(result.Errors)

	if result.Outcome != dto.BatchOutcomeRolledBack {
		s.invalidate(ctx, touched)
	}

	s.metrics.RecordBatchOutcome(string(kind), string(mode), string(result.Outcome))
	s.logger.Info("availability batch processed",
		zap.String("kind", string(kind)),
		zap.String("mode", string(mode)),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("written", result.Written()),
		zap.Int("failed", result.FailedCount),
	)
	return result, nil
}

func (s *AvailabilityBatchService) reject(result *dto.WindowBatchResult, c *batchCandidate, code, message string, ref *dto.BatchConflictRef) {
	c.failed = true
	entry := dto.BatchItemError{
		Index:        c.index,
		Code:         code,
		Message:      message,
		ID:           c.id,
		Input:        c.input,
		ConflictWith: ref,
	}
	result.Errors = append(result.Errors, entry)
}

func (s *AvailabilityBatchService) invalidate(ctx context.Context, resourceIDs []string) {
	s.cache.InvalidateWindows(ctx, resourceIDs...)
}

func firstCandidateOverlap(c *batchCandidate, accepted []*batchCandidate) *batchCandidate {
	slot := c.window.Slot()
	for _, earlier := range accepted {
		if scheduling.WindowsOverlap(slot, earlier.window.Slot()) {
			return earlier
		}
	}
	return nil
}

func newBatchResult(mode dto.BatchMode) *dto.WindowBatchResult {
	return &dto.WindowBatchResult{
		Mode:   mode,
		Items:  []models.AvailabilityWindow{},
		Errors: []dto.BatchItemError{},
	}
}

func setBatchCount(result *dto.WindowBatchResult, kind batchKind, n int) {
	if kind == batchKindCreate {
		result.CreatedCount = intPtr(n)
		return
	}
	result.UpdatedCount = intPtr(n)
}

func resourceIDsOf(items []dto.CreateAvailabilityRequest) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.ResourceID != "" {
			ids = append(ids, item.ResourceID)
		}
	}
	return ids
}

func activeIDs(ids []string, active map[string]bool) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if active[id] {
			out = append(out, id)
		}
	}
	return out
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
