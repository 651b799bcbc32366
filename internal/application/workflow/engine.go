package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/garyjia/contract-approvals/internal/application/dispatcher"
	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
	domainwf "github.com/garyjia/contract-approvals/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Transition is a requested contract status change
type Transition struct {
	ContractID int64
	Trigger    domainwf.Trigger
	ActorID    *int64
	Comment    string
}

// Engine drives contract status through the lifecycle state machine
type Engine interface {
	// Apply validates and performs a transition inside the caller's transaction
	// (or a new one), recording history. The returned event must be published by
	// the caller once its transaction commits.
	Apply(ctx context.Context, t Transition) (*entity.Contract, *event.Event, error)

	// CurrentState returns the contract's lifecycle state
	CurrentState(ctx context.Context, contractID int64) (domainwf.State, error)

	// PermittedTriggers lists the triggers available from the contract's current state
	PermittedTriggers(ctx context.Context, contractID int64) ([]domainwf.Trigger, error)

	// HandleEvent is the audit subscriber for committed domain events
	HandleEvent(ctx context.Context, evt *event.Event) error
}

// ApprovalReader lists the approvals of the contract's current round
type ApprovalReader interface {
	ListActiveByContract(ctx context.Context, contractID int64) ([]*entity.Approval, error)
}

type engineImpl struct {
	contracts port.ContractRepository
	history   port.ContractHistoryRepository
	approvals ApprovalReader
	txManager port.TransactionManager
	logger    Logger
	now       func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithClock overrides the time source
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// WithApprovals lets the engine refuse final approval while approvals are PENDING
func WithApprovals(r ApprovalReader) EngineOption {
	return func(e *engineImpl) {
		e.approvals = r
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	contracts port.ContractRepository,
	history port.ContractHistoryRepository,
	txManager port.TransactionManager,
	logger Logger,
	opts ...EngineOption,
) Engine {
	e := &engineImpl{
		contracts: contracts,
		history:   history,
		txManager: txManager,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var triggerEvents = map[domainwf.Trigger]event.Type{
	domainwf.TriggerSubmit:   event.TypeContractSubmitted,
	domainwf.TriggerApprove:  event.TypeContractApproved,
	domainwf.TriggerReject:   event.TypeContractRejected,
	domainwf.TriggerSign:     event.TypeContractSigned,
	domainwf.TriggerArchive:  event.TypeContractArchived,
	domainwf.TriggerResubmit: event.TypeContractResubmit,
}

func (e *engineImpl) Apply(ctx context.Context, t Transition) (*entity.Contract, *event.Event, error) {
	var (
		contract *entity.Contract
		previous domainwf.State
		next     domainwf.State
	)

	err := e.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		contract, err = e.contracts.GetByID(ctx, t.ContractID)
		if err != nil {
			return err
		}

		previous = domainwf.State(contract.Status)
		if !previous.IsValid() {
			return fmt.Errorf("contract %d has unknown status %q", contract.ID, contract.Status)
		}
		guardCtx, err := e.guardContext(ctx, contract.ID, t.Trigger)
		if err != nil {
			return err
		}
		machine := domainwf.NewContractMachine(previous)
		if err := machine.Fire(guardCtx, t.Trigger); err != nil {
			if errors.Is(err, domainwf.ErrGuardFailed) {
				return fmt.Errorf("contract %d: cannot %s while approvals are pending: %w",
					t.ContractID, t.Trigger, entity.ErrInvalidTransition)
			}
			if errors.Is(err, domainwf.ErrInvalidTransition) {
				return fmt.Errorf("contract %d: cannot %s from %s: %w",
					t.ContractID, t.Trigger, previous, entity.ErrInvalidTransition)
			}
			return err
		}
		next = machine.State()

		if err := e.contracts.UpdateStatus(ctx, contract.ID, next.String()); err != nil {
			return fmt.Errorf("update contract status: %w", err)
		}
		contract.Status = next.String()

		return e.history.Create(ctx, &entity.ContractHistory{
			ContractID:     contract.ID,
			PreviousStatus: previous.String(),
			NewStatus:      next.String(),
			ActorID:        t.ActorID,
			Action:         t.Trigger.String(),
			Comment:        t.Comment,
			Timestamp:      e.now().UTC(),
		})
	})
	if err != nil {
		return nil, nil, err
	}

	e.logger.Info("Contract transitioned",
		"contract_id", contract.ID,
		"from", previous,
		"to", next,
		"trigger", t.Trigger)

	evt := event.NewEvent(triggerEvents[t.Trigger], contract.ID, map[string]interface{}{
		"previous_status": previous.String(),
		"new_status":      next.String(),
		"comment":         t.Comment,
	})
	if t.ActorID != nil {
		evt = evt.WithActor(*t.ActorID)
	}
	return contract, evt, nil
}

// guardContext carries the facts the lifecycle guards read
func (e *engineImpl) guardContext(ctx context.Context, contractID int64, trigger domainwf.Trigger) (context.Context, error) {
	if trigger != domainwf.TriggerApprove || e.approvals == nil {
		return ctx, nil
	}
	active, err := e.approvals.ListActiveByContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("list approvals of contract %d: %w", contractID, err)
	}
	pending := 0
	for _, a := range active {
		if a.Status == entity.ApprovalStatusPending {
			pending++
		}
	}
	return domainwf.WithPendingApprovals(ctx, pending), nil
}

func (e *engineImpl) CurrentState(ctx context.Context, contractID int64) (domainwf.State, error) {
	contract, err := e.contracts.GetByID(ctx, contractID)
	if err != nil {
		return "", err
	}
	state := domainwf.State(contract.Status)
	if !state.IsValid() {
		return "", fmt.Errorf("contract %d has unknown status %q", contractID, contract.Status)
	}
	return state, nil
}

func (e *engineImpl) PermittedTriggers(ctx context.Context, contractID int64) ([]domainwf.Trigger, error) {
	state, err := e.CurrentState(ctx, contractID)
	if err != nil {
		return nil, err
	}
	return domainwf.NewContractMachine(state).PermittedTriggers(), nil
}

func (e *engineImpl) HandleEvent(ctx context.Context, evt *event.Event) error {
	if evt == nil {
		return fmt.Errorf("event cannot be nil")
	}
	kv := []interface{}{
		"event_type", evt.Type,
		"event_id", evt.ID,
		"correlation_id", evt.CorrelationID,
		"contract_id", evt.ContractID,
	}
	if evt.ActorID != nil {
		kv = append(kv, "actor_id", *evt.ActorID)
	}
	for k, v := range evt.Payload {
		kv = append(kv, k, v)
	}
	e.logger.Info("Domain event", kv...)
	return nil
}

// Subscribe registers the engine's audit handler for every event type
func Subscribe(d dispatcher.Dispatcher, e Engine) {
	d.SubscribeNamed(dispatcher.Wildcard, "workflow-audit", e.HandleEvent)
}
