package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/application/workflow"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
	"github.com/garyjia/contract-approvals/internal/domain/event"
	domainwf "github.com/garyjia/contract-approvals/internal/domain/workflow"
	"github.com/garyjia/contract-approvals/pkg/utils"
)

const (
	contractNumberPrefix = "CTR"
	defaultCurrency      = "CNY"
)

// ContractService manages contract records and their non-approval transitions
type ContractService interface {
	Create(ctx context.Context, contract *entity.Contract, actorID *int64) error
	Get(ctx context.Context, id int64) (*entity.Contract, error)
	List(ctx context.Context, filter entity.ContractFilter) ([]*entity.Contract, error)
	Update(ctx context.Context, contract *entity.Contract, actorID *int64) error
	Delete(ctx context.Context, id int64) error

	Sign(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error)
	Archive(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error)

	// Resubmit returns a REJECTED contract to DRAFT and retires its approvals
	Resubmit(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error)

	History(ctx context.Context, id int64) ([]*entity.ContractHistory, error)
}

type contractServiceImpl struct {
	contracts  port.ContractRepository
	history    port.ContractHistoryRepository
	approvals  port.ApprovalRepository
	references port.ReferenceRepository
	engine     workflow.Engine
	txManager  port.TransactionManager
	publisher  EventPublisher
	logger     Logger
	opts       options
}

// NewContractService creates a new ContractService
func NewContractService(
	contracts port.ContractRepository,
	history port.ContractHistoryRepository,
	approvals port.ApprovalRepository,
	references port.ReferenceRepository,
	engine workflow.Engine,
	txManager port.TransactionManager,
	publisher EventPublisher,
	logger Logger,
	opts ...Option,
) ContractService {
	return &contractServiceImpl{
		contracts:  contracts,
		history:    history,
		approvals:  approvals,
		references: references,
		engine:     engine,
		txManager:  txManager,
		publisher:  publisher,
		logger:     logger,
		opts:       buildOptions(opts),
	}
}

// Create stores a new DRAFT contract, generating its number when empty
func (s *contractServiceImpl) Create(ctx context.Context, contract *entity.Contract, actorID *int64) error {
	if err := s.prepare(ctx, contract); err != nil {
		return err
	}
	contract.Status = entity.ContractStatusDraft
	contract.WorkflowID = nil

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if contract.Number == "" {
			number, err := s.nextNumber(txCtx)
			if err != nil {
				return err
			}
			contract.Number = number
		}
		if err := s.contracts.Create(txCtx, contract); err != nil {
			return fmt.Errorf("create contract: %w", err)
		}
		return s.history.Create(txCtx, &entity.ContractHistory{
			ContractID: contract.ID,
			NewStatus:  entity.ContractStatusDraft,
			ActorID:    actorID,
			Action:     entity.ActionCreate,
			Comment:    "Contract created",
			Timestamp:  s.opts.now().UTC(),
		})
	})
	if err != nil {
		s.logger.Error("Failed to create contract", "error", err, "title", contract.Title)
		return err
	}

	s.logger.Info("Contract created", "id", contract.ID, "number", contract.Number, "amount", contract.Amount)
	return nil
}

func (s *contractServiceImpl) Get(ctx context.Context, id int64) (*entity.Contract, error) {
	return s.contracts.GetByID(ctx, id)
}

func (s *contractServiceImpl) List(ctx context.Context, filter entity.ContractFilter) ([]*entity.Contract, error) {
	if filter.Status != "" && !domainwf.State(filter.Status).IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", entity.ErrValidation, filter.Status)
	}
	return s.contracts.List(ctx, filter)
}

// Update changes contract fields while the contract is still a DRAFT
func (s *contractServiceImpl) Update(ctx context.Context, contract *entity.Contract, actorID *int64) error {
	if err := s.prepare(ctx, contract); err != nil {
		return err
	}

	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.contracts.GetByID(txCtx, contract.ID)
		if err != nil {
			return err
		}
		if !current.IsEditable() {
			return fmt.Errorf("%w: contract %d is %s and can no longer be edited",
				entity.ErrConflict, current.ID, current.Status)
		}
		if contract.Number == "" {
			contract.Number = current.Number
		}
		contract.Status = current.Status
		contract.InitiatorID = current.InitiatorID
		contract.CreatedAt = current.CreatedAt

		if err := s.contracts.Update(txCtx, contract); err != nil {
			return fmt.Errorf("update contract: %w", err)
		}
		return s.history.Create(txCtx, &entity.ContractHistory{
			ContractID:     contract.ID,
			PreviousStatus: current.Status,
			NewStatus:      current.Status,
			ActorID:        actorID,
			Action:         entity.ActionUpdate,
			Timestamp:      s.opts.now().UTC(),
		})
	})
}

// Delete removes a DRAFT contract
func (s *contractServiceImpl) Delete(ctx context.Context, id int64) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.contracts.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !current.IsEditable() {
			return fmt.Errorf("%w: only DRAFT contracts can be deleted, contract %d is %s",
				entity.ErrConflict, id, current.Status)
		}
		if err := s.contracts.Delete(txCtx, id); err != nil {
			return err
		}
		s.logger.Info("Contract deleted", "id", id, "number", current.Number)
		return nil
	})
}

func (s *contractServiceImpl) Sign(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error) {
	return s.transition(ctx, workflow.Transition{ContractID: id, Trigger: domainwf.TriggerSign, ActorID: actorID, Comment: comment})
}

func (s *contractServiceImpl) Archive(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error) {
	return s.transition(ctx, workflow.Transition{ContractID: id, Trigger: domainwf.TriggerArchive, ActorID: actorID, Comment: comment})
}

func (s *contractServiceImpl) Resubmit(ctx context.Context, id int64, actorID *int64, comment string) (*entity.Contract, error) {
	var (
		contract *entity.Contract
		evt      *event.Event
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		contract, evt, err = s.engine.Apply(txCtx, workflow.Transition{
			ContractID: id,
			Trigger:    domainwf.TriggerResubmit,
			ActorID:    actorID,
			Comment:    comment,
		})
		if err != nil {
			return err
		}
		retired, err := s.approvals.RetireAll(txCtx, id, s.opts.now())
		if err != nil {
			return fmt.Errorf("retire approvals: %w", err)
		}
		evt = evt.WithPayload("retired_approvals", retired)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, evt)
	return contract, nil
}

func (s *contractServiceImpl) History(ctx context.Context, id int64) ([]*entity.ContractHistory, error) {
	if _, err := s.contracts.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.ListByContract(ctx, id)
}

func (s *contractServiceImpl) transition(ctx context.Context, t workflow.Transition) (*entity.Contract, error) {
	contract, evt, err := s.engine.Apply(ctx, t)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, evt)
	return contract, nil
}

// prepare validates input and fills the counterparty name from the reference store
func (s *contractServiceImpl) prepare(ctx context.Context, c *entity.Contract) error {
	c.Title = utils.SanitizeString(c.Title)
	c.Type = strings.ToUpper(strings.TrimSpace(c.Type))
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if c.Currency == "" {
		c.Currency = defaultCurrency
	}

	if c.Title == "" {
		return fmt.Errorf("%w: title is required", entity.ErrValidation)
	}
	if c.InitiatorID == 0 {
		return fmt.Errorf("%w: initiator is required", entity.ErrValidation)
	}
	if err := utils.ValidateAmount(c.Amount); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if err := utils.ValidateCurrency(c.Currency); err != nil {
		return fmt.Errorf("%w: %v", entity.ErrValidation, err)
	}
	if c.Number != "" {
		if err := utils.ValidateContractNumber(c.Number); err != nil {
			return fmt.Errorf("%w: %v", entity.ErrValidation, err)
		}
	}

	if c.CounterpartyID != nil {
		ref, err := s.references.GetByID(ctx, *c.CounterpartyID)
		if err != nil {
			if errors.Is(err, entity.ErrNotFound) {
				return fmt.Errorf("%w: counterparty %d does not exist", entity.ErrValidation, *c.CounterpartyID)
			}
			return err
		}
		if ref.Kind != entity.ReferenceKindCounterparty {
			return fmt.Errorf("%w: reference %d is not a counterparty", entity.ErrValidation, ref.ID)
		}
		c.Counterparty = ref.Name
	}
	c.Counterparty = strings.TrimSpace(c.Counterparty)
	return nil
}

// nextNumber allocates the next CTR-YYYY-NNNNNN number. Must run inside a write transaction.
func (s *contractServiceImpl) nextNumber(ctx context.Context) (string, error) {
	prefix := fmt.Sprintf("%s-%d-", contractNumberPrefix, s.opts.now().UTC().Year())
	last, err := s.contracts.MaxNumberWithPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("find last contract number: %w", err)
	}

	seq := 0
	if last != "" {
		seq, err = strconv.Atoi(strings.TrimPrefix(last, prefix))
		if err != nil {
			return "", fmt.Errorf("parse contract number %q: %w", last, err)
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1), nil
}
