package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

// WorkflowDefinitionService authors workflow definitions and routing rules
type WorkflowDefinitionService interface {
	List(ctx context.Context) ([]*entity.WorkflowDefinition, error)
	Get(ctx context.Context, id int64) (*entity.WorkflowDefinition, error)
	Create(ctx context.Context, wf *entity.WorkflowDefinition) error
	Update(ctx context.Context, wf *entity.WorkflowDefinition) error
	Delete(ctx context.Context, id int64) error

	ListRules(ctx context.Context, activeOnly bool) ([]*entity.WorkflowRule, error)
	CreateRule(ctx context.Context, rule *entity.WorkflowRule) error
	DeleteRule(ctx context.Context, id int64) error

	// Seed imports roles, workflows and rules from YAML. Workflows that already
	// exist by name are left untouched, together with their rules.
	Seed(ctx context.Context, r io.Reader) (*SeedResult, error)
}

// SeedResult summarises a Seed run
type SeedResult struct {
	RolesCreated     int `json:"roles_created"`
	WorkflowsCreated int `json:"workflows_created"`
	WorkflowsSkipped int `json:"workflows_skipped"`
	RulesCreated     int `json:"rules_created"`
}

type workflowDefinitionServiceImpl struct {
	workflows port.WorkflowRepository
	rules     port.WorkflowRuleRepository
	roles     port.RoleRepository
	users     port.UserRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewWorkflowDefinitionService creates a new WorkflowDefinitionService
func NewWorkflowDefinitionService(
	workflows port.WorkflowRepository,
	rules port.WorkflowRuleRepository,
	roles port.RoleRepository,
	users port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) WorkflowDefinitionService {
	return &workflowDefinitionServiceImpl{
		workflows: workflows,
		rules:     rules,
		roles:     roles,
		users:     users,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *workflowDefinitionServiceImpl) List(ctx context.Context) ([]*entity.WorkflowDefinition, error) {
	return s.workflows.List(ctx)
}

func (s *workflowDefinitionServiceImpl) Get(ctx context.Context, id int64) (*entity.WorkflowDefinition, error) {
	return s.workflows.GetByID(ctx, id)
}

func (s *workflowDefinitionServiceImpl) Create(ctx context.Context, wf *entity.WorkflowDefinition) error {
	if err := s.validate(ctx, wf); err != nil {
		return err
	}
	if err := s.workflows.Create(ctx, wf); err != nil {
		s.logger.Error("Failed to create workflow", "error", err, "name", wf.Name)
		return err
	}
	s.logger.Info("Workflow created", "id", wf.ID, "name", wf.Name, "steps", len(wf.Steps))
	return nil
}

func (s *workflowDefinitionServiceImpl) Update(ctx context.Context, wf *entity.WorkflowDefinition) error {
	if err := s.validate(ctx, wf); err != nil {
		return err
	}
	if err := s.workflows.Update(ctx, wf); err != nil {
		s.logger.Error("Failed to update workflow", "error", err, "id", wf.ID)
		return err
	}
	s.logger.Info("Workflow updated", "id", wf.ID, "steps", len(wf.Steps))
	return nil
}

func (s *workflowDefinitionServiceImpl) Delete(ctx context.Context, id int64) error {
	return s.workflows.Delete(ctx, id)
}

func (s *workflowDefinitionServiceImpl) ListRules(ctx context.Context, activeOnly bool) ([]*entity.WorkflowRule, error) {
	return s.rules.List(ctx, activeOnly)
}

func (s *workflowDefinitionServiceImpl) CreateRule(ctx context.Context, rule *entity.WorkflowRule) error {
	rule.Name = strings.TrimSpace(rule.Name)
	rule.ContractType = strings.ToUpper(strings.TrimSpace(rule.ContractType))
	if rule.Name == "" {
		return fmt.Errorf("%w: rule name is required", entity.ErrValidation)
	}
	if rule.MinAmount != nil && rule.MaxAmount != nil && *rule.MinAmount > *rule.MaxAmount {
		return fmt.Errorf("%w: min amount exceeds max amount", entity.ErrValidation)
	}
	if _, err := s.workflows.GetByID(ctx, rule.WorkflowID); err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return fmt.Errorf("%w: workflow %d does not exist", entity.ErrValidation, rule.WorkflowID)
		}
		return err
	}
	return s.rules.Create(ctx, rule)
}

func (s *workflowDefinitionServiceImpl) DeleteRule(ctx context.Context, id int64) error {
	return s.rules.Delete(ctx, id)
}

// validate normalises the definition and checks structure plus referenced roles and users
func (s *workflowDefinitionServiceImpl) validate(ctx context.Context, wf *entity.WorkflowDefinition) error {
	wf.Name = strings.TrimSpace(wf.Name)
	if wf.Status == "" {
		wf.Status = entity.WorkflowStatusDraft
	}
	for i := range wf.Steps {
		step := &wf.Steps[i]
		step.Type = strings.ToUpper(step.Type)
		step.ParallelMode = strings.ToUpper(step.ParallelMode)
		if step.DueDays == nil && step.NeedsApprovers() {
			step.DueDays = entity.IntPtr(entity.DefaultStepDueDays)
		}
	}
	if err := wf.Validate(); err != nil {
		return err
	}

	for _, step := range wf.Steps {
		roleIDs := append([]int64(nil), step.ParallelRoleIDs...)
		if step.RoleID != nil {
			roleIDs = append(roleIDs, *step.RoleID)
		}
		for _, id := range roleIDs {
			if _, err := s.roles.GetByID(ctx, id); err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					return fmt.Errorf("%w: step %d references unknown role %d", entity.ErrValidation, step.Order, id)
				}
				return err
			}
		}
		if step.ApproverID != nil {
			if _, err := s.users.GetByID(ctx, *step.ApproverID); err != nil {
				if errors.Is(err, entity.ErrNotFound) {
					return fmt.Errorf("%w: step %d references unknown user %d", entity.ErrValidation, step.Order, *step.ApproverID)
				}
				return err
			}
		}
	}
	return nil
}

type seedFile struct {
	Roles     []string       `yaml:"roles"`
	Workflows []seedWorkflow `yaml:"workflows"`
}

type seedWorkflow struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Status      string     `yaml:"status"`
	Steps       []seedStep `yaml:"steps"`
	Rules       []seedRule `yaml:"rules"`
}

type seedStep struct {
	Order         int      `yaml:"order"`
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"`
	Role          string   `yaml:"role"`
	Required      *bool    `yaml:"required"`
	DueDays       *int     `yaml:"due_days"`
	ParallelRoles []string `yaml:"parallel_roles"`
	ParallelMode  string   `yaml:"parallel_mode"`
	Condition     *struct {
		MinAmount     *float64 `yaml:"min_amount"`
		MaxAmount     *float64 `yaml:"max_amount"`
		ContractTypes []string `yaml:"contract_types"`
	} `yaml:"condition"`
}

type seedRule struct {
	Name         string   `yaml:"name"`
	ContractType string   `yaml:"contract_type"`
	MinAmount    *float64 `yaml:"min_amount"`
	MaxAmount    *float64 `yaml:"max_amount"`
	Priority     int      `yaml:"priority"`
}

func (s *workflowDefinitionServiceImpl) Seed(ctx context.Context, r io.Reader) (*SeedResult, error) {
	var file seedFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return &SeedResult{}, nil
		}
		return nil, fmt.Errorf("%w: parse workflow seed: %v", entity.ErrValidation, err)
	}

	result := &SeedResult{}
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		roleIDs, created, err := s.ensureRoles(txCtx, file)
		if err != nil {
			return err
		}
		result.RolesCreated = created

		for _, sw := range file.Workflows {
			if _, err := s.workflows.GetByName(txCtx, sw.Name); err == nil {
				result.WorkflowsSkipped++
				continue
			} else if !errors.Is(err, entity.ErrNotFound) {
				return err
			}

			wf := sw.toDefinition(roleIDs)
			if err := s.Create(txCtx, wf); err != nil {
				return fmt.Errorf("seed workflow %q: %w", sw.Name, err)
			}
			result.WorkflowsCreated++

			for _, sr := range sw.Rules {
				rule := &entity.WorkflowRule{
					Name:         sr.Name,
					WorkflowID:   wf.ID,
					ContractType: sr.ContractType,
					MinAmount:    sr.MinAmount,
					MaxAmount:    sr.MaxAmount,
					Priority:     sr.Priority,
					Active:       true,
				}
				if err := s.CreateRule(txCtx, rule); err != nil {
					return fmt.Errorf("seed rule %q: %w", sr.Name, err)
				}
				result.RulesCreated++
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Workflow seed failed", "error", err)
		return nil, err
	}

	s.logger.Info("Workflow seed applied",
		"roles_created", result.RolesCreated,
		"workflows_created", result.WorkflowsCreated,
		"workflows_skipped", result.WorkflowsSkipped,
		"rules_created", result.RulesCreated,
	)
	return result, nil
}

// ensureRoles creates every role named in the file and returns name to id
func (s *workflowDefinitionServiceImpl) ensureRoles(ctx context.Context, file seedFile) (map[string]int64, int, error) {
	existing, err := s.roles.List(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list roles: %w", err)
	}
	ids := make(map[string]int64, len(existing))
	for _, r := range existing {
		ids[r.Name] = r.ID
	}

	wanted := append([]string(nil), file.Roles...)
	for _, wf := range file.Workflows {
		for _, st := range wf.Steps {
			if st.Role != "" {
				wanted = append(wanted, st.Role)
			}
			wanted = append(wanted, st.ParallelRoles...)
		}
	}

	created := 0
	for _, name := range wanted {
		if _, ok := ids[name]; ok {
			continue
		}
		role := &entity.Role{Name: name}
		if err := s.roles.Create(ctx, role); err != nil {
			return nil, 0, fmt.Errorf("create role %q: %w", name, err)
		}
		ids[name] = role.ID
		created++
	}
	return ids, created, nil
}

func (sw seedWorkflow) toDefinition(roleIDs map[string]int64) *entity.WorkflowDefinition {
	wf := &entity.WorkflowDefinition{
		Name:        sw.Name,
		Description: sw.Description,
		Status:      strings.ToUpper(sw.Status),
	}
	if wf.Status == "" {
		wf.Status = entity.WorkflowStatusActive
	}

	for _, st := range sw.Steps {
		step := entity.WorkflowStep{
			Order:        st.Order,
			Name:         st.Name,
			Type:         strings.ToUpper(st.Type),
			Required:     st.Required == nil || *st.Required,
			DueDays:      st.DueDays,
			IsParallel:   len(st.ParallelRoles) > 0,
			ParallelMode: strings.ToUpper(st.ParallelMode),
		}
		if step.Type == "" {
			step.Type = entity.StepTypeApproval
		}
		if st.Role != "" {
			id := roleIDs[st.Role]
			step.RoleID = &id
		}
		for _, name := range st.ParallelRoles {
			step.ParallelRoleIDs = append(step.ParallelRoleIDs, roleIDs[name])
		}
		if st.Condition != nil {
			step.Condition = &entity.StepCondition{
				MinAmount:     st.Condition.MinAmount,
				MaxAmount:     st.Condition.MaxAmount,
				ContractTypes: st.Condition.ContractTypes,
			}
		}
		wf.Steps = append(wf.Steps, step)
	}
	return wf
}
