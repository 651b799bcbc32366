package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

func TestContractService_CreateAssignsSequentialNumbers(t *testing.T) {
	f := newFixture(t)
	initiator := f.user("Initiator", 0)

	first := f.contract(initiator, 100, "supply")
	second := f.contract(initiator, 200, "supply")
	assert.Equal(t, "CTR-2026-000001", first.Number)
	assert.Equal(t, "CTR-2026-000002", second.Number)
	assert.Equal(t, "SUPPLY", first.Type)
	assert.Equal(t, entity.ContractStatusDraft, first.Status)

	f.now = time.Date(2027, 1, 5, 9, 0, 0, 0, time.UTC)
	next := f.contract(initiator, 300, "supply")
	assert.Equal(t, "CTR-2027-000001", next.Number)
}

func TestContractService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	initiator := f.user("Initiator", 0)
	partner := &entity.Reference{Kind: entity.ReferenceKindCounterparty, Name: "ООО Ромашка", Active: true}
	require.NoError(t, f.references.Create(f.ctx, partner))
	reason := &entity.Reference{Kind: entity.ReferenceKindApprovalReason, Name: "Budget", Active: true}
	require.NoError(t, f.references.Create(f.ctx, reason))
	missing := int64(999)

	tests := []struct {
		name     string
		contract entity.Contract
		wantErr  error
	}{
		{"missing title", entity.Contract{InitiatorID: initiator, Amount: 1}, entity.ErrValidation},
		{"missing initiator", entity.Contract{Title: "x", Amount: 1}, entity.ErrValidation},
		{"negative amount", entity.Contract{Title: "x", InitiatorID: initiator, Amount: -5}, entity.ErrValidation},
		{"bad currency", entity.Contract{Title: "x", InitiatorID: initiator, Currency: "rubles"}, entity.ErrValidation},
		{"bad number", entity.Contract{Title: "x", InitiatorID: initiator, Number: "42"}, entity.ErrValidation},
		{"unknown counterparty", entity.Contract{Title: "x", InitiatorID: initiator, CounterpartyID: &missing}, entity.ErrValidation},
		{"wrong reference kind", entity.Contract{Title: "x", InitiatorID: initiator, CounterpartyID: &reason.ID}, entity.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.contract
			assert.ErrorIs(t, f.contractsS.Create(f.ctx, &c, nil), tt.wantErr)
		})
	}

	c := &entity.Contract{Title: "  Аренда  ", InitiatorID: initiator, Amount: 10, CounterpartyID: &partner.ID}
	require.NoError(t, f.contractsS.Create(f.ctx, c, nil))
	assert.Equal(t, "Аренда", c.Title)
	assert.Equal(t, "ООО Ромашка", c.Counterparty)
	assert.Equal(t, "CNY", c.Currency)
}

func TestContractService_EditOnlyInDraft(t *testing.T) {
	f := newFixture(t)
	manager := f.role("MANAGER")
	initiator := f.user("Initiator", 0)
	f.user("Manager", manager)
	wfID := f.workflow("single", roleStep(1, "Manager", manager))

	c := f.contract(initiator, 1000, "SERVICES")
	c.Title = "Updated title"
	c.Amount = 1500
	require.NoError(t, f.contractsS.Update(f.ctx, c, &initiator))

	stored, err := f.contractsS.Get(f.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated title", stored.Title)
	assert.Equal(t, 1500.0, stored.Amount)
	assert.Equal(t, c.Number, stored.Number)

	_, err = f.router.StartApprovalProcess(f.ctx, c.ID, wfID, nil)
	require.NoError(t, err)

	c.Title = "Too late"
	assert.ErrorIs(t, f.contractsS.Update(f.ctx, c, &initiator), entity.ErrConflict)
	assert.ErrorIs(t, f.contractsS.Delete(f.ctx, c.ID), entity.ErrConflict)

	draft := f.contract(initiator, 5, "SERVICES")
	require.NoError(t, f.contractsS.Delete(f.ctx, draft.ID))
	_, err = f.contractsS.Get(f.ctx, draft.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestContractService_SignAndArchive(t *testing.T) {
	f := newFixture(t)
	manager := f.role("MANAGER")
	initiator := f.user("Initiator", 0)
	f.user("Manager", manager)
	wfID := f.workflow("single", roleStep(1, "Manager", manager))

	c := f.contract(initiator, 1000, "SERVICES")
	_, err := f.contractsS.Sign(f.ctx, c.ID, &initiator, "")
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)

	_, err = f.router.StartApprovalProcess(f.ctx, c.ID, wfID, nil)
	require.NoError(t, err)
	f.approve(f.pendingAt(c.ID, 1)[0].ID)

	signed, err := f.contractsS.Sign(f.ctx, c.ID, &initiator, "signed by both parties")
	require.NoError(t, err)
	assert.Equal(t, entity.ContractStatusSigned, signed.Status)

	archived, err := f.contractsS.Archive(f.ctx, c.ID, &initiator, "")
	require.NoError(t, err)
	assert.Equal(t, entity.ContractStatusArchived, archived.Status)

	_, err = f.contractsS.Resubmit(f.ctx, c.ID, &initiator, "")
	assert.ErrorIs(t, err, entity.ErrInvalidTransition)
}

func TestContractService_ListAndHistory(t *testing.T) {
	f := newFixture(t)
	initiator := f.user("Initiator", 0)
	f.contract(initiator, 1, "SERVICES")
	f.contract(initiator, 2, "SERVICES")

	list, err := f.contractsS.List(f.ctx, entity.ContractFilter{Status: entity.ContractStatusDraft})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.contractsS.List(f.ctx, entity.ContractFilter{Status: "LOST"})
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.contractsS.History(f.ctx, 999)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}
