package report

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

func TestRegistryWriter_Write(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	due := created.AddDate(0, 0, 3)
	original := int64(7)

	contracts := []*entity.Contract{
		{ID: 1, Number: "CTR-2026-000001", Title: "Поставка", Counterparty: "ООО Ромашка", Type: "SUPPLY",
			Amount: 1234.5, Currency: "CNY", Status: entity.ContractStatusInReview, CreatedAt: created},
		{ID: 2, Number: "CTR-2026-000002", Title: "Lease", Counterparty: "ACME", Type: "LEASE",
			Amount: 900, Currency: "RUB", Status: entity.ContractStatusDraft, CreatedAt: created},
	}
	approvals := []*entity.Approval{
		{ID: 10, ContractID: 1, StepNumber: 1, ApproverID: 8, OriginalApproverID: &original,
			Status: entity.ApprovalStatusPending, DueDate: &due, Escalated: true},
	}

	path := filepath.Join(t.TempDir(), "registry.xlsx")
	require.NoError(t, NewRegistryWriter(zap.NewNop()).Write(context.Background(), path, contracts, approvals))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{contractsSheet, approvalsSheet}, f.GetSheetList())

	rows, err := f.GetRows(contractsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Number", rows[0][0])
	assert.Equal(t, "CTR-2026-000001", rows[1][0])
	assert.Equal(t, "壹仟贰佰叁拾肆元伍角", rows[1][6])
	assert.Equal(t, "2026-03-02", rows[1][9])
	assert.Equal(t, "", rows[2][6])

	rows, err = f.GetRows(approvalsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"CTR-2026-000001", "1", "8", "7", entity.ApprovalStatusPending, "2026-03-05", "", "yes"}, rows[1])
}

func TestRegistryWriter_EmptyRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	require.NoError(t, NewRegistryWriter(zap.NewNop()).Write(context.Background(), path, nil, nil))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(approvalsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "零元整"},
		{1, "壹元整"},
		{10, "壹拾元整"},
		{1010, "壹仟零壹拾元整"},
		{10001, "壹万零壹元整"},
		{105000, "壹拾万伍仟元整"},
		{100500, "壹拾万零伍佰元整"},
		{1000000, "壹佰万元整"},
		{100010000, "壹亿零壹万元整"},
		{1.05, "壹元零伍分"},
		{0.5, "伍角"},
		{3.14, "叁元壹角肆分"},
		{-20, "负贰拾元整"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, AmountInWords(tt.amount))
		})
	}
}
