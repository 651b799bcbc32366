package report

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"github.com/garyjia/contract-approvals/internal/domain/entity"
)

const (
	contractsSheet = "Contracts"
	approvalsSheet = "Approvals"
	dateLayout     = "2006-01-02"
)

var (
	contractHeader = []interface{}{"Number", "Title", "Counterparty", "Type", "Amount", "Currency", "Amount in words", "Status", "Due date", "Created"}
	approvalHeader = []interface{}{"Contract", "Step", "Approver ID", "Delegated from", "Status", "Due date", "Decided", "Escalated", "Comment"}
)

// RegistryWriter renders the contract registry as an xlsx workbook
type RegistryWriter struct {
	logger *zap.Logger
}

// NewRegistryWriter creates a registry writer
func NewRegistryWriter(logger *zap.Logger) *RegistryWriter {
	return &RegistryWriter{logger: logger}
}

func (w *RegistryWriter) Write(ctx context.Context, path string, contracts []*entity.Contract, approvals []*entity.Approval) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", contractsSheet); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}
	if _, err := f.NewSheet(approvalsSheet); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	numbers := make(map[int64]string, len(contracts))
	rows := make([][]interface{}, 0, len(contracts))
	for _, c := range contracts {
		numbers[c.ID] = c.Number
		words := ""
		if c.Currency == "CNY" {
			words = AmountInWords(c.Amount)
		}
		rows = append(rows, []interface{}{
			c.Number, c.Title, c.Counterparty, c.Type, c.Amount, c.Currency, words, c.Status,
			formatDate(c.DueDate), c.CreatedAt.Format(dateLayout),
		})
	}
	if err := w.writeSheet(ctx, f, contractsSheet, contractHeader, rows, headerStyle); err != nil {
		return err
	}

	rows = rows[:0]
	for _, a := range approvals {
		number, ok := numbers[a.ContractID]
		if !ok {
			number = strconv.FormatInt(a.ContractID, 10)
		}
		delegatedFrom := ""
		if a.OriginalApproverID != nil {
			delegatedFrom = strconv.FormatInt(*a.OriginalApproverID, 10)
		}
		escalated := "no"
		if a.Escalated {
			escalated = "yes"
		}
		rows = append(rows, []interface{}{
			number, a.StepNumber, a.ApproverID, delegatedFrom, a.Status,
			formatDate(a.DueDate), formatDate(a.DecidedAt), escalated, a.Comment,
		})
	}
	if err := w.writeSheet(ctx, f, approvalsSheet, approvalHeader, rows, headerStyle); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save registry: %w", err)
	}

	w.logger.Info("Contract registry written",
		zap.String("path", path),
		zap.Int("contracts", len(contracts)),
		zap.Int("approvals", len(approvals)))
	return nil
}

func (w *RegistryWriter) writeSheet(ctx context.Context, f *excelize.File, sheet string, header []interface{}, rows [][]interface{}, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+2, err)
		}
	}

	if err := f.SetColWidth(sheet, "A", "J", 18); err != nil {
		w.logger.Warn("Failed to set column width", zap.String("sheet", sheet), zap.Error(err))
	}
	return nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

var (
	cnDigits   = []string{"零", "壹", "贰", "叁", "肆", "伍", "陆", "柒", "捌", "玖"}
	cnUnits    = []string{"", "拾", "佰", "仟"}
	cnBigUnits = []string{"", "万", "亿", "万亿"}
)

// AmountInWords spells a yuan amount in financial Chinese capitals (大写金额)
func AmountInWords(amount float64) string {
	cents := int64(math.Round(amount * 100))
	prefix := ""
	if cents < 0 {
		prefix = "负"
		cents = -cents
	}
	if cents == 0 {
		return "零元整"
	}

	yuan, jiao, fen := cents/100, (cents/10)%10, cents%10

	result := prefix
	if yuan > 0 {
		result += integerInWords(yuan) + "元"
	}
	if jiao == 0 && fen == 0 {
		return result + "整"
	}
	if jiao > 0 {
		result += cnDigits[jiao] + "角"
	} else if yuan > 0 {
		result += "零"
	}
	if fen > 0 {
		result += cnDigits[fen] + "分"
	}
	return result
}

func integerInWords(n int64) string {
	digits := strconv.FormatInt(n, 10)
	result := ""
	pendingZero := false
	groupHasDigit := false

	for i, ch := range digits {
		pos := len(digits) - 1 - i
		d := ch - '0'
		if d == 0 {
			pendingZero = result != ""
		} else {
			if pendingZero {
				result += cnDigits[0]
				pendingZero = false
			}
			result += cnDigits[d] + cnUnits[pos%4]
			groupHasDigit = true
		}
		if pos%4 == 0 && pos > 0 {
			if groupHasDigit && pos/4 < len(cnBigUnits) {
				result += cnBigUnits[pos/4]
				pendingZero = false
			}
			groupHasDigit = false
		}
	}
	return result
}

var _ port.RegistryWriter = (*RegistryWriter)(nil)
