package stats

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportTokenRank 把代币消费排名导出为 xlsx
// 管理端报表下载用，返回序列化后的文件内容
func (a *Aggregator) ExportTokenRank() ([]byte, error) {
	entries, err := a.RankByTokens()
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{"rank", "member_id", "member_name", "token_quantity"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, entry := range entries {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		values := []interface{}{entry.Rank, entry.MemberID, entry.MemberName, entry.Quantity}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buffer.Bytes(), nil
}
