package services

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"breathguard-api/pkg/models"

	"github.com/xuri/excelize/v2"
)

// ExportService 症状ログと集計統計をケアチーム共有用の
// Excelワークブックに書き出すサービス
type ExportService struct {
	aggregator *AggregationService
}

// NewExportService エクスポートサービスを初期化する
func NewExportService(aggregator *AggregationService) *ExportService {
	if aggregator == nil {
		aggregator = NewAggregationService()
	}
	return &ExportService{aggregator: aggregator}
}

// BuildWorkbook 症状ログ一覧と区分別統計の2シート構成の
// ワークブックを生成してバイト列で返す
func (es *ExportService) BuildWorkbook(logs []models.SymptomLogEntry, conditions models.UserConditions) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	logSheet := "Symptom Logs"
	f.SetSheetName(f.GetSheetName(0), logSheet)

	headers := []string{"Date", "Time", "Symptom", "Severity", "AQI", "Trigger", "Notes"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(logSheet, cell, h)
	}

	sorted := make([]models.SymptomLogEntry, len(logs))
	copy(sorted, logs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	for i, entry := range sorted {
		row := i + 2
		f.SetCellValue(logSheet, fmt.Sprintf("A%d", row), entry.Timestamp.Format("2006-01-02"))
		f.SetCellValue(logSheet, fmt.Sprintf("B%d", row), entry.Timestamp.Format("15:04"))
		f.SetCellValue(logSheet, fmt.Sprintf("C%d", row), entry.Symptom)
		f.SetCellValue(logSheet, fmt.Sprintf("D%d", row), string(entry.Severity))
		if entry.AQIAtLogTime > 0 {
			f.SetCellValue(logSheet, fmt.Sprintf("E%d", row), entry.AQIAtLogTime)
		}
		f.SetCellValue(logSheet, fmt.Sprintf("F%d", row), entry.Trigger)
		f.SetCellValue(logSheet, fmt.Sprintf("G%d", row), entry.Notes)
	}

	if err := es.writeStatisticsSheet(f, sorted, conditions); err != nil {
		return nil, fmt.Errorf("統計シートの作成に失敗: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("ワークブックの書き出しに失敗: %w", err)
	}

	log.Printf("📤 Export workbook generated: %d log entries, %d bytes", len(sorted), buf.Len())
	return buf.Bytes(), nil
}

// writeStatisticsSheet AQI区分別の集計統計シートを追加する
func (es *ExportService) writeStatisticsSheet(f *excelize.File, logs []models.SymptomLogEntry, conditions models.UserConditions) error {
	statsSheet := "Statistics"
	if _, err := f.NewSheet(statsSheet); err != nil {
		return err
	}

	f.SetCellValue(statsSheet, "A1", "Generated")
	f.SetCellValue(statsSheet, "B1", time.Now().Format(time.RFC3339))
	f.SetCellValue(statsSheet, "A2", "Conditions")
	f.SetCellValue(statsSheet, "B2", formatConditions(conditions))

	headers := []string{"AQI Bucket", "Entries", "Avg Severity", "Min Severity", "Max Severity", "Top Triggers"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 4)
		f.SetCellValue(statsSheet, cell, h)
	}

	stats := es.aggregator.Aggregate(logs)
	row := 5
	for _, level := range models.AQILevels {
		bucketStats, ok := stats[level.Key]
		if !ok {
			continue
		}
		f.SetCellValue(statsSheet, fmt.Sprintf("A%d", row), level.Key)
		f.SetCellValue(statsSheet, fmt.Sprintf("B%d", row), bucketStats.Count)
		f.SetCellValue(statsSheet, fmt.Sprintf("C%d", row), round1(bucketStats.AvgSeverity))
		f.SetCellValue(statsSheet, fmt.Sprintf("D%d", row), bucketStats.MinSeverity)
		f.SetCellValue(statsSheet, fmt.Sprintf("E%d", row), bucketStats.MaxSeverity)
		f.SetCellValue(statsSheet, fmt.Sprintf("F%d", row), strings.Join(bucketStats.CommonTriggers, ", "))
		row++
	}

	return nil
}

// formatConditions 疾患フラグを読みやすい文字列にする
func formatConditions(conditions models.UserConditions) string {
	var parts []string
	if conditions.HasAsthma {
		parts = append(parts, "Asthma")
	}
	if conditions.HasCOPD {
		parts = append(parts, "COPD")
	}
	if conditions.HasAllergies {
		parts = append(parts, "Allergies")
	}
	if len(parts) == 0 {
		return "None reported"
	}
	return strings.Join(parts, ", ")
}

// ExportFilename ダウンロード用のファイル名を生成する
func (es *ExportService) ExportFilename() string {
	return fmt.Sprintf("breathguard-symptom-report-%s.xlsx", time.Now().Format("20060102"))
}
