// File: internal/macro/bridge.go
// Package macro bridges to the external spreadsheet engine that reshapes the
// exported receiving data before invoice entry. The engine is driven through
// a generated PowerShell script that injects and runs a VBA routine over COM;
// the rest of the system only sees the narrow Bridge interface.
package macro

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkwon-dev/ezvoucher/internal/config"
)

// Result reports the outcome of one transformation run.
type Result struct {
	Success  bool
	Message  string
	FilePath string
}

// Bridge transforms a downloaded export in place, grouping rows and deriving
// the invoice fields the entry loop needs.
type Bridge interface {
	RunTransformation(ctx context.Context, filePath string) (Result, error)
}

// ExcelBridge runs the transformation through a local Excel installation.
type ExcelBridge struct {
	cfg    config.MacroConfig
	logger *zap.Logger
}

// NewExcelBridge builds the Excel-backed bridge.
func NewExcelBridge(cfg config.MacroConfig, logger *zap.Logger) *ExcelBridge {
	return &ExcelBridge{cfg: cfg, logger: logger.Named("macro")}
}

var _ Bridge = (*ExcelBridge)(nil)

// groupMacro is the VBA routine injected into the workbook. It sorts by the
// I and Z columns, assigns a group number per I|Z key, sums column AG per
// group, and derives three columns: maturity date (end of next month when
// the 10%-adjusted group sum stays under 10M, end of the following month
// otherwise), an invoice description of the form "<month> month <P>_<J>",
// and the tax-invoice date (end of the G-column month, yyyy-mm-dd). Group
// boundaries get a medium bottom border.
const groupMacro = `Sub GroupBy_I_Z_And_Process()
    Dim ws As Worksheet
    Dim lastRow As Long
    Dim i As Long, groupNum As Long
    Dim key As String
    Dim groupMap As Object, groupSums As Object, groupDesc As Object
    Dim maturityDate As Date, adjustedSum As Double
    Dim maturityCol As Long, descCol As Long, taxDateCol As Long
    Dim gDate As Variant
    Dim currentGroup As Long, nextGroup As Long
    Dim lastCol As Long
    Dim pText As String, jText As String

    Set ws = ActiveSheet
    Set groupMap = CreateObject("Scripting.Dictionary")
    Set groupSums = CreateObject("Scripting.Dictionary")
    Set groupDesc = CreateObject("Scripting.Dictionary")

    Application.ScreenUpdating = False
    Application.Calculation = xlCalculationManual

    lastRow = ws.Cells(ws.Rows.Count, "I").End(xlUp).Row

    ws.Sort.SortFields.Clear
    ws.Sort.SortFields.Add Key:=ws.Range("I2:I" & lastRow), Order:=xlAscending
    ws.Sort.SortFields.Add Key:=ws.Range("Z2:Z" & lastRow), Order:=xlAscending
    With ws.Sort
        .SetRange ws.Range("A1:AG" & lastRow)
        .Header = xlYes
        .Apply
    End With

    ws.Columns("A").Insert Shift:=xlToRight
    ws.Cells(1, 1).Value = "Group Number"

    groupNum = 1

    For i = 2 To lastRow
        key = ws.Cells(i, "I").Value & "|" & ws.Cells(i, "Z").Value

        If Not groupMap.exists(key) Then
            groupMap(key) = groupNum
            groupSums(groupNum) = 0

            gDate = ws.Cells(i, "G").Value
            pText = ws.Cells(i, "P").Value
            jText = ws.Cells(i, "J").Value

            If IsDate(gDate) Then
                groupDesc(groupNum) = Month(gDate) & " month " & pText & "_" & jText
            Else
                groupDesc(groupNum) = "Date Error " & pText & "_" & jText
            End If

            groupNum = groupNum + 1
        End If

        ws.Cells(i, 1).Value = groupMap(key)
        groupSums(groupMap(key)) = groupSums(groupMap(key)) + Val(ws.Cells(i, "AG").Value)
    Next i

    maturityCol = ws.Cells(1, ws.Columns.Count).End(xlToLeft).Column + 1
    ws.Cells(1, maturityCol).Value = "Maturity Date"

    descCol = maturityCol + 1
    ws.Cells(1, descCol).Value = "Invoice Description"

    taxDateCol = descCol + 1
    ws.Cells(1, taxDateCol).Value = "Tax Invoice Date"

    For i = 2 To lastRow
        Dim gNum As Long
        gNum = ws.Cells(i, 1).Value
        gDate = ws.Cells(i, "G").Value

        If IsDate(gDate) Then
            adjustedSum = groupSums(gNum) * 1.1
            If adjustedSum < 10000000 Then
                maturityDate = WorksheetFunction.EoMonth(gDate, 1)
            Else
                maturityDate = WorksheetFunction.EoMonth(gDate, 2)
            End If
            ws.Cells(i, maturityCol).Value = maturityDate

            ws.Cells(i, taxDateCol).Value = WorksheetFunction.EoMonth(gDate, 0)
        Else
            ws.Cells(i, maturityCol).Value = "Date Error"
            ws.Cells(i, taxDateCol).Value = "Date Error"
        End If

        ws.Cells(i, descCol).Value = groupDesc(gNum)
    Next i

    ws.Range(ws.Cells(2, taxDateCol), ws.Cells(lastRow, taxDateCol)).NumberFormat = "yyyy-mm-dd"

    lastCol = ws.Cells(1, ws.Columns.Count).End(xlToLeft).Column
    For i = 2 To lastRow - 1
        currentGroup = ws.Cells(i, 1).Value
        nextGroup = ws.Cells(i + 1, 1).Value

        If currentGroup <> nextGroup Then
            With ws.Range(ws.Cells(i, 1), ws.Cells(i, lastCol)).Borders(xlEdgeBottom)
                .LineStyle = xlContinuous
                .Weight = xlMedium
                .ColorIndex = xlAutomatic
            End With
        End If
    Next i

    Application.ScreenUpdating = True
    Application.Calculation = xlCalculationAutomatic

End Sub`

// buildScript renders the PowerShell driver for the given workbook path.
// The script reuses an already-open workbook when the operator has it up,
// strips any stale standard modules, injects the routine, runs it (falling
// back to the module-qualified name), saves (save-as *_processed.xlsx when
// the save is blocked), and leaves Excel visible for inspection.
func buildScript(filePath string) string {
	escaped := strings.ReplaceAll(filePath, `\`, `\\`)
	return fmt.Sprintf(`param(
    [string]$ExcelFilePath = "%s"
)

Write-Host "Running workbook transformation"
Write-Host "Target file: $ExcelFilePath"

try {
    $excel = New-Object -ComObject Excel.Application
    $excel.Visible = $false
    $excel.DisplayAlerts = $false

    $workbook = $null
    $fileName = Split-Path $ExcelFilePath -Leaf

    foreach ($wb in $excel.Workbooks) {
        if ($wb.Name -eq $fileName) {
            $workbook = $wb
            Write-Host "Reusing open workbook: $fileName"
            break
        }
    }

    if ($workbook -eq $null) {
        if (Test-Path $ExcelFilePath) {
            $workbook = $excel.Workbooks.Open($ExcelFilePath)
            Write-Host "Workbook opened: $ExcelFilePath"
        } else {
            throw "File not found: $ExcelFilePath"
        }
    }

    $worksheet = $workbook.Worksheets.Item(1)
    $worksheet.Activate()

    $vbaProject = $workbook.VBProject
    for ($i = $vbaProject.VBComponents.Count; $i -ge 1; $i--) {
        $component = $vbaProject.VBComponents.Item($i)
        if ($component.Type -eq 1) {
            $vbaProject.VBComponents.Remove($component)
            Write-Host "Removed stale module: $($component.Name)"
        }
    }

    $vbaModule = $vbaProject.VBComponents.Add(1)
    $vbaModule.Name = "GroupProcessModule"

    Start-Sleep -Milliseconds 500

    $vbaCode = @"
%s
"@

    $vbaModule.CodeModule.AddFromString($vbaCode)
    Write-Host "Macro module injected"

    Start-Sleep -Seconds 2

    try {
        $excel.Run("GroupBy_I_Z_And_Process")
        Write-Host "Macro finished"
    } catch {
        Write-Host "Macro run failed: $($_.Exception.Message)"
        try {
            $excel.Run("GroupProcessModule.GroupBy_I_Z_And_Process")
            Write-Host "Module-qualified macro finished"
        } catch {
            Write-Host "Module-qualified run failed too: $($_.Exception.Message)"
            throw "Macro execution failed."
        }
    }

    Start-Sleep -Seconds 2

    try {
        $workbook.Save()
        Write-Host "Workbook saved"
    } catch {
        Write-Host "Save failed: $($_.Exception.Message)"
        try {
            $savePath = $ExcelFilePath -replace '\.xlsx$', '_processed.xlsx'
            $workbook.SaveAs($savePath)
            Write-Host "Saved under new name: $savePath"
        } catch {
            Write-Host "Save-as failed too: $($_.Exception.Message)"
            throw "Saving the workbook failed."
        }
    }

    $excel.Visible = $true
    $excel.DisplayAlerts = $true

    Write-Host "Transformation complete"

} catch {
    Write-Host "Error: $($_.Exception.Message)"
    if ($excel) {
        $excel.Visible = $true
        $excel.DisplayAlerts = $true
    }
    exit 1
}
`, escaped, groupMacro)
}

// RunTransformation writes the driver script to a temp file, runs it through
// the configured shell with the configured timeout, and logs whatever the
// engine printed. The temp script is removed regardless of outcome.
func (b *ExcelBridge) RunTransformation(ctx context.Context, filePath string) (Result, error) {
	b.logger.Info("Starting workbook transformation.", zap.String("file", filePath))

	scriptPath := filepath.Join(os.TempDir(), fmt.Sprintf("ezvoucher_macro_%d.ps1", time.Now().UnixNano()))
	if err := os.WriteFile(scriptPath, []byte(buildScript(filePath)), 0o600); err != nil {
		return Result{}, fmt.Errorf("writing driver script: %w", err)
	}
	defer func() {
		if err := os.Remove(scriptPath); err != nil {
			b.logger.Warn("Failed to remove temp script.", zap.String("path", scriptPath), zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.cfg.Shell, "-ExecutionPolicy", "Bypass", "-File", scriptPath)
	output, err := cmd.CombinedOutput()
	if len(output) > 0 {
		b.logger.Info("Engine output.", zap.String("output", string(output)))
	}
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return Result{}, fmt.Errorf("transformation timed out after %v", b.cfg.Timeout)
		}
		return Result{}, fmt.Errorf("transformation failed: %w", err)
	}

	b.logger.Info("Workbook transformation complete.", zap.String("file", filePath))
	return Result{
		Success:  true,
		Message:  "workbook transformed",
		FilePath: filePath,
	}, nil
}
