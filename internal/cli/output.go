package cli

import (
	"fmt"
	"strings"
)

// PrintScanHeader prints the scan banner.
func PrintScanHeader(driver string, record bool) {
	mode := "REPORT-ONLY"
	if record {
		mode = "RECORD"
	}
	fmt.Printf("ledger-scan: %s storage (%s mode)\n\n", driver, mode)
}

// PrintScanSummary prints the scan result summary.
func PrintScanSummary(result *ScanResult, record bool) {
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Summary: Scanned=%d ExactPairs=%d NearPairs=%d\n",
		result.Scanned,
		result.ExactPairs,
		result.NearPairs)

	if record {
		fmt.Printf("Recorded=%d AlreadyRecorded=%d\n", result.Recorded, result.Skipped)
	}

	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, err := range result.Errors {
			fmt.Printf("  - %v\n", err)
		}
	}

	if result.ExactPairs == 0 && result.NearPairs == 0 {
		fmt.Println("\nNo duplicate candidates found.")
	}
}
