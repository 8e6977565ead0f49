package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/croprag/pkg/recommend"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	headerColor  = color.New(color.FgCyan, color.Bold)
	labelColor   = color.New(color.FgBlue)
)

func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("rows"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func newSpinner(w io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

func printRecommendation(w io.Writer, rec *recommend.Recommendation) {
	headerColor.Fprintln(w, "\nQuery")
	fmt.Fprintf(w, "  %s\n", rec.QuerySummary)

	if rec.Status != recommend.StatusSuccess {
		errorColor.Fprintf(w, "\n✗ %s\n", rec.Message)
		return
	}

	successColor.Fprintf(w, "\n✓ Best crop: %s\n", rec.BestCrop)
	if len(rec.OtherCandidates) > 0 {
		labelColor.Fprint(w, "  Other candidates: ")
		fmt.Fprintln(w, strings.Join(rec.OtherCandidates, ", "))
	}

	headerColor.Fprintln(w, "\nNearest records")
	for i, m := range rec.Matches {
		fmt.Fprintf(w, "  %d. %-12s N=%g P=%g K=%g pH=%g Temp=%gC Humidity=%g%%\n",
			i+1, m.RecommendedCrop, m.Nitrogen, m.Phosphorus, m.Potassium, m.PHValue, m.Temperature, m.Humidity)
		if m.Disease != "" {
			labelColor.Fprint(w, "     Disease: ")
			fmt.Fprintf(w, "%s (treat with %s, threshold %s)\n", m.Disease, m.Chemical, m.Threshold)
		}
	}

	if rec.Explanation != "" {
		headerColor.Fprintln(w, "\nExplanation")
		fmt.Fprintf(w, "  %s\n", rec.Explanation)
	}
}
