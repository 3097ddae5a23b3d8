package convert

import (
	"fmt"
	"io"
	"strings"
)

func rule() string { return strings.Repeat("=", 60) }

// PrintSummary writes the end-of-run summary followed by fixed usage notes.
func PrintSummary(w io.Writer, report Report) {
	_, _ = fmt.Fprintf(w, "\n%s\n✅ Conversion Complete!\n%s\n", rule(), rule())
	_, _ = fmt.Fprintf(w, "\n📦 Converted %d model(s):\n", len(report.Converted))
	for _, p := range report.OutputPaths() {
		_, _ = fmt.Fprintf(w, "   - %s\n", p)
	}

	if len(report.Failed) > 0 {
		_, _ = fmt.Fprintf(w, "\n❌ Failed %d model(s):\n", len(report.Failed))
		for _, f := range report.Failed {
			_, _ = fmt.Fprintf(w, "   - %s\n", f.SourcePath)
		}
	}

	_, _ = fmt.Fprintln(w, "\n📝 Next steps:")
	_, _ = fmt.Fprintln(w, "   1. Models are now in public/models/ directory")
	_, _ = fmt.Fprintln(w, "   2. They will be served as static assets by Vite")
	_, _ = fmt.Fprintln(w, "   3. Use LocalPoseDetectionService to load and run models")
	_, _ = fmt.Fprintln(w, "   4. Models work offline in both web and mobile apps")

	_, _ = fmt.Fprintln(w, "\n💡 Recommended model:")
	_, _ = fmt.Fprintln(w, "   - yolov8n-pose.onnx: Best for mobile (smaller, faster)")
	_, _ = fmt.Fprintln(w, "   - yolov8s-pose.onnx: Better accuracy (larger, slower)")
	_, _ = fmt.Fprintln(w)
}
