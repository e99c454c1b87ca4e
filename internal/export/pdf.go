package export

import (
	"context"
	stderrors "errors"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/patchlens/patchlens/internal/model"
	"github.com/patchlens/patchlens/pkg/errors"
)

// ErrChromeUnavailable is returned by PDF when no Chrome binary can be
// found. The API maps it to 503 so HTML export stays usable without Chrome.
var ErrChromeUnavailable = errors.New(errors.KindInternal, "headless chrome is not available")

// PDFOptions controls Chrome's print rendering
type PDFOptions struct {
	// Paper dimensions in inches (A4: 8.27 x 11.69)
	PaperWidth  float64
	PaperHeight float64

	// Margins in inches
	MarginTop    float64
	MarginBottom float64
	MarginLeft   float64
	MarginRight  float64

	PrintBackground bool
	Scale           float64
	Timeout         time.Duration
}

// DefaultPDFOptions returns A4 defaults
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PaperWidth:      8.27,
		PaperHeight:     11.69,
		MarginTop:       0.59, // ~15mm
		MarginBottom:    0.59,
		MarginLeft:      0.79, // ~20mm
		MarginRight:     0.79,
		PrintBackground: true,
		Scale:           1.0,
		Timeout:         60 * time.Second,
	}
}

// chromeCandidates are tried in order when CHROME_PATH is not set
var chromeCandidates = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// chromeExecutable locates the browser binary. CHROME_PATH wins when set;
// a set but unusable CHROME_PATH is treated as unavailable rather than
// silently falling back.
func chromeExecutable() (string, bool) {
	if path := os.Getenv("CHROME_PATH"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		return "", false
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}
	return "", false
}

// PDF renders a review to PDF by printing the HTML export through headless
// Chrome. The document is served to Chrome from a temp file to avoid data
// URL size limits.
func (e *Exporter) PDF(ctx context.Context, record *model.ReviewRecord) ([]byte, error) {
	html, err := e.HTML(record)
	if err != nil {
		return nil, err
	}

	chromePath, ok := chromeExecutable()
	if !ok {
		e.logger.Warn("PDF export requested but no Chrome binary found",
			zap.String("chrome_path_env", os.Getenv("CHROME_PATH")))
		return nil, ErrChromeUnavailable
	}

	tmpFile, err := os.CreateTemp("", "patchlens-export-*.html")
	if err != nil {
		return nil, errors.Wrap(errors.KindInternal, "failed to create temp file", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(html); err != nil {
		tmpFile.Close()
		return nil, errors.Wrap(errors.KindInternal, "failed to write temp file", err)
	}
	tmpFile.Close()

	ctx, cancel := context.WithTimeout(ctx, e.pdf.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(chromePath),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("headless", true),
		chromedp.WSURLReadTimeout(30*time.Second),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	start := time.Now()
	var pdfData []byte
	err = chromedp.Run(browserCtx,
		chromedp.Navigate("file://"+tmpPath),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfData, _, err = page.PrintToPDF().
				WithPaperWidth(e.pdf.PaperWidth).
				WithPaperHeight(e.pdf.PaperHeight).
				WithMarginTop(e.pdf.MarginTop).
				WithMarginBottom(e.pdf.MarginBottom).
				WithMarginLeft(e.pdf.MarginLeft).
				WithMarginRight(e.pdf.MarginRight).
				WithPrintBackground(e.pdf.PrintBackground).
				WithScale(e.pdf.Scale).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrap(errors.KindTimeout, "pdf generation timed out", err)
		}
		return nil, errors.Wrap(errors.KindInternal, "failed to generate pdf", err)
	}

	e.logger.Info("PDF export completed",
		zap.Uint("review_id", record.ID),
		zap.Int("pdf_bytes", len(pdfData)),
		zap.Duration("duration", time.Since(start)))
	return pdfData, nil
}
