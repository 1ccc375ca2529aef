package services

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const printTimeout = 30 * time.Second

// PrinterService turns rendered resumes into PDF files with a headless
// Chrome. The browser is started lazily and shared between requests.
type PrinterService struct {
	Enabled    bool
	BrowserURL string
	Bin        string
	Log        *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

func NewPrinterService(enabled bool, browserURL, bin string, log *zap.Logger) *PrinterService {
	return &PrinterService{Enabled: enabled, BrowserURL: browserURL, Bin: bin, Log: log}
}

func (s *PrinterService) connect() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browser != nil {
		if _, err := s.browser.Version(); err == nil {
			return s.browser, nil
		}
		s.Log.Warn("stale browser connection, reconnecting")
		_ = s.browser.Close()
		s.browser = nil
	}

	controlURL := s.BrowserURL
	if controlURL == "" {
		l := launcher.New().Headless(true)
		if s.Bin != "" {
			l = l.Bin(s.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launching chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to chrome: %w", err)
	}
	s.browser = browser
	s.Log.Info("browser connected")
	return browser, nil
}

// PrintPDF loads html into a fresh incognito page and prints it on the
// paper size named by format.
func (s *PrinterService) PrintPDF(ctx context.Context, html []byte, format string) ([]byte, error) {
	if !s.Enabled {
		return nil, ErrDisabled
	}
	browser, err := s.connect()
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}
	defer incognito.Close()

	ctx, cancel := context.WithTimeout(ctx, printTimeout)
	defer cancel()

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	page = page.Context(ctx)

	if err := page.SetDocumentContent(string(html)); err != nil {
		return nil, fmt.Errorf("loading document: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("waiting for document: %w", err)
	}

	size, ok := pageSizes[format]
	if !ok {
		size = pageSizes["a4"]
	}
	zero := 0.0
	stream, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      inches(size[0]),
		PaperHeight:     inches(size[1]),
		MarginTop:       &zero,
		MarginBottom:    &zero,
		MarginLeft:      &zero,
		MarginRight:     &zero,
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("printing pdf: %w", err)
	}
	out, err := io.ReadAll(stream)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}
	return out, nil
}

func inches(mm int) *float64 {
	v := float64(mm) / 25.4
	return &v
}

// Close shuts the shared browser down.
func (s *PrinterService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browser == nil {
		return nil
	}
	err := s.browser.Close()
	s.browser = nil
	return err
}
