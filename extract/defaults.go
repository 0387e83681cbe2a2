package extract

import (
	"log/slog"

	"github.com/poiesic/lectern/ai"
)

// Services are the optional dependencies of the built-in processors.
// A nil service leaves the extensions that need it unregistered.
type Services struct {
	PageReader     PageReader
	ImageExtractor ai.ImageExtractor
	Transcriber    ai.Transcriber
	Link           *Link
	Logger         *slog.Logger

	// PDFConcurrency bounds concurrent page extraction; zero keeps the default.
	PDFConcurrency int
	// CSVRowsPerPage sets CSV pagination; zero keeps the default.
	CSVRowsPerPage int
}

// NewDefaultRegistry registers every built-in processor whose dependencies
// are available.
func NewDefaultRegistry(s Services) (*Registry, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := NewRegistry()

	register := func(p Processor, exts ...string) error {
		for _, ext := range exts {
			if err := r.Register(ext, p); err != nil {
				return err
			}
		}
		return nil
	}

	if err := register(NewText(), "txt", "md", "markdown", "text"); err != nil {
		return nil, err
	}
	if err := register(NewResearch(), "research"); err != nil {
		return nil, err
	}
	if err := register(NewDOCX(), "docx"); err != nil {
		return nil, err
	}
	if err := register(NewPPTX(), "pptx"); err != nil {
		return nil, err
	}
	var csvOpts []CSVOption
	if s.CSVRowsPerPage > 0 {
		csvOpts = append(csvOpts, WithRowsPerPage(s.CSVRowsPerPage))
	}
	csvProcessor, err := NewCSV(csvOpts...)
	if err != nil {
		return nil, err
	}
	if err := register(csvProcessor, "csv"); err != nil {
		return nil, err
	}

	if s.PageReader != nil {
		pdfOpts := []PDFOption{WithPDFLogger(logger)}
		if s.PDFConcurrency > 0 {
			pdfOpts = append(pdfOpts, WithPageConcurrency(s.PDFConcurrency))
		}
		pdf, err := NewPDF(s.PageReader, pdfOpts...)
		if err != nil {
			return nil, err
		}
		if err := register(pdf, "pdf"); err != nil {
			return nil, err
		}
	}
	if s.ImageExtractor != nil {
		image, err := NewImage(s.ImageExtractor)
		if err != nil {
			return nil, err
		}
		if err := register(image, ImageExtensions...); err != nil {
			return nil, err
		}
	}
	if s.Transcriber != nil {
		audio, err := NewAudio(s.Transcriber)
		if err != nil {
			return nil, err
		}
		if err := register(audio, AudioExtensions...); err != nil {
			return nil, err
		}
	}

	link := s.Link
	if link == nil {
		if link, err = NewLink(WithLinkLogger(logger)); err != nil {
			return nil, err
		}
	}
	if err := register(link, "link"); err != nil {
		return nil, err
	}

	logger.With("component", "extract").Debug("registered processors", "extensions", r.Extensions())
	return r, nil
}
