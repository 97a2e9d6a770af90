package viewer

import (
	"context"

	"github.com/hyperjump/pdfscope/internal/backend"
	"github.com/hyperjump/pdfscope/internal/models"
	"github.com/hyperjump/pdfscope/internal/qa"
)

// Answerer answers a question about an open document.
type Answerer interface {
	Ask(ctx context.Context, pdfName string, idx models.PageIndex, req models.QARequest) (*models.Answer, error)
}

// RemoteAnswerer forwards questions to the QA service, which retrieves from its own OCR cache.
type RemoteAnswerer struct {
	Client *backend.Client
}

// Ask posts the question to the QA service.
func (a RemoteAnswerer) Ask(ctx context.Context, pdfName string, _ models.PageIndex, req models.QARequest) (*models.Answer, error) {
	return a.Client.Ask(ctx, backend.QARequest{
		PDFName:  pdfName,
		Question: req.Question,
		TopK:     req.TopK,
		Window:   req.Window,
	})
}

// LocalAnswerer answers from the session's own page index.
type LocalAnswerer struct {
	Engine *qa.Engine
}

// Ask retrieves context from idx and asks the model.
func (a LocalAnswerer) Ask(ctx context.Context, _ string, idx models.PageIndex, req models.QARequest) (*models.Answer, error) {
	return a.Engine.Answer(ctx, idx, req)
}
