// Package ai provides the semantic plane models: a Gemini-backed embedding
// engine and OCR model, plus a circuit breaker decorator that keeps a
// misbehaving model API from stalling the whole service.
package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"antbox-backend/internal/domain"
	"antbox-backend/internal/repository"
	apperrors "antbox-backend/pkg/errors"
)

const (
	defaultEmbeddingModel = "gemini-embedding-001"
	defaultOCRModel       = "gemini-2.0-flash"
)

const ocrPrompt = "Extract all text from this document. Return only the text, without commentary."

// GenAIEngine implements the embedding and OCR models on the Gemini API.
type GenAIEngine struct {
	client         *genai.Client
	embeddingModel string
	ocrModel       string
}

// NewGenAIEngine connects to the Gemini API. Empty model names fall back to
// the defaults.
func NewGenAIEngine(ctx context.Context, apiKey, embeddingModel, ocrModel string) (*GenAIEngine, error) {
	if apiKey == "" {
		return nil, apperrors.NewBadRequest("genai api key is required")
	}
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	if ocrModel == "" {
		ocrModel = defaultOCRModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, apperrors.Wrap(err, "creating genai client")
	}
	return &GenAIEngine{
		client:         client,
		embeddingModel: embeddingModel,
		ocrModel:       ocrModel,
	}, nil
}

var (
	_ repository.EmbeddingModel = (*GenAIEngine)(nil)
	_ repository.OCRModel       = (*GenAIEngine)(nil)
)

// Embed generates one embedding per text in a single batched call.
func (e *GenAIEngine) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.embeddingModel, contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		})
	if err != nil {
		return nil, apperrors.Wrap(err, "embedding texts")
	}
	if len(result.Embeddings) != len(texts) {
		return nil, apperrors.NewInternal(
			fmt.Sprintf("expected %d embeddings, got %d", len(texts), len(result.Embeddings)), nil)
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

// OCR asks the vision model for the document's text.
func (e *GenAIEngine) OCR(ctx context.Context, file domain.File) (string, error) {
	content := genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromBytes(file.Content, file.Mimetype),
		genai.NewPartFromText(ocrPrompt),
	}, genai.RoleUser)

	result, err := e.client.Models.GenerateContent(ctx, e.ocrModel, []*genai.Content{content}, nil)
	if err != nil {
		return "", apperrors.Wrap(err, "extracting text")
	}
	return result.Text(), nil
}
